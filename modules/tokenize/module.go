// Package tokenize implements the word-splitting map stage: each incoming
// line is broken into normalized tokens and emitted as one batch.
package tokenize

import (
	"fmt"
	"strings"
	"time"

	"github.com/vk/phasegrid/internal/registry"
	"github.com/vk/phasegrid/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the callback factory with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCallback("tokenize", func() stage.Callback { return &callback{} })
}

type callback struct {
	stage.Base
}

type settings struct {
	separators string
	lowercase  bool
	lines      int
}

// Init reads the optional arguments: `separators` (cutset of rune
// separators, default whitespace) and `lowercase` (default true).
func (c *callback) Init(args map[string]any) (any, error) {
	s := &settings{separators: " \t\r\n", lowercase: true}
	if raw, ok := args["separators"]; ok {
		sep, ok := raw.(string)
		if !ok || sep == "" {
			return nil, fmt.Errorf("tokenize: separators must be a non-empty string, got %v", raw)
		}
		s.separators = sep
	}
	if raw, ok := args["lowercase"]; ok {
		lower, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("tokenize: lowercase must be a bool, got %v", raw)
		}
		s.lowercase = lower
	}
	return s, nil
}

// HandleInput splits one line into tokens and emits them as a batch.
// Non-string items and blank lines are dropped.
func (c *callback) HandleInput(item any, state any, timeout time.Duration) stage.Result {
	s := state.(*settings)
	line, ok := item.(string)
	if !ok {
		return stage.Continue(s)
	}
	if s.lowercase {
		line = strings.ToLower(line)
	}

	tokens := strings.FieldsFunc(line, func(r rune) bool {
		return strings.ContainsRune(s.separators, r)
	})
	if len(tokens) == 0 {
		return stage.Continue(s)
	}
	s.lines++
	return stage.Emit(s, tokens)
}

// HandleSyncEvent answers "lines" queries with the number of non-empty
// lines tokenized so far.
func (c *callback) HandleSyncEvent(event any, state any) stage.SyncResult {
	s := state.(*settings)
	if event == "lines" {
		return stage.Reply(s, s.lines)
	}
	return stage.Reply(s, nil)
}
