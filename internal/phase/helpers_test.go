package phase

import (
	"context"
	"sync"
	"time"

	"github.com/vk/phasegrid/internal/stage"
)

// script is a fully programmable stage callback for driving the process
// under test. Unset handlers default to Continue.
type script struct {
	initErr     error
	onInput     func(item any, state any, timeout time.Duration) stage.Result
	onDone      func(state any) stage.Result
	onTimeout   func(state any) stage.Result
	onEvent     func(event any, state any) stage.Result
	onSyncEvent func(event any, state any) stage.SyncResult
	onInfo      func(info any, state any) stage.Result

	mu         sync.Mutex
	inputs     []any
	infos      []any
	doneCalls  int
	terminated []error
}

func (s *script) Init(args map[string]any) (any, error) {
	return nil, s.initErr
}

func (s *script) HandleInput(item any, state any, timeout time.Duration) stage.Result {
	s.mu.Lock()
	s.inputs = append(s.inputs, item)
	s.mu.Unlock()
	if s.onInput != nil {
		return s.onInput(item, state, timeout)
	}
	return stage.Continue(state)
}

func (s *script) HandleInputsDone(state any) stage.Result {
	s.mu.Lock()
	s.doneCalls++
	s.mu.Unlock()
	if s.onDone != nil {
		return s.onDone(state)
	}
	return stage.Continue(state)
}

func (s *script) HandleTimeout(state any) stage.Result {
	if s.onTimeout != nil {
		return s.onTimeout(state)
	}
	return stage.Continue(state)
}

func (s *script) HandleEvent(event any, state any) stage.Result {
	if s.onEvent != nil {
		return s.onEvent(event, state)
	}
	return stage.Continue(state)
}

func (s *script) HandleSyncEvent(event any, state any) stage.SyncResult {
	if s.onSyncEvent != nil {
		return s.onSyncEvent(event, state)
	}
	return stage.Reply(state, nil)
}

func (s *script) HandleInfo(info any, state any) stage.Result {
	s.mu.Lock()
	s.infos = append(s.infos, info)
	s.mu.Unlock()
	if s.onInfo != nil {
		return s.onInfo(info, state)
	}
	return stage.Continue(state)
}

func (s *script) Terminate(reason error, state any) {
	s.mu.Lock()
	s.terminated = append(s.terminated, reason)
	s.mu.Unlock()
}

func (s *script) inputCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func (s *script) doneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneCalls
}

func (s *script) terminations() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.terminated))
	copy(out, s.terminated)
	return out
}

// fakeTarget records deliveries and serves a programmable mailbox depth.
type fakeTarget struct {
	mu       sync.Mutex
	async    []any
	blocking []any
	dones    int
	depth    int
}

func (f *fakeTarget) Input(item any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.async = append(f.async, item)
}

func (f *fakeTarget) SyncInput(ctx context.Context, item any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocking = append(f.blocking, item)
	return nil
}

func (f *fakeTarget) InputsDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dones++
}

func (f *fakeTarget) MailboxLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depth
}

func (f *fakeTarget) setDepth(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depth = n
}

func (f *fakeTarget) asyncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.async)
}

func (f *fakeTarget) blockingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocking)
}

func (f *fakeTarget) doneSignals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dones
}

// eventFlow is a flow coordinator that appends to a shared ordered log, so
// tests can assert accumulate-before-propagate ordering.
type eventFlow struct {
	log *eventLog
}

func (f *eventFlow) Results(stageID string, value any) {
	f.log.add(flowResult{stageID, value})
}

func (f *eventFlow) Complete() {
	f.log.add("flow_complete")
}

type flowResult struct {
	stageID string
	value   any
}

type eventLog struct {
	mu     sync.Mutex
	events []any
}

func (l *eventLog) add(ev any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]any, len(l.events))
	copy(out, l.events)
	return out
}

// logTarget feeds deliveries into the same ordered log as eventFlow.
type logTarget struct {
	log *eventLog
}

func (t *logTarget) Input(item any) { t.log.add(targetInput{item}) }

func (t *logTarget) SyncInput(ctx context.Context, item any) error {
	t.log.add(targetInput{item})
	return nil
}

func (t *logTarget) InputsDone()     { t.log.add("target_inputs_done") }
func (t *logTarget) MailboxLen() int { return 0 }

type targetInput struct {
	item any
}

// waitDone fails the test if the process does not terminate in time.
func waitDone(p *Process, d time.Duration) bool {
	select {
	case <-p.Done():
		return true
	case <-time.After(d):
		return false
	}
}
