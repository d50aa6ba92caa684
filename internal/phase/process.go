// Package phase implements the execution unit of a pipeline: one concurrent
// process per stage partition, owning a private mailbox and an opaque stage
// callback. The process dispatches incoming items to the callback, routes
// emitted outputs downstream or to a convergence leader, reports accumulated
// results to the flow coordinator, and throttles propagation when a
// downstream mailbox grows too deep.
package phase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vk/phasegrid/internal/flow"
	"github.com/vk/phasegrid/internal/mailbox"
	"github.com/vk/phasegrid/internal/stage"
)

const (
	// outputWindow is how many propagated outputs pass between two mailbox
	// depth samples. The check is amortized on purpose: per-message
	// sampling would cost more than the precision buys.
	outputWindow = 1000

	// mailboxHighWater is the sampled downstream depth above which the
	// next window of deliveries switches to blocking sends.
	mailboxHighWater = 500
)

// Target is the delivery surface a process needs from a downstream
// consumer. *Process satisfies it; tests substitute recording fakes. The
// depth query must be cheap and non-blocking, it is sampled on the
// backpressure path.
type Target interface {
	// Input delivers one item, fire-and-forget.
	Input(item any)
	// SyncInput delivers one item and blocks until the receiver has
	// processed it.
	SyncInput(ctx context.Context, item any) error
	// InputsDone signals that this sender has no more items.
	InputsDone()
	// MailboxLen reports the receiver's pending message count.
	MailboxLen() int
}

// Options configures one partition of a stage.
type Options struct {
	// ID identifies the stage; accumulated results are tagged with it.
	ID string
	// Callback is the pluggable stage logic. Required.
	Callback stage.Callback
	// InitArgs is handed to the callback's Init untouched.
	InitArgs map[string]any

	// Converge marks the stage as requiring the peer-convergence
	// handshake before completion accounting works.
	Converge bool
	// Accumulate reports every routed output to the flow coordinator,
	// tagged with ID.
	Accumulate bool

	// Next selects the routing mode for emitted outputs. Nil means this is
	// the terminal stage: completion is signaled to Flow instead.
	Next *Next
	// Flow is the pipeline-wide coordinator. Required when Accumulate is
	// set or Next is nil.
	Flow flow.Coordinator

	// Timeout is the configured idle timeout. Zero disables idle wake-ups.
	// A callback may request a shorter timeout per message; it can never
	// extend this one.
	Timeout time.Duration

	// Logger receives the process's structured log output. Defaults to
	// slog.Default().
	Logger *slog.Logger
	// Stats receives process counters. Defaults to a no-op.
	Stats Stats
}

// Process is one running stage partition. All fields past the construction
// ones are owned by the run goroutine; external goroutines interact only
// through the mailbox and the done channel.
type Process struct {
	id       string
	callback stage.Callback
	state    any

	converge   bool
	accumulate bool
	flow       flow.Coordinator
	timeout    time.Duration

	// Convergence role, set at most once by the handshake. A nil lead on a
	// converging stage means this process is the leader.
	handshaken bool
	lead       *Process
	partners   []*Process

	next *Next

	// doneCount is the number of inputs-done signals still expected before
	// the completion handler fires.
	doneCount int

	// outSinceCheck counts propagated outputs since the last depth sample,
	// cycling through [0, outputWindow).
	outSinceCheck int
	// syncMode forces blocking delivery for the current window.
	syncMode bool
	// rr is the round-robin cursor over fan-out targets.
	rr int

	// armed is the idle timeout for the next mailbox wait. Reset to the
	// configured timeout after every message unless the callback requested
	// a shorter one.
	armed time.Duration

	mbox  *mailbox.Mailbox
	done  chan struct{}
	err   error
	log   *slog.Logger
	stats Stats
}

// Start constructs a partition, runs the callback's Init synchronously, and
// on success spawns the process goroutine. An Init failure is returned as a
// *StartupError and nothing is spawned.
func Start(opts Options) (*Process, error) {
	if opts.Callback == nil {
		return nil, fmt.Errorf("phase %q: no callback configured", opts.ID)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stats := opts.Stats
	if stats == nil {
		stats = nopStats{}
	}

	state, err := opts.Callback.Init(opts.InitArgs)
	if err != nil {
		return nil, &StartupError{Stage: opts.ID, Reason: err}
	}

	p := &Process{
		id:         opts.ID,
		callback:   opts.Callback,
		state:      state,
		converge:   opts.Converge,
		accumulate: opts.Accumulate,
		flow:       opts.Flow,
		timeout:    opts.Timeout,
		next:       opts.Next,
		doneCount:  1,
		armed:      opts.Timeout,
		mbox:       mailbox.New(),
		done:       make(chan struct{}),
		log:        logger.With("stage", opts.ID),
		stats:      stats,
	}
	go p.run()
	p.log.Debug("Phase process started.", "converge", p.converge, "accumulate", p.accumulate)
	return p, nil
}

// ID returns the stage identifier this partition runs under.
func (p *Process) ID() string { return p.id }

// Input delivers one item, fire-and-forget.
func (p *Process) Input(item any) {
	_ = p.mbox.Put(&inputMsg{item: item})
}

// SyncInput delivers one item and blocks until the process has handled it.
// It returns the stop reason if handling the item terminated the process,
// or the context error if ctx expires first.
func (p *Process) SyncInput(ctx context.Context, item any) error {
	reply := make(chan error, 1)
	if err := p.mbox.Put(&inputMsg{item: item, reply: reply}); err != nil {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-p.done:
		// A reply delivered in the same dispatch that terminated the
		// process wins over the termination signal.
		select {
		case err := <-reply:
			return err
		default:
		}
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InputsDone signals that one upstream source has finished sending.
func (p *Process) InputsDone() {
	_ = p.mbox.Put(inputsDoneMsg{})
}

// Complete signals that this partition will receive no more input at all.
func (p *Process) Complete() {
	_ = p.mbox.Put(completeMsg{})
}

// Partners delivers the convergence handshake: the designated leader and
// the full partner list (usually including the receiver itself).
func (p *Process) Partners(leader *Process, partners []*Process) {
	_ = p.mbox.Put(&partnersMsg{leader: leader, partners: partners})
}

// Event delivers a fire-and-forget stage event for the callback.
func (p *Process) Event(event any) {
	_ = p.mbox.Put(&eventMsg{payload: event})
}

// SyncEvent delivers a request/response stage event and waits for the
// callback's reply.
func (p *Process) SyncEvent(ctx context.Context, event any) (any, error) {
	reply := make(chan syncReply, 1)
	if err := p.mbox.Put(&eventMsg{payload: event, reply: reply}); err != nil {
		return nil, ErrStopped
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-p.done:
		select {
		case r := <-reply:
			return r.value, r.err
		default:
		}
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver hands an arbitrary runtime signal to the callback's info handler.
func (p *Process) Deliver(info any) {
	_ = p.mbox.Put(&infoMsg{payload: info})
}

// MailboxLen reports the process's pending message count.
func (p *Process) MailboxLen() int { return p.mbox.Len() }

// Done is closed when the process has terminated and the teardown hook has
// run.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the termination reason. Nil means a normal stop. Only valid
// after Done is closed.
func (p *Process) Err() error { return p.err }

// link watches the leader and cascades its abnormal termination into this
// process. A normal leader exit is ignored, matching non-trapping link
// semantics.
func (p *Process) link(leader *Process) {
	go func() {
		select {
		case <-leader.done:
			if reason := leader.err; reason != nil {
				_ = p.mbox.Put(&exitMsg{from: leader, reason: reason})
			}
		case <-p.done:
		}
	}()
}

// Messages understood by the run loop. A nil reply channel marks the
// fire-and-forget variant of inputs and events.

type inputMsg struct {
	item  any
	reply chan error
}

type inputsDoneMsg struct{}

type completeMsg struct{}

type partnersMsg struct {
	leader   *Process
	partners []*Process
}

type eventMsg struct {
	payload any
	reply   chan syncReply
}

type infoMsg struct {
	payload any
}

// exitMsg is the cascaded failure of a linked peer.
type exitMsg struct {
	from   *Process
	reason error
}

type syncReply struct {
	value any
	err   error
}
