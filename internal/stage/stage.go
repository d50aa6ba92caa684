// Package stage defines the contract between a phase process and the
// pluggable callback implementing one pipeline stage's logic. The core never
// inspects a callback's state: it threads the opaque value returned by Init
// through every handler call and stores whatever comes back.
package stage

import (
	"time"
)

// Callback is the behavior a stage module implements. One instance serves
// one partition; all handler calls for that partition happen sequentially on
// the partition's own goroutine, so implementations need no locking.
//
// Every handler except Init, HandleSyncEvent and Terminate returns a Result
// built with one of this package's constructors. Returning the zero Result
// is a contract violation and terminates the owning process.
type Callback interface {
	// Init establishes the callback's private state from the configured
	// arguments. A non-nil error aborts startup with that reason.
	Init(args map[string]any) (state any, err error)

	// HandleInput processes one item. The timeout argument is the stage's
	// configured idle timeout, passed through so callbacks can budget
	// long-running work against it.
	HandleInput(item any, state any, timeout time.Duration) Result

	// HandleInputsDone runs exactly once, after every upstream source has
	// signaled the end of its input.
	HandleInputsDone(state any) Result

	// HandleTimeout runs when the process has been idle for the armed
	// timeout duration.
	HandleTimeout(state any) Result

	// HandleEvent receives fire-and-forget stage events.
	HandleEvent(event any, state any) Result

	// HandleSyncEvent receives request/response stage events and must
	// produce a SyncResult carrying the reply.
	HandleSyncEvent(event any, state any) SyncResult

	// HandleInfo receives runtime signals that are not part of the stage
	// protocol.
	HandleInfo(info any, state any) Result

	// Terminate runs on every termination, normal or abnormal, with the
	// termination reason. reason is nil for a normal stop.
	Terminate(reason error, state any)
}

type resultKind int

const (
	// kindInvalid is the zero value on purpose: a forgotten or malformed
	// return is detected as a contract violation, never treated as a no-op.
	kindInvalid resultKind = iota
	kindContinue
	kindEmit
	kindStop
)

// Result is the value every asynchronous handler returns. It carries the
// updated callback state plus one of the legal outcomes: keep executing,
// emit an output, or stop.
type Result struct {
	kind    resultKind
	state   any
	output  any
	timeout time.Duration
	reason  error
}

// Continue keeps the process executing with the updated state.
func Continue(state any) Result {
	return Result{kind: kindContinue, state: state}
}

// ContinueAfter keeps executing and requests an idle timeout of d. A
// requested timeout that is not shorter than the configured stage timeout
// is ignored; the configured value always bounds it.
func ContinueAfter(state any, d time.Duration) Result {
	return Result{kind: kindContinue, state: state, timeout: d}
}

// Emit keeps executing and hands output to the process for routing.
func Emit(state any, output any) Result {
	return Result{kind: kindEmit, state: state, output: output}
}

// EmitAfter is Emit plus a requested shorter idle timeout, as in
// ContinueAfter.
func EmitAfter(state any, output any, d time.Duration) Result {
	return Result{kind: kindEmit, state: state, output: output, timeout: d}
}

// Stop requests a controlled termination with the given reason. A nil
// reason stops normally.
func Stop(state any, reason error) Result {
	return Result{kind: kindStop, state: state, reason: reason}
}

// Valid reports whether r was built by one of the package constructors.
func (r Result) Valid() bool { return r.kind != kindInvalid }

// Stopped reports whether r requests termination.
func (r Result) Stopped() bool { return r.kind == kindStop }

// HasOutput reports whether r carries an output to route.
func (r Result) HasOutput() bool { return r.kind == kindEmit }

// Output returns the emitted value. Only meaningful when HasOutput is true.
func (r Result) Output() any { return r.output }

// State returns the updated callback state.
func (r Result) State() any { return r.state }

// Timeout returns the stage-requested idle timeout, or zero when the
// handler did not request one.
func (r Result) Timeout() time.Duration { return r.timeout }

// StopReason returns the termination reason of a Stop result.
func (r Result) StopReason() error { return r.reason }

// SyncResult is the value HandleSyncEvent returns. In addition to the
// Result outcomes it may carry an explicit reply for the caller.
type SyncResult struct {
	Result
	reply    any
	hasReply bool
}

// Reply answers the caller with v and keeps executing.
func Reply(state any, v any) SyncResult {
	return SyncResult{Result: Continue(state), reply: v, hasReply: true}
}

// ReplyEmit answers the caller with v, emits output for routing, and keeps
// executing.
func ReplyEmit(state any, v any, output any) SyncResult {
	return SyncResult{Result: Emit(state, output), reply: v, hasReply: true}
}

// NoReply keeps executing without answering; the caller stays blocked until
// the process replies through other means or terminates.
func NoReply(state any) SyncResult {
	return SyncResult{Result: Continue(state)}
}

// StopReply answers the caller with v, then terminates with reason.
func StopReply(state any, reason error, v any) SyncResult {
	return SyncResult{Result: Stop(state, reason), reply: v, hasReply: true}
}

// ReplyValue returns the reply and whether one was set.
func (r SyncResult) ReplyValue() (any, bool) { return r.reply, r.hasReply }
