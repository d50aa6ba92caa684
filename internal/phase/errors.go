package phase

import (
	"errors"
	"fmt"
)

// ErrNoConvergence is the protocol-violation reason used when a convergence
// handshake arrives at a process that cannot accept it: the stage is not
// configured to converge, the partner list is malformed, or a handshake was
// already applied. The orchestrator must configure convergence consistently,
// so none of these are retried.
var ErrNoConvergence = errors.New("phase: no convergence")

// ErrStopped is the reason reported to a blocked synchronous caller when
// the process terminated normally before producing a reply.
var ErrStopped = errors.New("phase: process stopped")

// BadReturnError reports a stage callback returning a value that was not
// built by one of the stage package constructors. It is a defect in the
// callback, not a runtime condition: the process raises it and terminates,
// and no recovery is attempted.
type BadReturnError struct {
	Stage   string
	Handler string
}

func (e *BadReturnError) Error() string {
	return fmt.Sprintf("phase %q: callback %s returned an unrecognized shape", e.Stage, e.Handler)
}

// StartupError wraps the reason a stage callback's Init reported, aborting
// process construction.
type StartupError struct {
	Stage  string
	Reason error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("phase %q: init failed: %v", e.Stage, e.Reason)
}

func (e *StartupError) Unwrap() error { return e.Reason }
