package phase

import (
	"fmt"
	"time"

	"github.com/vk/phasegrid/internal/stage"
)

// run is the process goroutine: a strictly sequential message loop. A bad
// callback return is raised as a panic and converted here into an abnormal
// termination, so the teardown hook runs for every exit path.
func (p *Process) run() {
	var reason error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if br, ok := r.(*BadReturnError); ok {
					reason = br
				} else {
					reason = fmt.Errorf("phase %q: panic: %v", p.id, r)
				}
			}
		}()
		reason = p.loop()
	}()
	p.finish(reason)
}

// loop takes messages in arrival order until a termination condition. The
// returned error is the termination reason; nil is a normal stop.
func (p *Process) loop() error {
	for {
		msg, timedOut, err := p.mbox.Take(p.armed)
		if err != nil {
			return nil
		}

		// The configured timeout governs the next wait unless the handler
		// below arms a shorter one.
		p.armed = p.timeout

		if timedOut {
			if stop, reason := p.apply("HandleTimeout", p.callback.HandleTimeout(p.state), nil); stop {
				return reason
			}
			continue
		}

		switch m := msg.(type) {
		case *inputMsg:
			p.stats.InputHandled(p.id)
			res := p.callback.HandleInput(m.item, p.state, p.timeout)
			if stop, reason := p.apply("HandleInput", res, m.reply); stop {
				return reason
			}

		case inputsDoneMsg:
			p.doneCount--
			if p.doneCount != 0 {
				continue
			}
			res := p.callback.HandleInputsDone(p.state)
			if stop, reason := p.apply("HandleInputsDone", res, nil); stop {
				return reason
			}
			// All inputs are accounted for; schedule our own completion
			// behind anything already queued.
			_ = p.mbox.Put(completeMsg{})

		case completeMsg:
			if p.converge && p.lead != nil {
				// Non-leader partner: the leader owns downstream
				// propagation, we only report our share as finished.
				p.lead.InputsDone()
				return nil
			}
			p.propagateDone()
			return nil

		case *partnersMsg:
			if err := p.handshake(m); err != nil {
				return err
			}

		case *eventMsg:
			if m.reply == nil {
				res := p.callback.HandleEvent(m.payload, p.state)
				if stop, reason := p.apply("HandleEvent", res, nil); stop {
					return reason
				}
				continue
			}
			res := p.callback.HandleSyncEvent(m.payload, p.state)
			if stop, reason := p.applySync(res, m.reply); stop {
				return reason
			}

		case *infoMsg:
			res := p.callback.HandleInfo(m.payload, p.state)
			if stop, reason := p.apply("HandleInfo", res, nil); stop {
				return reason
			}

		case *exitMsg:
			// Cascaded failure from a linked peer. Fail fast with the
			// peer's reason; the callback only sees it in Terminate.
			p.log.Error("Linked peer terminated abnormally.", "reason", m.reason)
			return m.reason
		}
	}
}

// handshake applies the convergence protocol. Any inconsistency between the
// orchestrator's configuration and this process's flags is fatal.
func (p *Process) handshake(m *partnersMsg) error {
	if !p.converge || m.leader == nil || m.partners == nil || p.handshaken {
		p.log.Error("Rejected convergence handshake.", "converge", p.converge, "repeated", p.handshaken)
		return ErrNoConvergence
	}
	p.handshaken = true

	others := make([]*Process, 0, len(m.partners))
	for _, partner := range m.partners {
		if partner != nil && partner != p {
			others = append(others, partner)
		}
	}

	if m.leader == p {
		// We aggregate for the group: expect one inputs-done per partner
		// on top of our own.
		p.lead = nil
		p.partners = others
		p.doneCount = len(others) + 1
		p.log.Debug("Converging as leader.", "partners", len(others))
		return nil
	}

	p.lead = m.leader
	p.link(m.leader)
	p.log.Debug("Converging as partner.", "leader", m.leader.ID())
	return nil
}

// apply enforces the callback-return contract on an asynchronous handler
// result: update state, route any output, arm a requested shorter timeout,
// answer a synchronous sender, and surface a stop request. An invalid shape
// is raised, never tolerated.
func (p *Process) apply(handler string, res stage.Result, reply chan error) (bool, error) {
	if !res.Valid() {
		panic(&BadReturnError{Stage: p.id, Handler: handler})
	}
	p.state = res.State()
	if res.HasOutput() {
		p.route(res.Output())
	}
	p.arm(res.Timeout())

	if res.Stopped() {
		if reply != nil {
			reason := res.StopReason()
			if reason == nil {
				reason = ErrStopped
			}
			reply <- reason
		}
		return true, res.StopReason()
	}
	if reply != nil {
		reply <- nil
	}
	return false, nil
}

// applySync is apply for the request/response event handler, which carries
// an explicit reply value.
func (p *Process) applySync(res stage.SyncResult, reply chan syncReply) (bool, error) {
	if !res.Valid() {
		panic(&BadReturnError{Stage: p.id, Handler: "HandleSyncEvent"})
	}
	p.state = res.State()
	if res.HasOutput() {
		p.route(res.Output())
	}
	p.arm(res.Timeout())

	if v, ok := res.ReplyValue(); ok {
		reply <- syncReply{value: v}
	}
	if res.Stopped() {
		return true, res.StopReason()
	}
	return false, nil
}

// arm applies a stage-requested idle timeout to the next wait. The
// configured timeout always bounds it: equal or longer requests are
// ignored.
func (p *Process) arm(requested time.Duration) {
	if requested <= 0 {
		return
	}
	if p.timeout <= 0 || requested < p.timeout {
		p.armed = requested
	}
}

// finish runs the teardown hook and releases the process. reason nil is a
// normal stop.
func (p *Process) finish(reason error) {
	p.err = reason

	// The teardown hook runs for every termination; a panic inside it must
	// not keep Done from closing.
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("Teardown hook panicked.", "panic", r)
			}
		}()
		p.callback.Terminate(reason, p.state)
	}()

	p.mbox.Close()
	close(p.done)
	if reason != nil {
		p.log.Error("Phase process terminated abnormally.", "reason", reason)
	} else {
		p.log.Debug("Phase process terminated normally.")
	}
}
