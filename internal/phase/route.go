package phase

import "context"

// Next describes where a stage's outputs go. The two modes are deliberately
// distinct: a single direct target is delivered to as-is, while a fan-out
// list gets round-robin selection plus the amortized backpressure check.
// The builder chooses the mode explicitly; it is never inferred from list
// length.
type Next struct {
	direct  Target
	targets []Target
}

// Direct routes every output straight to one downstream target, with no
// rotation or backpressure bookkeeping.
func Direct(t Target) *Next {
	return &Next{direct: t}
}

// FanOut routes outputs round-robin across the given targets, sampling
// their mailbox depths every outputWindow deliveries.
func FanOut(targets ...Target) *Next {
	return &Next{targets: targets}
}

// route applies the per-output decision tree: a non-leader partner forwards
// everything to its leader; otherwise the output is accumulated when
// configured and then propagated downstream.
func (p *Process) route(output any) {
	p.stats.OutputRouted(p.id)

	if p.converge && p.lead != nil {
		// Accumulation for converging stages happens only in the leader,
		// otherwise results would be counted once per partition.
		p.lead.Input(output)
		return
	}

	if p.accumulate && p.flow != nil {
		p.flow.Results(p.id, output)
	}
	p.propagate(output)
}

// propagate delivers one output downstream. A terminal stage's outputs are
// already accumulated by route, so a missing next stage is a no-op.
func (p *Process) propagate(output any) {
	switch {
	case p.next == nil:
		return

	case p.next.direct != nil:
		p.next.direct.Input(output)

	default:
		if len(p.next.targets) == 0 {
			return
		}
		target := p.next.targets[p.rr]
		p.rr = (p.rr + 1) % len(p.next.targets)

		if p.syncMode {
			// Blocking delivery: stall this stage until the receiver has
			// drained enough to process the item.
			_ = target.SyncInput(context.Background(), output)
		} else {
			target.Input(output)
		}

		p.outSinceCheck++
		if p.outSinceCheck >= outputWindow {
			p.outSinceCheck = 0
			p.syncMode = p.overloaded()
			if p.syncMode {
				p.stats.BackpressureEngaged(p.id)
				p.log.Debug("Downstream mailbox over high water, switching to blocking delivery.")
			}
		}
	}
}

// overloaded samples every fan-out target's mailbox depth.
func (p *Process) overloaded() bool {
	for _, target := range p.next.targets {
		if target.MailboxLen() > mailboxHighWater {
			return true
		}
	}
	return false
}

// propagateDone announces stage completion: one inputs-done per downstream
// partition, or flow completion when this is the terminal stage.
func (p *Process) propagateDone() {
	switch {
	case p.next == nil:
		if p.flow != nil {
			p.flow.Complete()
		}
	case p.next.direct != nil:
		p.next.direct.InputsDone()
	default:
		for _, target := range p.next.targets {
			target.InputsDone()
		}
	}
}
