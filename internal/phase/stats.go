package phase

// Stats receives counters from a running process. The app wires a
// prometheus-backed implementation; the zero configuration is a no-op.
// Implementations must be safe for concurrent use across partitions.
type Stats interface {
	// InputHandled counts one item dispatched to the stage callback.
	InputHandled(stageID string)
	// OutputRouted counts one output propagated downstream or forwarded to
	// the convergence leader.
	OutputRouted(stageID string)
	// BackpressureEngaged counts one sampling window that switched delivery
	// to blocking mode.
	BackpressureEngaged(stageID string)
}

type nopStats struct{}

func (nopStats) InputHandled(string)        {}
func (nopStats) OutputRouted(string)        {}
func (nopStats) BackpressureEngaged(string) {}
