package stage

import "time"

// Base provides pass-through defaults for the optional Callback handlers.
// Stage modules embed it and override only what they need; every default
// keeps the process executing with unchanged state.
type Base struct{}

// Init returns empty state.
func (Base) Init(args map[string]any) (any, error) { return nil, nil }

// HandleInput ignores the item.
func (Base) HandleInput(item any, state any, timeout time.Duration) Result {
	return Continue(state)
}

// HandleInputsDone keeps executing.
func (Base) HandleInputsDone(state any) Result { return Continue(state) }

// HandleTimeout keeps executing.
func (Base) HandleTimeout(state any) Result { return Continue(state) }

// HandleEvent ignores the event.
func (Base) HandleEvent(event any, state any) Result { return Continue(state) }

// HandleSyncEvent answers with nil.
func (Base) HandleSyncEvent(event any, state any) SyncResult { return Reply(state, nil) }

// HandleInfo ignores the signal.
func (Base) HandleInfo(info any, state any) Result { return Continue(state) }

// Terminate does nothing.
func (Base) Terminate(reason error, state any) {}
