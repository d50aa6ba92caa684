package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/phasegrid/internal/config"
	"github.com/vk/phasegrid/internal/ctxlog"
	"github.com/vk/phasegrid/internal/flow"
	"github.com/vk/phasegrid/internal/phase"
	"github.com/vk/phasegrid/internal/registry"
)

// Options carries the collaborators a pipeline is built against.
type Options struct {
	// Coordinator receives accumulated results and the completion signal.
	// Required.
	Coordinator flow.Coordinator
	// Stats receives per-stage counters. Optional.
	Stats phase.Stats
	// Partitions overrides every stage's configured partition count when
	// positive. Used by the CLI's -workers flag.
	Partitions int
}

// Build starts every partition of every stage described by the model and
// returns a handle for feeding the pipeline. The model must already have
// passed Validate.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry, opts Options) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("builder: no flow coordinator configured")
	}

	pl := &Pipeline{
		flowName:    model.Flow.Name,
		coordinator: opts.Coordinator,
		partitions:  make(map[string][]*phase.Process, len(model.Stages)),
		failed:      make(chan error, 1),
	}

	// Downstream-first: a stage's targets must be running before the stage
	// itself starts.
	ordered := downstreamFirst(model)
	for _, stg := range ordered {
		if err := pl.startStage(ctx, model, stg, reg, opts); err != nil {
			pl.Kill()
			return nil, err
		}
	}

	// The builder plays orchestrator for the convergence handshake: every
	// partition of a converging stage learns the leader and the full
	// partner list before any input arrives.
	for _, stg := range model.Stages {
		if !stg.Converge {
			continue
		}
		procs := pl.partitions[stg.Name]
		leader := procs[0]
		for _, proc := range procs {
			proc.Partners(leader, procs)
		}
		logger.Debug("Convergence handshake sent.", "stage", stg.Name, "partitions", len(procs))
	}

	for _, entry := range model.Entries() {
		pl.entries = append(pl.entries, pl.partitions[entry.Name]...)
	}
	if len(pl.entries) == 0 {
		pl.Kill()
		return nil, fmt.Errorf("pipeline %q has no entry stage", model.Flow.Name)
	}

	// An abnormal termination anywhere breaks the completion cascade, so the
	// flow coordinator would wait forever. Watch every process and surface
	// the first failure on the Failed channel instead.
	for _, proc := range pl.all {
		go func(proc *phase.Process) {
			<-proc.Done()
			if err := proc.Err(); err != nil {
				select {
				case pl.failed <- fmt.Errorf("stage %q: %w", proc.ID(), err):
				default:
				}
			}
		}(proc)
	}

	logger.Info("Pipeline built.", "flow", model.Flow.Name, "stages", len(model.Stages))
	return pl, nil
}

// startStage starts every partition of one stage.
func (pl *Pipeline) startStage(ctx context.Context, model *config.Model, stg *config.Stage, reg *registry.Registry, opts Options) error {
	logger := ctxlog.FromContext(ctx)

	factory, err := reg.Lookup(stg.Callback)
	if err != nil {
		return fmt.Errorf("stage %q: %w", stg.Name, err)
	}

	next, err := pl.routeFor(stg)
	if err != nil {
		return err
	}

	timeout := stg.Timeout
	if timeout == 0 {
		timeout = model.Flow.Timeout
	}

	count := stg.Partitions
	if opts.Partitions > 0 && stg.Converge {
		count = opts.Partitions
	}

	procs := make([]*phase.Process, 0, count)
	for i := 0; i < count; i++ {
		proc, err := phase.Start(phase.Options{
			ID:         stg.Name,
			Callback:   factory(),
			InitArgs:   stg.Arguments,
			Converge:   stg.Converge,
			Accumulate: stg.Accumulate,
			Next:       next,
			Flow:       opts.Coordinator,
			Timeout:    timeout,
			Logger:     logger.With("flow", pl.flowName, "partition", i),
			Stats:      opts.Stats,
		})
		if err != nil {
			return fmt.Errorf("stage %q partition %d: %w", stg.Name, i, err)
		}
		procs = append(procs, proc)
	}
	pl.partitions[stg.Name] = procs
	pl.all = append(pl.all, procs...)
	return nil
}

// routeFor picks the explicit routing mode for a stage: none for a terminal
// stage, direct for a single downstream partition, round-robin fan-out
// otherwise.
func (pl *Pipeline) routeFor(stg *config.Stage) (*phase.Next, error) {
	if stg.Next == "" {
		return nil, nil
	}
	downstream, ok := pl.partitions[stg.Next]
	if !ok || len(downstream) == 0 {
		return nil, fmt.Errorf("stage %q: next stage %q not built yet", stg.Name, stg.Next)
	}
	if len(downstream) == 1 {
		return phase.Direct(downstream[0]), nil
	}
	targets := make([]phase.Target, len(downstream))
	for i, proc := range downstream {
		targets[i] = proc
	}
	return phase.FanOut(targets...), nil
}

// downstreamFirst orders stages so every stage appears after the stage it
// feeds. The model is a validated acyclic chain, so a simple repeated sweep
// terminates.
func downstreamFirst(model *config.Model) []*config.Stage {
	placed := make(map[string]bool, len(model.Stages))
	ordered := make([]*config.Stage, 0, len(model.Stages))

	for len(ordered) < len(model.Stages) {
		for _, s := range model.Stages {
			if placed[s.Name] {
				continue
			}
			if s.Next == "" || placed[s.Next] {
				ordered = append(ordered, s)
				placed[s.Name] = true
			}
		}
	}
	return ordered
}

// waitSettle is how long Kill waits for each process to acknowledge
// termination before moving on.
const waitSettle = 5 * time.Second

// Pipeline is a running set of phase processes plus the feeding state.
type Pipeline struct {
	flowName      string
	coordinator   flow.Coordinator
	partitions    map[string][]*phase.Process
	all           []*phase.Process
	entries       []*phase.Process
	failed        chan error
	feedCursor    int
	itemsInjected int
}

// Feed delivers one input item to the pipeline, round-robin across the
// entry stage's partitions.
func (pl *Pipeline) Feed(item any) {
	target := pl.entries[pl.feedCursor]
	pl.feedCursor = (pl.feedCursor + 1) % len(pl.entries)
	target.Input(item)
	pl.itemsInjected++
}

// Complete signals every entry partition that the feeder has finished.
// Completion then cascades stage by stage to the flow coordinator.
func (pl *Pipeline) Complete() {
	for _, proc := range pl.entries {
		proc.InputsDone()
	}
}

// Wait blocks until every process has terminated or ctx expires. It
// returns the first abnormal termination reason, if any.
func (pl *Pipeline) Wait(ctx context.Context) error {
	for _, proc := range pl.all {
		select {
		case <-proc.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, proc := range pl.all {
		if err := proc.Err(); err != nil {
			return fmt.Errorf("stage %q: %w", proc.ID(), err)
		}
	}
	return nil
}

// Failed delivers the first abnormal termination of any process. The
// channel never closes; a cleanly completing pipeline never sends on it.
func (pl *Pipeline) Failed() <-chan error {
	return pl.failed
}

// Processes returns the running partitions of one stage, leader first for
// converging stages.
func (pl *Pipeline) Processes(stage string) []*phase.Process {
	return pl.partitions[stage]
}

// Injected reports how many items have been fed so far.
func (pl *Pipeline) Injected() int { return pl.itemsInjected }

// Kill force-completes every process, newest stage first. Used on build
// failure and by tests; a cleanly fed pipeline terminates on its own.
func (pl *Pipeline) Kill() {
	for _, proc := range pl.all {
		proc.Complete()
	}
	deadline := time.After(waitSettle)
	for _, proc := range pl.all {
		select {
		case <-proc.Done():
		case <-deadline:
			return
		}
	}
}
