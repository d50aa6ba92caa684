package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/vk/phasegrid/internal/builder"
	"github.com/vk/phasegrid/internal/ctxlog"
	"github.com/vk/phasegrid/internal/flow"
)

// Run executes the pipeline: builds the stage processes, feeds every input
// line, and waits for flow completion before reporting the accumulated
// results.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.MetricsPort > 0 {
		a.startWebServer(appConfig.MetricsPort)
		defer a.closeWebServer()
	}

	collector := flow.NewCollector()
	pipeline, err := builder.Build(ctx, a.model, a.registry, builder.Options{
		Coordinator: collector,
		Stats:       a.stats,
		Partitions:  appConfig.Workers,
	})
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	a.logger.Info("🚀 Feeding pipeline.", "flow", a.model.Flow.Name, "input", appConfig.InputPath)
	if err := a.feed(pipeline, appConfig.InputPath); err != nil {
		pipeline.Kill()
		return err
	}
	pipeline.Complete()
	a.logger.Debug("All inputs injected.", "items", pipeline.Injected())

	select {
	case <-collector.Done():
	case err := <-pipeline.Failed():
		// A dead stage can never cascade completion to the coordinator, so
		// waiting on it would hang. Tear down and surface the reason.
		pipeline.Kill()
		return fmt.Errorf("pipeline failed: %w", err)
	case <-ctx.Done():
		pipeline.Kill()
		return ctx.Err()
	}

	if err := pipeline.Wait(ctx); err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	a.logger.Info("🏁 Pipeline complete.", "items", pipeline.Injected())

	a.report(collector)
	return nil
}

// feed streams the input source into the pipeline, one line per item.
func (a *App) feed(pipeline *builder.Pipeline, inputPath string) error {
	in := os.Stdin
	if inputPath != "" && inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("opening input %q: %w", inputPath, err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		pipeline.Feed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// report prints the accumulated results per stage, in stable order.
func (a *App) report(collector *flow.Collector) {
	snapshot := collector.Snapshot()
	stages := make([]string, 0, len(snapshot))
	for stg := range snapshot {
		stages = append(stages, stg)
	}
	sort.Strings(stages)

	for _, stg := range stages {
		for _, value := range snapshot[stg] {
			fmt.Fprintf(a.outW, "%s: %v\n", stg, value)
		}
	}
}
