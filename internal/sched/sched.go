// Package sched runs configured scripts with bounded parallelism while
// keeping the output order deterministic.
package sched

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/promexec/promexec/internal/model"
)

// NoScriptsSentinel is returned as the only result when nothing is
// configured.
const NoScriptsSentinel = "# No scripts configured\n"

// RunFunc executes one script and returns its text. runner.Run
// satisfies it.
type RunFunc func(ctx context.Context, script model.ScriptSpec) string

// Scheduler fans scripts out to a bounded worker pool and reassembles
// the results in configuration order.
type Scheduler struct {
	run RunFunc
}

func New(run RunFunc) *Scheduler {
	return &Scheduler{run: run}
}

// Run executes all scripts with at most maxWorkers in flight and
// returns exactly one TaskResult per spec, ordered by position.
// Completion order is unconstrained; results land in per-position
// slots, so no ordering work is shared between workers. One script
// failing or timing out never cancels its siblings; Run returns only
// after every task has resolved.
func (s *Scheduler) Run(ctx context.Context, scripts []model.ScriptSpec, maxWorkers int) []model.TaskResult {
	if len(scripts) == 0 {
		return []model.TaskResult{{Position: 0, Text: NoScriptsSentinel}}
	}

	results := make([]model.TaskResult, len(scripts))

	if maxWorkers <= 1 {
		for i, script := range scripts {
			results[i] = s.task(ctx, i, script)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for i, script := range scripts {
		g.Go(func() error {
			results[i] = s.task(ctx, i, script)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// task guards one execution: any fault inside the pool, not just a
// failing script, becomes a sentinel so the scheduler always yields
// exactly one result per spec.
func (s *Scheduler) task(ctx context.Context, pos int, script model.ScriptSpec) (res model.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "script task panicked", "position", pos, "panic", r)
			res = model.TaskResult{
				Position: pos,
				Text:     fmt.Sprintf("# ERROR: Exception running script %d\n", pos),
			}
		}
	}()

	return model.TaskResult{Position: pos, Text: s.run(ctx, script)}
}
