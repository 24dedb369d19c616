// Package export is the composition root of the aggregation core: it
// schedules the configured scripts, tags their output with the
// instance label and joins everything into one exposition stream.
package export

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promexec/promexec/internal/labels"
	"github.com/promexec/promexec/internal/log"
	"github.com/promexec/promexec/internal/model"
	"github.com/promexec/promexec/internal/runner"
	"github.com/promexec/promexec/internal/sched"
)

// InstanceLabelName tags every sample of every script with the
// identity of this exporter instance.
const InstanceLabelName = "instance_id"

// Aggregator runs one aggregation pass per call. It is safe for
// concurrent use: all state is set once at construction.
type Aggregator struct {
	scripts []model.ScriptSpec
	label   labels.Label
	workers int
	sched   *sched.Scheduler
}

// New builds an Aggregator from the loaded configuration. baseDir is
// the directory of the config file, used to resolve relative script
// paths.
func New(cfg model.Config, baseDir string) *Aggregator {
	a := &Aggregator{
		scripts: cfg.ScriptSpecs(baseDir),
		workers: cfg.MaxWorkers(),
		sched:   sched.New(runner.Run),
	}
	if cfg.InstanceID != "" {
		a.label = labels.Label{Name: InstanceLabelName, Value: cfg.InstanceID}
	}
	return a
}

// Aggregate executes every script, applies the instance label to each
// result independently and joins the blocks in configuration order
// with a single newline separator. Error sentinels are comment lines,
// so injection leaves them alone and they can never be mistaken for
// samples. Aggregate never fails; the worst outcome is a stream of
// sentinel comments.
func (a *Aggregator) Aggregate(ctx context.Context) string {
	ctx = log.ContextAttrs(ctx, slog.String("pass_id", uuid.New().String()))

	started := time.Now()
	results := a.sched.Run(ctx, a.scripts, a.workers)

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = labels.Inject(r.Text, a.label)
	}

	slog.DebugContext(ctx, "aggregation pass finished",
		"scripts", len(a.scripts),
		"workers", a.workers,
		"elapsed", time.Since(started).String(),
	)
	return strings.Join(texts, "\n")
}
