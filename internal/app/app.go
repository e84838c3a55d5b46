// Package app implements the application layer for pipecache.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/pipecache/internal/engine/scheduler"
	"go.trai.ch/pipecache/internal/ui/output"
	"go.trai.ch/pipecache/internal/ui/style"
	"go.trai.ch/zerr"
)

// CallCounter reports how many task calls ended with each outcome.
type CallCounter interface {
	Counts(ctx context.Context) (map[domain.CallOutcome]int64, error)
}

// RunOptions configures a pipeline run.
type RunOptions struct {
	// WithUpstream runs the upstream calls of the targets instead of rehydrating them.
	WithUpstream bool
	// Parallelism overrides the configured parallelism when positive.
	Parallelism int
}

// App represents the main application logic.
type App struct {
	scheduler *scheduler.Scheduler
	admin     ports.StoreAdmin
	logger    ports.Logger
	config    *domain.Config
	counter   CallCounter
	pipeline  PipelineFunc
	out       io.Writer
}

// New creates a new App instance running the example pipeline.
func New(
	sched *scheduler.Scheduler,
	admin ports.StoreAdmin,
	logger ports.Logger,
	cfg *domain.Config,
	counter CallCounter,
) *App {
	return &App{
		scheduler: sched,
		admin:     admin,
		logger:    logger,
		config:    cfg,
		counter:   counter,
		pipeline:  ExamplePipeline(time.Now),
		out:       os.Stdout,
	}
}

// WithPipeline replaces the pipeline the app runs.
func (a *App) WithPipeline(fn PipelineFunc) *App {
	a.pipeline = fn
	return a
}

// WithOutput sets the writer for run summaries and record listings.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Run executes the pipeline. With targets only the matching calls run and the
// outputs of their upstream calls are read back from the store.
func (a *App) Run(ctx context.Context, targets []string, opts RunOptions) error {
	flow, err := a.pipeline()
	if err != nil {
		return zerr.Wrap(err, "failed to build pipeline")
	}

	parallelism := a.config.Parallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}

	before, err := a.counter.Counts(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to read call counts")
	}

	report, runErr := a.scheduler.Run(ctx, flow, scheduler.RunOptions{
		Targets:      targets,
		WithUpstream: opts.WithUpstream,
		Parallelism:  parallelism,
	})
	if report == nil {
		return runErr
	}

	after, err := a.counter.Counts(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to read call counts")
	}
	a.printReport(report, after, before)

	if runErr != nil {
		return zerr.With(runErr, "run_id", report.RunID)
	}
	return nil
}

// Records lists the stored metadata records, optionally only those of task.
// task matches a full identity, a stage/name pair or a bare task name.
func (a *App) Records(ctx context.Context, task string) error {
	records, err := a.admin.ListMetadata(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to list records")
	}

	rows := [][]string{{"TASK", "VERSION", "INPUT HASH", "RUN", "TIMESTAMP"}}
	for _, rec := range records {
		if task != "" && !matchesTask(rec.Task, task) {
			continue
		}
		version := rec.Version
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			rec.Task.String(),
			version,
			rec.InputHash,
			rec.RunID,
			rec.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	if len(rows) == 1 {
		a.logger.Info("no records found", "store", a.config.StorePath)
		return nil
	}
	_, err = io.WriteString(a.out, renderTable(rows))
	return err
}

// Clean removes every stored output and record.
func (a *App) Clean(ctx context.Context) error {
	if err := a.admin.Clean(ctx); err != nil {
		return zerr.Wrap(err, "failed to clean store")
	}
	a.logger.Info("store cleaned", "path", a.config.StorePath)
	return nil
}

func (a *App) printReport(report *scheduler.Report, after, before map[domain.CallOutcome]int64) {
	out := output.New(a.out)
	for _, id := range report.Order {
		var icon string
		var color termenv.Color
		switch report.Status[id] {
		case scheduler.StatusCompleted:
			icon, color = style.Check, termenv.RGBColor(string(style.Green))
		case scheduler.StatusFailed:
			icon, color = style.Cross, termenv.RGBColor(string(style.Red))
		default:
			icon, color = style.Circle, termenv.RGBColor(string(style.Slate))
		}
		line := fmt.Sprintf("%s %s", icon, id.String())
		_, _ = fmt.Fprintln(out, out.String(line).Foreground(color).String())
	}

	outcomes := []domain.CallOutcome{
		domain.OutcomeExecuted,
		domain.OutcomeCached,
		domain.OutcomeMemoized,
		domain.OutcomeFailed,
		domain.OutcomeSkipped,
	}
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%d %s", after[o]-before[o], o))
	}
	summary := fmt.Sprintf("run %s: %s", report.RunID, strings.Join(parts, ", "))
	_, _ = fmt.Fprintln(out, style.Muted.Render(summary))
}

func matchesTask(id domain.TaskID, target string) bool {
	return target == id.String() ||
		target == id.Stage.String()+"/"+id.Name.String() ||
		target == id.Name.String()
}

func renderTable(rows [][]string) string {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = lipgloss.NewStyle().Width(widths[i] + 2).Render(cell)
			if r == 0 {
				cells[i] = style.Header.Render(cells[i])
			}
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, ""), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
