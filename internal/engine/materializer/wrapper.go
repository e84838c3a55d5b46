// Package materializer wraps task calls with run-scoped memoization, cross-run
// cache reuse, stage initialization and rehydration of upstream outputs.
package materializer

import (
	"context"
	"time"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
)

// Span attribute keys set on every wrapped call.
const (
	AttrTask      = "pipecache.task"
	AttrInputHash = "pipecache.input_hash"
	AttrCached    = "pipecache.cached"
	AttrOutcome   = "pipecache.outcome"
	AttrRunID     = "pipecache.run_id"
)

// Materializer executes task calls through the cache.
type Materializer struct {
	store   ports.Store
	logger  ports.Logger
	tracer  ports.Tracer
	metrics ports.Metrics
	now     func() time.Time

	keys       *KeyDeriver
	validator  *Validator
	rehydrator *Rehydrator
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithClock sets the clock used for record timestamps and run ids.
func WithClock(now func() time.Time) Option {
	return func(m *Materializer) {
		m.now = now
	}
}

// New creates a Materializer.
func New(
	store ports.Store,
	hasher ports.Hasher,
	logger ports.Logger,
	tracer ports.Tracer,
	metrics ports.Metrics,
	opts ...Option,
) *Materializer {
	m := &Materializer{
		store:      store,
		logger:     logger,
		tracer:     tracer,
		metrics:    metrics,
		now:        time.Now,
		keys:       NewKeyDeriver(store, hasher),
		validator:  NewValidator(store),
		rehydrator: NewRehydrator(store),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Invoke binds call site inputs to the task parameters and calls the task.
func (m *Materializer) Invoke(
	ctx context.Context, run *Run, task *domain.Task, positional []domain.Input, keyword map[string]domain.Input,
) (domain.Value, error) {
	args, err := task.Bind(positional, keyword)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, run, task, args)
}

// Call returns the output of task for args, executing the task body only when neither
// the run memo nor the store hold a reusable output.
// Errors returned by the task body are passed through unchanged.
func (m *Materializer) Call(ctx context.Context, run *Run, task *domain.Task, args domain.Args) (domain.Value, error) {
	ctx, span := m.tracer.Start(ctx, task.ID.String())
	defer span.End()
	span.SetAttribute(AttrTask, task.ID.String())
	span.SetAttribute(AttrRunID, run.ID)

	out, outcome, err := m.call(ctx, span, run, task, args)
	if err != nil {
		outcome = domain.OutcomeFailed
		span.RecordError(err)
	}
	span.SetAttribute(AttrOutcome, string(outcome))
	span.SetAttribute(AttrCached, outcome.Reused())
	m.metrics.RecordCall(ctx, task.ID, outcome)
	return out, err
}

func (m *Materializer) call(
	ctx context.Context, span ports.Span, run *Run, task *domain.Task, args domain.Args,
) (domain.Value, domain.CallOutcome, error) {
	keys, err := m.keys.DeriveKeys(ctx, task, args)
	if err != nil {
		return nil, domain.OutcomeFailed, err
	}
	span.SetAttribute(AttrInputHash, keys.InputHash)

	memoized, found, err := run.memo.LookupOrReserve(ctx, keys.Combined)
	if err != nil {
		return nil, domain.OutcomeFailed, err
	}
	if found {
		m.logger.Debug("memo hit", "task", task.ID.String())
		return memoized, domain.OutcomeMemoized, nil
	}

	committed := false
	defer func() {
		if !committed {
			run.memo.Release(keys.Combined)
		}
	}()
	commit := func(v domain.Value) domain.Value {
		cleared := domain.ClearPayloads(v)
		run.memo.Store(keys.Combined, cleared)
		committed = true
		return cleared
	}

	if err := run.stages.Ensure(ctx, task.Stage); err != nil {
		return nil, domain.OutcomeFailed, zerr.With(err, "task", task.ID.String())
	}

	info, err := m.validator.Check(ctx, task, keys)
	if err != nil {
		return nil, domain.OutcomeFailed, err
	}
	if !task.Lazy && info.IsCacheValid && info.CachedOutput != nil {
		copied, err := m.store.CopyCachedOutput(ctx, task, *info.Record, info.CachedOutput)
		if err != nil {
			return nil, domain.OutcomeFailed, zerr.With(err, "task", task.ID.String())
		}
		m.logger.Info("cache hit", "task", task.ID.String(), "input_hash", keys.InputHash, "run_id", info.Record.RunID)
		return commit(copied), domain.OutcomeCached, nil
	}

	args, err = m.rehydrator.Fill(ctx, args)
	if err != nil {
		return nil, domain.OutcomeFailed, zerr.With(err, "task", task.ID.String())
	}
	inputs, tables, err := m.store.DematerializeInputs(ctx, task, args)
	if err != nil {
		return nil, domain.OutcomeFailed, zerr.With(err, "task", task.ID.String())
	}

	result, err := task.Fn(ctx, inputs)
	if err != nil {
		return nil, domain.OutcomeFailed, err
	}
	if err := checkOutput(task, result); err != nil {
		return nil, domain.OutcomeFailed, err
	}

	stored, err := m.store.Materialize(ctx, domain.MaterializeRequest{
		Task:      task,
		Keys:      keys,
		RunID:     run.ID,
		Inputs:    tables,
		Result:    result,
		CacheInfo: &info,
		Timestamp: m.now(),
	})
	if err != nil {
		return nil, domain.OutcomeFailed, zerr.With(err, "task", task.ID.String())
	}

	if task.Lazy {
		m.logger.Info("executed", "task", task.ID.String(), "input_hash", keys.InputHash, "expression_unchanged", info.IsCacheValid)
	} else {
		m.logger.Info("executed", "task", task.ID.String(), "input_hash", keys.InputHash)
	}
	return commit(stored), domain.OutcomeExecuted, nil
}

func checkOutput(task *domain.Task, result domain.Value) error {
	if result == nil {
		return zerr.With(domain.ErrNotMaterializable, "task", task.ID.String())
	}
	if task.NOut > 1 {
		seq, ok := result.(domain.Sequence)
		if !ok || len(seq) != task.NOut {
			err := zerr.With(domain.ErrOutputArity, "task", task.ID.String())
			return zerr.With(err, "expected", task.NOut)
		}
	}
	if err := domain.Validate(result); err != nil {
		return zerr.With(err, "task", task.ID.String())
	}
	return nil
}
