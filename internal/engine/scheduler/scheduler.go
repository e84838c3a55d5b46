// Package scheduler runs the calls of a flow in dependency order through the materializer.
package scheduler

import (
	"context"
	"errors"
	"runtime"
	"slices"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/pipecache/internal/engine/materializer"
	"go.trai.ch/zerr"
)

// TaskStatus represents the status of a call in a run.
type TaskStatus string

const (
	// StatusPending indicates the call is waiting for its upstream calls.
	StatusPending TaskStatus = "Pending"
	// StatusRunning indicates the call is in progress.
	StatusRunning TaskStatus = "Running"
	// StatusCompleted indicates the call returned a value.
	StatusCompleted TaskStatus = "Completed"
	// StatusFailed indicates the call returned an error.
	StatusFailed TaskStatus = "Failed"
	// StatusSkipped indicates the call was not made because an upstream call failed.
	StatusSkipped TaskStatus = "Skipped"
)

// RunOptions selects the calls of a run.
type RunOptions struct {
	// Targets restricts the run to the matching calls. All calls run when empty.
	Targets []string
	// WithUpstream adds every transitive upstream call of the targets.
	// Upstream calls left out are rehydrated from the store.
	WithUpstream bool
	// Parallelism bounds the number of concurrent calls. Zero means the number of CPUs.
	Parallelism int
}

// Report describes a finished run.
type Report struct {
	RunID   string
	Order   []domain.TaskID
	Status  map[domain.TaskID]TaskStatus
	Outputs map[domain.TaskID]domain.Value
	Stages  []string
}

// Scheduler manages the execution of the calls of a flow.
type Scheduler struct {
	materializer *materializer.Materializer
	logger       ports.Logger
	tracer       ports.Tracer
	metrics      ports.Metrics
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	m *materializer.Materializer,
	logger ports.Logger,
	tracer ports.Tracer,
	metrics ports.Metrics,
) *Scheduler {
	return &Scheduler{
		materializer: m,
		logger:       logger,
		tracer:       tracer,
		metrics:      metrics,
	}
}

// Run executes the selected calls of flow. Each call starts once all of its
// selected upstream calls have completed. A failed call skips its dependents
// while independent calls keep running.
func (s *Scheduler) Run(ctx context.Context, flow *domain.Flow, opts RunOptions) (*Report, error) {
	if err := flow.Validate(); err != nil {
		return nil, err
	}
	selected, err := selectCalls(flow, opts)
	if err != nil {
		return nil, err
	}

	run := s.materializer.NewRun()
	ctx, span := s.tracer.Start(ctx, "run", ports.WithAttribute(materializer.AttrRunID, run.ID))
	defer span.End()

	state := s.newRunState(ctx, flow, run, selected, opts.Parallelism)
	s.logger.Debug("run started", "run_id", run.ID, "calls", len(state.order))

	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil {
			if state.active == 0 {
				state.errs = errors.Join(state.errs, state.ctx.Err())
				break
			}
			state.handleResult(<-state.resultsCh)
			continue
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	report := state.report()
	if state.errs != nil {
		span.RecordError(state.errs)
		return report, zerr.Wrap(state.errs, domain.ErrRunFailed.Error())
	}
	return report, nil
}

// selectCalls returns the identities of the calls taking part in the run.
func selectCalls(flow *domain.Flow, opts RunOptions) (map[domain.TaskID]struct{}, error) {
	selected := make(map[domain.TaskID]struct{})
	if len(opts.Targets) == 0 {
		for call := range flow.Walk() {
			selected[call.Task.ID] = struct{}{}
		}
		return selected, nil
	}

	var visit func(id domain.TaskID)
	visit = func(id domain.TaskID) {
		if _, ok := selected[id]; ok {
			return
		}
		selected[id] = struct{}{}
		if !opts.WithUpstream {
			return
		}
		call, _ := flow.Call(id)
		for _, dep := range call.Dependencies() {
			visit(dep)
		}
	}
	for _, target := range opts.Targets {
		ids := flow.Find(target)
		if len(ids) == 0 {
			return nil, zerr.With(domain.ErrTaskNotFound, "target", target)
		}
		for _, id := range ids {
			visit(id)
		}
	}
	return selected, nil
}

type result struct {
	task  domain.TaskID
	value domain.Value
	err   error
}

type schedulerRunState struct {
	flow        *domain.Flow
	run         *materializer.Run
	order       []domain.TaskID
	selected    map[domain.TaskID]struct{}
	inDegree    map[domain.TaskID]int
	status      map[domain.TaskID]TaskStatus
	outputs     map[domain.TaskID]domain.Value
	ready       []domain.TaskID
	active      int
	resultsCh   chan result
	errs        error
	ctx         context.Context
	parallelism int
	s           *Scheduler
}

func (s *Scheduler) newRunState(
	ctx context.Context, flow *domain.Flow, run *materializer.Run, selected map[domain.TaskID]struct{}, parallelism int,
) *schedulerRunState {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	state := &schedulerRunState{
		flow:        flow,
		run:         run,
		selected:    selected,
		inDegree:    make(map[domain.TaskID]int, len(selected)),
		status:      make(map[domain.TaskID]TaskStatus, len(selected)),
		outputs:     make(map[domain.TaskID]domain.Value, len(selected)),
		resultsCh:   make(chan result, parallelism),
		ctx:         ctx,
		parallelism: parallelism,
		s:           s,
	}

	for call := range flow.Walk() {
		id := call.Task.ID
		if _, ok := selected[id]; !ok {
			continue
		}
		state.order = append(state.order, id)
		state.status[id] = StatusPending
		for _, dep := range call.Dependencies() {
			if _, ok := selected[dep]; ok {
				state.inDegree[id]++
			}
		}
		if state.inDegree[id] == 0 {
			state.ready = append(state.ready, id)
		}
	}
	return state
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		id := state.ready[0]
		state.ready = state.ready[1:]

		call, _ := state.flow.Call(id)
		state.active++
		state.status[id] = StatusRunning

		positional, keyword, err := state.resolveInputs(call)
		if err != nil {
			state.s.metrics.RecordCall(state.ctx, id, domain.OutcomeFailed)
			state.handleResult(result{task: id, err: err})
			continue
		}

		go func() {
			v, err := state.s.materializer.Invoke(state.ctx, state.run, call.Task, positional, keyword)
			state.resultsCh <- result{task: id, value: v, err: err}
		}()
	}
}

// resolveInputs substitutes references to calls completed in this run by their values.
// References to calls outside the run stay unresolved for rehydration.
func (state *schedulerRunState) resolveInputs(call *domain.Call) ([]domain.Input, map[string]domain.Input, error) {
	resolve := func(in domain.Input) (domain.Input, error) {
		if in.Ref == nil {
			return in, nil
		}
		out, ok := state.outputs[in.Ref.Task]
		if !ok {
			return in, nil
		}
		v, err := domain.Select(out, in.Ref.Index)
		if err != nil {
			return domain.Input{}, zerr.With(err, "upstream", in.Ref.Task.String())
		}
		return domain.Input{Value: v, Ref: in.Ref}, nil
	}

	var err error
	positional := make([]domain.Input, len(call.Positional))
	for i, in := range call.Positional {
		if positional[i], err = resolve(in); err != nil {
			return nil, nil, err
		}
	}
	keyword := make(map[string]domain.Input, len(call.Keyword))
	for name, in := range call.Keyword {
		if keyword[name], err = resolve(in); err != nil {
			return nil, nil, err
		}
	}
	return positional, keyword, nil
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	if res.err != nil {
		wrappedErr := zerr.With(zerr.Wrap(res.err, domain.ErrTaskExecutionFailed.Error()), "task", res.task.String())
		state.errs = errors.Join(state.errs, wrappedErr)
		state.status[res.task] = StatusFailed
		state.skipDependents(res.task)
		return
	}

	state.status[res.task] = StatusCompleted
	state.outputs[res.task] = res.value
	for _, dep := range state.flow.Dependents(res.task) {
		if _, ok := state.selected[dep]; !ok {
			continue
		}
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 && state.status[dep] == StatusPending {
			state.ready = append(state.ready, dep)
		}
	}
}

func (state *schedulerRunState) skipDependents(id domain.TaskID) {
	for _, dep := range state.flow.Dependents(id) {
		if _, ok := state.selected[dep]; !ok || state.status[dep] != StatusPending {
			continue
		}
		state.status[dep] = StatusSkipped
		state.s.metrics.RecordCall(state.ctx, dep, domain.OutcomeSkipped)
		state.s.logger.Warn(domain.ErrTaskSkipped.Error(), "task", dep.String(), "upstream", id.String())
		state.skipDependents(dep)
	}
}

func (state *schedulerRunState) report() *Report {
	return &Report{
		RunID:   state.run.ID,
		Order:   slices.Clone(state.order),
		Status:  state.status,
		Outputs: state.outputs,
		Stages:  state.run.OpenedStages(),
	}
}
