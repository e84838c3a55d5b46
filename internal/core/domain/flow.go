// Package domain contains the core domain models of the pipeline cache: values,
// tasks, stages, flows and stored output metadata.
package domain

import (
	"iter"
	"strings"

	"go.trai.ch/zerr"
)

// Call is one invocation of a task inside a flow.
type Call struct {
	Task       *Task
	Positional []Input
	Keyword    map[string]Input
}

// Dependencies returns the identities of the tasks the call reads from, in argument order.
func (c *Call) Dependencies() []TaskID {
	var deps []TaskID
	seen := make(map[TaskID]struct{})
	add := func(in Input) {
		if in.Ref == nil {
			return
		}
		if _, ok := seen[in.Ref.Task]; ok {
			return
		}
		seen[in.Ref.Task] = struct{}{}
		deps = append(deps, in.Ref.Task)
	}
	for _, in := range c.Positional {
		add(in)
	}
	for _, p := range c.Task.Params {
		if in, ok := c.Keyword[p.Name]; ok {
			add(in)
		}
	}
	return deps
}

// Flow is the graph of task calls of a pipeline. Each task is called at most once.
type Flow struct {
	calls          map[TaskID]*Call
	order          []TaskID
	executionOrder []TaskID
}

// NewFlow creates an empty Flow.
func NewFlow() *Flow {
	return &Flow{
		calls: make(map[TaskID]*Call),
	}
}

// Add adds a call of task to the flow.
// It returns an error if the task is already called in the flow.
func (f *Flow) Add(task *Task, positional []Input, keyword map[string]Input) (TaskID, error) {
	if _, exists := f.calls[task.ID]; exists {
		return TaskID{}, zerr.With(ErrTaskAlreadyExists, "task", task.ID.String())
	}
	if _, err := task.Bind(positional, keyword); err != nil {
		return TaskID{}, err
	}
	f.calls[task.ID] = &Call{Task: task, Positional: positional, Keyword: keyword}
	f.order = append(f.order, task.ID)
	return task.ID, nil
}

// Call returns the call of the task with the given identity.
func (f *Flow) Call(id TaskID) (*Call, bool) {
	c, ok := f.calls[id]
	return c, ok
}

// Len returns the number of calls in the flow.
func (f *Flow) Len() int {
	return len(f.calls)
}

// Find returns the identities matching a target: a full identity string, a stage/name
// pair or a bare task name.
func (f *Flow) Find(target string) []TaskID {
	var ids []TaskID
	for _, id := range f.order {
		full := id.String()
		short := id.Stage.String() + "/" + id.Name.String()
		if target == full || target == short || target == id.Name.String() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Validate checks for missing dependencies and cycles using a topological sort.
// It populates the execution order if successful.
func (f *Flow) Validate() error {
	f.executionOrder = make([]TaskID, 0, len(f.calls))
	visited := make(map[TaskID]int) // 0: unvisited, 1: visiting, 2: visited
	var path []TaskID

	var visit func(u TaskID) error
	visit = func(u TaskID) error {
		visited[u] = 1
		path = append(path, u)

		call, exists := f.calls[u]
		if !exists {
			return zerr.With(ErrMissingDependency, "dependency", u.String())
		}

		for _, dep := range call.Dependencies() {
			if visited[dep] == 1 {
				return buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		f.executionOrder = append(f.executionOrder, u)
		return nil
	}

	for _, id := range f.order {
		if visited[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

func buildCycleError(path []TaskID, dep TaskID) error {
	startIdx := 0
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	names := make([]string, 0, len(path)-startIdx+1)
	for _, node := range path[startIdx:] {
		names = append(names, node.String())
	}
	names = append(names, dep.String())
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(names, " -> "))
}

// Walk returns an iterator that yields calls in execution order.
// It assumes Validate() has been called and returned nil.
func (f *Flow) Walk() iter.Seq[*Call] {
	return func(yield func(*Call) bool) {
		for _, id := range f.executionOrder {
			if !yield(f.calls[id]) {
				return
			}
		}
	}
}

// Dependents returns the calls that read the output of id.
func (f *Flow) Dependents(id TaskID) []TaskID {
	var out []TaskID
	for _, other := range f.order {
		for _, dep := range f.calls[other].Dependencies() {
			if dep == id {
				out = append(out, other)
				break
			}
		}
	}
	return out
}
