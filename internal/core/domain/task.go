package domain

import (
	"context"
	"reflect"
	"runtime"
	"strings"

	"go.trai.ch/zerr"
)

// TaskID is the identity of a task: its name, the path of its owning stage and a
// position hash that tells apart repeated definitions inside the same stage.
type TaskID struct {
	Name     InternedString `json:"name"`
	Stage    InternedString `json:"stage"`
	Position string         `json:"position,omitempty"`
}

// String returns the identity as stage/name, suffixed with @position when set.
func (id TaskID) String() string {
	s := id.Stage.String() + "/" + id.Name.String()
	if id.Position != "" {
		s += "@" + id.Position
	}
	return s
}

// Stage is a node in the tree of storage namespaces.
type Stage struct {
	Name   string
	Parent *Stage
}

// NewStage creates a stage below parent. A nil parent creates a root stage.
func NewStage(name string, parent *Stage) *Stage {
	return &Stage{Name: name, Parent: parent}
}

// Lineage returns the stage and its ancestors, root first.
func (s *Stage) Lineage() []*Stage {
	var chain []*Stage
	for cur := s; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Path returns the slash separated names of the lineage.
func (s *Stage) Path() string {
	lineage := s.Lineage()
	names := make([]string, len(lineage))
	for i, st := range lineage {
		names[i] = st.Name
	}
	return strings.Join(names, "/")
}

// InputType tells the store how rehydrated and upstream inputs are handed to a task body.
type InputType uint8

const (
	// InputHandle loads the payload of every table and blob argument before the body runs.
	InputHandle InputType = iota
	// InputReference passes handles without loading payloads.
	InputReference
)

func (t InputType) String() string {
	if t == InputReference {
		return "reference"
	}
	return "handle"
}

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context, args Args) (Value, error)

// CacheFunc computes an additional cache validity token from the task arguments.
type CacheFunc func(ctx context.Context, args Args) (Value, error)

// Param describes one parameter of a task. A nil Default marks the parameter as required.
type Param struct {
	Name    string
	Default Value
}

// Ref points at the output of an upstream task. Index selects one element of a
// multi-output task; WholeOutput selects the output as returned.
type Ref struct {
	Task  TaskID
	Index int
}

// WholeOutput is the Ref index that selects an entire output.
const WholeOutput = -1

// Input is an argument as written at the call site: either a literal value or a reference.
type Input struct {
	Value Value
	Ref   *Ref
}

// Lit wraps a literal value as an Input.
func Lit(v Value) Input {
	return Input{Value: v}
}

// From references the whole output of an upstream task.
func From(id TaskID) Input {
	return Input{Ref: &Ref{Task: id, Index: WholeOutput}}
}

// FromIndex references one element of the output of a multi-output upstream task.
func FromIndex(id TaskID, index int) Input {
	return Input{Ref: &Ref{Task: id, Index: index}}
}

// Task is a registered pipeline task. It is immutable once registered.
type Task struct {
	ID        TaskID
	Stage     *Stage
	Version   string
	Lazy      bool
	Cache     CacheFunc
	InputType InputType
	NOut      int
	Params    []Param
	Fn        TaskFunc
}

// TaskOption configures a task at registration time.
type TaskOption func(*Task)

// WithName overrides the task name, which defaults to the name of the body function.
func WithName(name string) TaskOption {
	return func(t *Task) {
		t.ID.Name = NewInternedString(name)
	}
}

// WithInputType sets how inputs are handed to the task body.
func WithInputType(it InputType) TaskOption {
	return func(t *Task) {
		t.InputType = it
	}
}

// WithVersion sets the task version. Eager tasks without a version always execute.
func WithVersion(version string) TaskOption {
	return func(t *Task) {
		t.Version = version
	}
}

// WithCache sets a custom cache validity function.
func WithCache(fn CacheFunc) TaskOption {
	return func(t *Task) {
		t.Cache = fn
	}
}

// WithLazy marks the task as producing deferred expressions.
func WithLazy(lazy bool) TaskOption {
	return func(t *Task) {
		t.Lazy = lazy
	}
}

// WithNOut sets the number of outputs the task returns.
func WithNOut(n int) TaskOption {
	return func(t *Task) {
		t.NOut = n
	}
}

// WithParams declares the parameters of the task in positional order.
func WithParams(params ...Param) TaskOption {
	return func(t *Task) {
		t.Params = params
	}
}

// Bind matches call site inputs against the task parameters.
// Positional inputs fill parameters in order, keyword inputs by name, and
// remaining parameters take their defaults.
func (t *Task) Bind(positional []Input, keyword map[string]Input) (Args, error) {
	if len(positional) > len(t.Params) {
		return nil, t.bindError("too many positional arguments", len(positional))
	}
	for name := range keyword {
		if t.paramIndex(name) < 0 {
			return nil, t.bindError("unknown parameter", name)
		}
	}

	args := make(Args, len(t.Params))
	for i, p := range t.Params {
		in, fromKeyword := keyword[p.Name]
		if i < len(positional) {
			if fromKeyword {
				return nil, t.bindError("parameter given twice", p.Name)
			}
			in = positional[i]
		} else if !fromKeyword {
			if p.Default == nil {
				return nil, t.bindError("missing parameter", p.Name)
			}
			in = Lit(p.Default)
		}
		if in.Ref == nil && in.Value == nil {
			return nil, t.bindError("empty argument", p.Name)
		}
		args[i] = Arg{Name: p.Name, Value: in.Value, Ref: in.Ref}
	}
	return args, nil
}

func (t *Task) paramIndex(name string) int {
	for i, p := range t.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (t *Task) bindError(reason string, detail any) error {
	err := zerr.With(zerr.Wrap(ErrInvalidArguments, reason), "task", t.ID.String())
	return zerr.With(err, "detail", detail)
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
