package domain

import (
	"fmt"
	"iter"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// Registry owns the task definitions of a pipeline.
type Registry struct {
	mu       sync.Mutex
	tasks    map[TaskID]*Task
	order    []TaskID
	ordinals map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks:    make(map[TaskID]*Task),
		ordinals: make(map[string]int),
	}
}

// WithPosition pins the position hash of a task instead of deriving it from the
// registration order.
func WithPosition(position string) TaskOption {
	return func(t *Task) {
		t.ID.Position = position
	}
}

// Register defines a task in stage. The name defaults to the name of fn; repeated
// definitions of the same name in the same stage get distinct position hashes,
// the Digest of stage, name and definition ordinal.
func (r *Registry) Register(stage *Stage, fn TaskFunc, opts ...TaskOption) (*Task, error) {
	if stage == nil {
		return nil, zerr.With(ErrTaskWithoutStage, "task", funcName(fn))
	}
	if fn == nil {
		return nil, zerr.With(ErrInvalidTask, "reason", "nil task body")
	}

	t := &Task{
		ID: TaskID{
			Name:  NewInternedString(funcName(fn)),
			Stage: NewInternedString(stage.Path()),
		},
		Stage: stage,
		NOut:  1,
		Fn:    fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := checkTask(t); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID.Position == "" {
		slot := t.ID.Stage.String() + "\x00" + t.ID.Name.String()
		t.ID.Position = Digest(t.ID.Stage.String(), t.ID.Name.String(), strconv.Itoa(r.ordinals[slot]))
		r.ordinals[slot]++
	}
	if _, exists := r.tasks[t.ID]; exists {
		return nil, zerr.With(ErrTaskAlreadyExists, "task", t.ID.String())
	}
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	return t, nil
}

// Get returns the task with the given identity.
func (r *Registry) Get(id TaskID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Tasks yields the registered tasks in registration order.
func (r *Registry) Tasks() iter.Seq[*Task] {
	r.mu.Lock()
	order := make([]TaskID, len(r.order))
	copy(order, r.order)
	r.mu.Unlock()

	return func(yield func(*Task) bool) {
		for _, id := range order {
			t, _ := r.Get(id)
			if !yield(t) {
				return
			}
		}
	}
}

func checkTask(t *Task) error {
	if t.ID.Name.String() == "" {
		return zerr.With(ErrInvalidTask, "reason", "empty task name")
	}
	if t.NOut < 1 {
		return zerr.With(zerr.With(ErrInvalidTask, "reason", "nout must be at least 1"), "task", t.ID.Name.String())
	}
	seen := make(map[string]struct{}, len(t.Params))
	for _, p := range t.Params {
		if _, dup := seen[p.Name]; dup {
			return zerr.With(zerr.With(ErrInvalidTask, "reason", "duplicate parameter"), "param", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Default == nil {
			continue
		}
		if err := Validate(p.Default); err != nil {
			return zerr.With(err, "param", p.Name)
		}
	}
	return nil
}

// Digest returns the hex xxhash digest of the ordered parts. Each part is followed
// by a zero byte, so ("ab", "c") and ("a", "bc") differ and empty parts still count.
// It is the digest format of every key, object id and position hash.
func Digest(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return FormatDigest(d.Sum64())
}

// FormatDigest renders a 64-bit digest as 16 hex characters.
func FormatDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
