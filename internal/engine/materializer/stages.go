package materializer

import (
	"context"
	"slices"
	"sync"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// StageTracker remembers which stages were made ready during a run.
type StageTracker struct {
	store ports.Store
	group singleflight.Group

	mu    sync.RWMutex
	ready map[string]struct{}
}

// NewStageTracker creates a StageTracker with no ready stages.
func NewStageTracker(store ports.Store) *StageTracker {
	return &StageTracker{
		store: store,
		ready: make(map[string]struct{}),
	}
}

// Ensure makes stage and all its ancestors ready, root first.
// The store is asked at most once per stage; concurrent callers share one request,
// and a failed request is retried by the next caller.
func (t *StageTracker) Ensure(ctx context.Context, stage *domain.Stage) error {
	if stage == nil {
		return domain.ErrTaskWithoutStage
	}
	for _, s := range stage.Lineage() {
		if err := t.ensureOne(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (t *StageTracker) ensureOne(ctx context.Context, stage *domain.Stage) error {
	path := stage.Path()
	if t.isReady(path) {
		return nil
	}

	_, err, _ := t.group.Do(path, func() (any, error) {
		if t.isReady(path) {
			return nil, nil
		}
		if err := t.store.EnsureStageReady(ctx, stage); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrStageNotReady.Error()), "stage", path)
		}
		t.mu.Lock()
		t.ready[path] = struct{}{}
		t.mu.Unlock()
		return nil, nil
	})
	return err
}

func (t *StageTracker) isReady(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ready[path]
	return ok
}

// Opened returns the paths of the ready stages in sorted order.
func (t *StageTracker) Opened() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.ready))
	for p := range t.ready {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}
