package materializer_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/internal/adapters/cas"
	"go.trai.ch/pipecache/internal/adapters/hasher"
	"go.trai.ch/pipecache/internal/adapters/telemetry"
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/pipecache/internal/core/ports/mocks"
	"go.trai.ch/pipecache/internal/engine/materializer"
	"go.uber.org/mock/gomock"
)

type logEntry struct {
	msg  string
	args []any
}

// recordingLogger returns a mock logger that accepts every call and keeps Info entries.
func recordingLogger(ctrl *gomock.Controller) (*mocks.MockLogger, func() []logEntry) {
	var (
		mu      sync.Mutex
		entries []logEntry
	)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes().Do(func(msg string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, logEntry{msg: msg, args: args})
	})
	return log, func() []logEntry {
		mu.Lock()
		defer mu.Unlock()
		return append([]logEntry(nil), entries...)
	}
}

// logValue returns the value logged for key in the last entry with msg.
func logValue(entries []logEntry, msg, key string) (any, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].msg != msg {
			continue
		}
		args := entries[i].args
		for j := 0; j+1 < len(args); j += 2 {
			if args[j] == key {
				return args[j+1], true
			}
		}
		return nil, false
	}
	return nil, false
}

type fixture struct {
	store   *cas.Store
	metrics *telemetry.Collector
	logs    func() []logEntry
	m       *materializer.Materializer
}

// newFixture builds a materializer over a store in root. Fixtures sharing a root
// behave like separate processes using the same store.
func newFixture(t *testing.T, root string) *fixture {
	t.Helper()
	return newFixtureWithStore(t, cas.NewStore(root, hasher.New()), nil)
}

func newFixtureWithStore(t *testing.T, disk *cas.Store, store ports.Store) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log, logs := recordingLogger(ctrl)

	metrics, err := telemetry.NewCollector()
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Shutdown(context.Background()) })

	if store == nil {
		store = disk
	}
	return &fixture{
		store:   disk,
		metrics: metrics,
		logs:    logs,
		m:       materializer.New(store, hasher.New(), log, telemetry.NewNoOpTracer(), metrics),
	}
}

func (f *fixture) counts(t *testing.T) map[domain.CallOutcome]int64 {
	t.Helper()
	counts, err := f.metrics.Counts(t.Context())
	require.NoError(t, err)
	return counts
}

// counted wraps fn and counts its executions.
func counted(fn domain.TaskFunc) (domain.TaskFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(ctx context.Context, args domain.Args) (domain.Value, error) {
		n.Add(1)
		return fn(ctx, args)
	}, &n
}

func doubleBody(_ context.Context, args domain.Args) (domain.Value, error) {
	return args.Get("x").(domain.Int) * 2, nil
}

func identityBody(_ context.Context, args domain.Args) (domain.Value, error) {
	return args.Get("x"), nil
}

// register defines a task with a single parameter x.
func register(
	t *testing.T, reg *domain.Registry, stage *domain.Stage, name string, fn domain.TaskFunc, opts ...domain.TaskOption,
) *domain.Task {
	t.Helper()
	opts = append([]domain.TaskOption{
		domain.WithName(name),
		domain.WithParams(domain.Param{Name: "x"}),
	}, opts...)
	task, err := reg.Register(stage, fn, opts...)
	require.NoError(t, err)
	return task
}

func lit(v domain.Value) []domain.Input {
	return []domain.Input{domain.Lit(v)}
}
