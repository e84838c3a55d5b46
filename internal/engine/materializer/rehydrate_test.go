package materializer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports/mocks"
	"go.trai.ch/pipecache/internal/engine/materializer"
	"go.uber.org/mock/gomock"
)

func newRehydratorFixture(t *testing.T) (*mocks.MockStore, *materializer.Rehydrator) {
	t.Helper()
	store := mocks.NewMockStore(gomock.NewController(t))
	store.EXPECT().Decode(gomock.Any()).DoAndReturn(domain.UnmarshalValue).AnyTimes()
	store.EXPECT().Encode(gomock.Any()).DoAndReturn(domain.MarshalValue).AnyTimes()
	return store, materializer.NewRehydrator(store)
}

func TestRehydrator_Resolve(t *testing.T) {
	store, r := newRehydratorFixture(t)
	load := register(t, domain.NewRegistry(), domain.NewStage("raw", nil), "load", identityBody)
	now := time.Now()

	store.EXPECT().FindMetadata(gomock.Any(), load.ID).Return([]domain.OutputMetadata{
		record(t, load, domain.CacheKeys{InputHash: "aa"}, "", domain.Int(3), now),
		record(t, load, domain.CacheKeys{InputHash: "bb"}, "1", domain.Int(3), now.Add(time.Minute)),
	}, nil)

	v, err := r.Resolve(t.Context(), domain.Ref{Task: load.ID, Index: domain.WholeOutput})
	require.NoError(t, err)
	assert.Equal(t, domain.Int(3), v)
}

func TestRehydrator_ResolveIndex(t *testing.T) {
	store, r := newRehydratorFixture(t)
	split := register(t, domain.NewRegistry(), domain.NewStage("raw", nil), "split", identityBody,
		domain.WithNOut(2))

	store.EXPECT().FindMetadata(gomock.Any(), split.ID).Return([]domain.OutputMetadata{
		record(t, split, domain.CacheKeys{InputHash: "aa"}, "", domain.Seq(domain.Int(1), domain.Int(2)), time.Now()),
	}, nil).Times(2)

	v, err := r.Resolve(t.Context(), domain.Ref{Task: split.ID, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.Int(2), v)

	_, err = r.Resolve(t.Context(), domain.Ref{Task: split.ID, Index: 2})
	require.ErrorIs(t, err, domain.ErrOutputArity)
}

func TestRehydrator_Missing(t *testing.T) {
	store, r := newRehydratorFixture(t)
	load := register(t, domain.NewRegistry(), domain.NewStage("raw", nil), "load", identityBody)

	store.EXPECT().FindMetadata(gomock.Any(), load.ID).Return(nil, nil)

	_, err := r.Resolve(t.Context(), domain.Ref{Task: load.ID, Index: domain.WholeOutput})
	require.ErrorIs(t, err, domain.ErrNoMaterialization)

	var cacheErr *domain.CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, domain.CacheMissing, cacheErr.Kind)
	assert.Equal(t, load.ID, cacheErr.Task)
}

func TestRehydrator_Ambiguous(t *testing.T) {
	store, r := newRehydratorFixture(t)
	load := register(t, domain.NewRegistry(), domain.NewStage("raw", nil), "load", identityBody)
	now := time.Now()

	store.EXPECT().FindMetadata(gomock.Any(), load.ID).Return([]domain.OutputMetadata{
		record(t, load, domain.CacheKeys{InputHash: "aa"}, "", domain.Int(3), now),
		record(t, load, domain.CacheKeys{InputHash: "bb"}, "", domain.Int(4), now.Add(time.Minute)),
		record(t, load, domain.CacheKeys{InputHash: "cc"}, "", domain.Int(3), now.Add(2*time.Minute)),
	}, nil)

	_, err := r.Resolve(t.Context(), domain.Ref{Task: load.ID, Index: domain.WholeOutput})
	require.ErrorIs(t, err, domain.ErrAmbiguousOutput)

	var cacheErr *domain.CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, domain.CacheAmbiguous, cacheErr.Kind)
	assert.Equal(t, 2, cacheErr.Candidates)
}

func TestRehydrator_FillLeavesArgsUntouched(t *testing.T) {
	store, r := newRehydratorFixture(t)
	reg := domain.NewRegistry()
	raw := domain.NewStage("raw", nil)
	load := register(t, reg, raw, "load", identityBody)
	double := register(t, reg, raw, "double", doubleBody)

	store.EXPECT().FindMetadata(gomock.Any(), load.ID).Return([]domain.OutputMetadata{
		record(t, load, domain.CacheKeys{InputHash: "aa"}, "", domain.Int(3), time.Now()),
	}, nil)

	args, err := double.Bind([]domain.Input{domain.From(load.ID)}, nil)
	require.NoError(t, err)

	filled, err := r.Fill(t.Context(), args)
	require.NoError(t, err)
	assert.Equal(t, domain.Int(3), filled.Get("x"))
	assert.Empty(t, filled.Missing())
	assert.Equal(t, []int{0}, args.Missing())
}

func TestRehydrator_FillWithoutMissingArgs(t *testing.T) {
	_, r := newRehydratorFixture(t)
	args := domain.Args{{Name: "x", Value: domain.Int(1)}}

	filled, err := r.Fill(t.Context(), args)
	require.NoError(t, err)
	assert.Equal(t, args, filled)
}

func TestRehydrator_StoreError(t *testing.T) {
	store, r := newRehydratorFixture(t)
	load := register(t, domain.NewRegistry(), domain.NewStage("raw", nil), "load", identityBody)
	readErr := errors.New("io error")

	store.EXPECT().FindMetadata(gomock.Any(), load.ID).Return(nil, readErr)

	_, err := r.Resolve(t.Context(), domain.Ref{Task: load.ID, Index: domain.WholeOutput})
	require.ErrorIs(t, err, readErr)
}
