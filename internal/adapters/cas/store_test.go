package cas_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/internal/adapters/cas"
	"go.trai.ch/pipecache/internal/adapters/hasher"
	"go.trai.ch/pipecache/internal/core/domain"
)

func noop(context.Context, domain.Args) (domain.Value, error) {
	return domain.Null{}, nil
}

type storeFixture struct {
	root  string
	store *cas.Store
	raw   *domain.Stage
	reg   *domain.Registry
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "store")
	f := &storeFixture{
		root:  root,
		store: cas.NewStore(root, hasher.New()),
		raw:   domain.NewStage("raw", nil),
		reg:   domain.NewRegistry(),
	}
	require.NoError(t, f.store.EnsureStageReady(t.Context(), f.raw))
	return f
}

func (f *storeFixture) task(t *testing.T, name string, opts ...domain.TaskOption) *domain.Task {
	t.Helper()
	task, err := f.reg.Register(f.raw, noop, append([]domain.TaskOption{domain.WithName(name)}, opts...)...)
	require.NoError(t, err)
	return task
}

func (f *storeFixture) materialize(
	t *testing.T, task *domain.Task, inputHash string, result domain.Value, info *domain.TaskCacheInfo,
) domain.Value {
	t.Helper()
	out, err := f.store.Materialize(t.Context(), domain.MaterializeRequest{
		Task:      task,
		Keys:      domain.CacheKeys{InputHash: inputHash},
		RunID:     "run-1",
		Result:    result,
		CacheInfo: info,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return out
}

func readRef(t *testing.T, root, stage, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, domain.StagesDirName, stage, name+".ref"))
	require.NoError(t, err)
	return string(data)
}

func TestStore_EnsureStageReady(t *testing.T) {
	f := newStoreFixture(t)
	features := domain.NewStage("features", f.raw)

	require.NoError(t, f.store.EnsureStageReady(t.Context(), features))
	require.NoError(t, f.store.EnsureStageReady(t.Context(), features))

	marker, err := os.ReadFile(filepath.Join(f.root, domain.StagesDirName, "raw", "features", domain.StageMarkerFile))
	require.NoError(t, err)
	assert.Equal(t, "raw/features\n", string(marker))
}

func TestStore_MaterializeRequiresReadyStage(t *testing.T) {
	f := newStoreFixture(t)
	task, err := f.reg.Register(domain.NewStage("other", nil), noop, domain.WithName("load"))
	require.NoError(t, err)

	_, err = f.store.Materialize(t.Context(), domain.MaterializeRequest{
		Task:   task,
		Result: domain.Int(1),
	})
	require.ErrorContains(t, err, domain.ErrStageNotReady.Error())
}

func TestStore_MaterializeTable(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "load", domain.WithVersion("1"))
	payload := []byte("id\n1\n")

	out := f.materialize(t, task, "abcdef0123456789", domain.NewTable("people", payload), nil)

	table, ok := out.(*domain.Table)
	require.True(t, ok)
	assert.Equal(t, "people", table.Name)
	assert.Equal(t, "raw", table.Stage)
	assert.Equal(t, hasher.New().Hash(payload), table.ObjectID)

	objectID := readRef(t, f.root, "raw", "people")
	assert.Equal(t, table.ObjectID, objectID)
	stored, err := os.ReadFile(filepath.Join(f.root, domain.ObjectsDirName, objectID[:2], objectID))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)

	records, err := f.store.FindMetadata(t.Context(), task.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "abcdef0123456789", records[0].InputHash)
	assert.Equal(t, "1", records[0].Version)
	assert.Equal(t, "run-1", records[0].RunID)

	decoded, err := f.store.Decode(records[0].Output)
	require.NoError(t, err)
	assert.Equal(t, domain.ClearPayloads(out), decoded)
}

func TestStore_DefaultNames(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "split")

	out := f.materialize(t, task, "abcdef0123456789", domain.Seq(
		domain.NewTable("", []byte("a")),
		domain.Mapping{"blob": domain.NewBlob("", []byte("b"))},
	), nil)

	seq := out.(domain.Sequence)
	assert.Equal(t, "split_abcdef01_0", seq[0].(*domain.Table).Name)
	assert.Equal(t, "split_abcdef01_1", seq[1].(domain.Mapping)["blob"].(*domain.Blob).Name)
	assert.NotEmpty(t, readRef(t, f.root, "raw", "split_abcdef01_1"))
}

func TestStore_EmptyTable(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "empty")

	out := f.materialize(t, task, "00", domain.NewTable("nothing", nil), nil)
	assert.Equal(t, hasher.New().Hash([]byte{}), out.(*domain.Table).ObjectID)
}

func TestStore_LazyExpressionComparison(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "summarize", domain.WithLazy(true))

	first := &domain.TaskCacheInfo{IsCacheValid: true}
	f.materialize(t, task, "aa", domain.NewLazyTable("summary", "select 1"), first)
	assert.False(t, first.IsCacheValid, "no previous record")

	records, err := f.store.FindMetadata(t.Context(), task.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	same := &domain.TaskCacheInfo{IsCacheValid: true, Record: &records[0]}
	f.materialize(t, task, "aa", domain.NewLazyTable("summary", "select 1"), same)
	assert.True(t, same.IsCacheValid)

	changed := &domain.TaskCacheInfo{IsCacheValid: true, Record: &records[0]}
	f.materialize(t, task, "aa", domain.NewLazyTable("summary", "select 2"), changed)
	assert.False(t, changed.IsCacheValid)

	extra := &domain.TaskCacheInfo{IsCacheValid: true, Record: &records[0]}
	f.materialize(t, task, "aa", domain.Seq(
		domain.NewLazyTable("summary", "select 1"),
		domain.NewLazyTable("detail", "select 3"),
	), extra)
	assert.False(t, extra.IsCacheValid)
}

func TestStore_CopyCachedOutput(t *testing.T) {
	f := newStoreFixture(t)
	load := f.task(t, "load", domain.WithVersion("1"))
	out := f.materialize(t, load, "aa", domain.NewTable("people", []byte("x")), nil)

	features := domain.NewStage("features", f.raw)
	require.NoError(t, f.store.EnsureStageReady(t.Context(), features))
	consumer, err := f.reg.Register(features, noop, domain.WithName("load"))
	require.NoError(t, err)

	records, err := f.store.FindMetadata(t.Context(), load.ID)
	require.NoError(t, err)
	copied, err := f.store.CopyCachedOutput(t.Context(), consumer, records[0], domain.ClearPayloads(out))
	require.NoError(t, err)

	table := copied.(*domain.Table)
	assert.Equal(t, "raw/features", table.Stage)
	assert.Equal(t, out.(*domain.Table).ObjectID, readRef(t, f.root, "raw/features", "people"))
}

func TestStore_CopyCachedOutputMissingObject(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "load")

	_, err := f.store.CopyCachedOutput(t.Context(), task, domain.OutputMetadata{},
		&domain.Table{Name: "people", ObjectID: "ffffffffffffffff"})
	require.ErrorContains(t, err, domain.ErrObjectNotFound.Error())

	_, err = f.store.CopyCachedOutput(t.Context(), task, domain.OutputMetadata{}, &domain.Table{Name: "people"})
	require.ErrorContains(t, err, domain.ErrObjectNotFound.Error())
}

func TestStore_DematerializeInputs(t *testing.T) {
	f := newStoreFixture(t)
	load := f.task(t, "load")
	out := domain.ClearPayloads(f.materialize(t, load, "aa", domain.NewTable("people", []byte("rows")), nil))

	params := domain.WithParams(domain.Param{Name: "people"}, domain.Param{Name: "n"})
	handle := f.task(t, "byHandle", params)
	reference := f.task(t, "byReference", params, domain.WithInputType(domain.InputReference))
	args := domain.Args{{Name: "people", Value: out}, {Name: "n", Value: domain.Int(1)}}

	loaded, tables, err := f.store.DematerializeInputs(t.Context(), handle, args)
	require.NoError(t, err)
	assert.Equal(t, []byte("rows"), loaded.Get("people").(*domain.Table).Data)
	assert.Equal(t, domain.Int(1), loaded.Get("n"))
	require.Len(t, tables, 1)
	assert.Equal(t, "people", tables[0].Name)
	assert.Nil(t, out.(*domain.Table).Data, "arguments are not modified")

	refs, tables, err := f.store.DematerializeInputs(t.Context(), reference, args)
	require.NoError(t, err)
	assert.Nil(t, refs.Get("people").(*domain.Table).Data)
	assert.Len(t, tables, 1)
}

func TestStore_DematerializeInputsErrors(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "byHandle", domain.WithParams(domain.Param{Name: "people"}))

	_, _, err := f.store.DematerializeInputs(t.Context(), task, domain.Args{{Name: "people"}})
	require.ErrorContains(t, err, domain.ErrInvalidArguments.Error())

	_, _, err = f.store.DematerializeInputs(t.Context(), task, domain.Args{
		{Name: "people", Value: &domain.Table{Name: "people", ObjectID: "ffffffffffffffff"}},
	})
	require.ErrorContains(t, err, domain.ErrObjectNotFound.Error())
}

func TestStore_ListMetadataAndClean(t *testing.T) {
	f := newStoreFixture(t)
	a := f.task(t, "a")
	b := f.task(t, "b")

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, task := range []*domain.Task{b, a, b} {
		_, err := f.store.Materialize(t.Context(), domain.MaterializeRequest{
			Task:      task,
			Keys:      domain.CacheKeys{InputHash: "aa"},
			Result:    domain.Int(i),
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	all, err := f.store.ListMetadata(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "b"}, []string{
		all[0].Task.Name.String(), all[1].Task.Name.String(), all[2].Task.Name.String(),
	})

	require.NoError(t, f.store.Clean(t.Context()))
	_, err = os.Stat(f.root)
	assert.True(t, os.IsNotExist(err))

	all, err = f.store.ListMetadata(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_CorruptLog(t *testing.T) {
	f := newStoreFixture(t)
	task := f.task(t, "load")

	path := filepath.Join(f.root, domain.MetadataDirName, hasher.New().Hash([]byte(task.ID.String()))+".jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), domain.FilePerm))

	_, err := f.store.FindMetadata(t.Context(), task.ID)
	require.ErrorContains(t, err, domain.ErrStoreUnmarshalFailed.Error())
}
