// Package cas implements the pipeline store: content addressed objects, one directory
// per stage and an append-only metadata log per task.
package cas

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Store      = (*Store)(nil)
	_ ports.StoreAdmin = (*Store)(nil)
)

const refSuffix = ".ref"

// Store implements ports.Store on the local filesystem.
type Store struct {
	root   string
	hasher ports.Hasher
	mu     sync.RWMutex
}

// NewStore creates a Store rooted at root. Directories are created lazily.
func NewStore(root string, hasher ports.Hasher) *Store {
	return &Store{
		root:   filepath.Clean(root),
		hasher: hasher,
	}
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Encode returns the canonical encoding of v.
func (s *Store) Encode(v domain.Value) ([]byte, error) {
	return domain.MarshalValue(v)
}

// Decode reverses Encode.
func (s *Store) Decode(data []byte) (domain.Value, error) {
	return domain.UnmarshalValue(data)
}

// EnsureStageReady creates the stage directory and its marker file.
func (s *Store) EnsureStageReady(_ context.Context, stage *domain.Stage) error {
	dir := s.stageDir(stage.Path())
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "stage", stage.Path())
	}
	marker := filepath.Join(dir, domain.StageMarkerFile)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	if err := writeFileAtomic(marker, []byte(stage.Path()+"\n")); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "stage", stage.Path())
	}
	return nil
}

// FindMetadata returns the records of the task, oldest first.
func (s *Store) FindMetadata(_ context.Context, id domain.TaskID) ([]domain.OutputMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readLog(s.metadataFile(id))
	if err != nil {
		return nil, zerr.With(err, "task", id.String())
	}
	return slices.DeleteFunc(records, func(r domain.OutputMetadata) bool {
		return r.Task != id
	}), nil
}

// ListMetadata returns every record in the store, oldest first.
func (s *Store) ListMetadata(_ context.Context) ([]domain.OutputMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, domain.MetadataDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	var all []domain.OutputMetadata
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		records, err := s.readLog(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	slices.SortStableFunc(all, func(a, b domain.OutputMetadata) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return all, nil
}

// Clean removes the whole store directory.
func (s *Store) Clean(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.root); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", s.root)
	}
	return nil
}

// Materialize writes the payload of every new handle in req.Result, links it into the
// task's stage and appends a metadata record.
//
// Lazy tables whose expression matches the previous record keep their stored object.
// For lazy tasks req.CacheInfo.IsCacheValid is cleared unless every expression matches.
func (s *Store) Materialize(_ context.Context, req domain.MaterializeRequest) (domain.Value, error) {
	task := req.Task
	stagePath := task.Stage.Path()
	if _, err := os.Stat(filepath.Join(s.stageDir(stagePath), domain.StageMarkerFile)); err != nil {
		return nil, zerr.With(zerr.With(domain.ErrStageNotReady, "stage", stagePath), "task", task.ID.String())
	}

	previous, err := s.previousExpressions(req)
	if err != nil {
		return nil, err
	}
	names := defaultNames(task, req.Keys, req.Result)
	current := make(map[string]string)

	stored, err := domain.MapLeaves(req.Result, domain.LeafFuncs{
		Table: func(t *domain.Table) (domain.Value, error) {
			out := *t
			if out.Name == "" {
				out.Name = names[t]
			}
			if out.Query != "" {
				current[out.Name] = out.Query
				if prev, ok := previous[out.Name]; ok && prev.Query == out.Query && len(out.Data) == 0 {
					out.ObjectID = prev.ObjectID
				}
			}
			if err := s.persist(stagePath, out.Name, &out.ObjectID, tablePayload(&out)); err != nil {
				return nil, err
			}
			out.Stage = stagePath
			return &out, nil
		},
		Blob: func(b *domain.Blob) (domain.Value, error) {
			out := *b
			if out.Name == "" {
				out.Name = names[b]
			}
			if err := s.persist(stagePath, out.Name, &out.ObjectID, out.Data); err != nil {
				return nil, err
			}
			out.Stage = stagePath
			return &out, nil
		},
	})
	if err != nil {
		return nil, zerr.With(err, "task", task.ID.String())
	}

	if task.Lazy && req.CacheInfo != nil && !sameExpressions(previous, current, req.CacheInfo.Record != nil) {
		req.CacheInfo.IsCacheValid = false
	}

	encoded, err := s.Encode(stored)
	if err != nil {
		return nil, zerr.With(err, "task", task.ID.String())
	}
	record := domain.OutputMetadata{
		Task:        task.ID,
		InputHash:   req.Keys.InputHash,
		CacheFnHash: req.Keys.CacheFnHash,
		Version:     task.Version,
		Output:      encoded,
		RunID:       req.RunID,
		Timestamp:   req.Timestamp,
	}
	if err := s.appendRecord(record); err != nil {
		return nil, err
	}
	return stored, nil
}

// CopyCachedOutput links the objects of a stored output into the task's stage.
func (s *Store) CopyCachedOutput(
	_ context.Context, task *domain.Task, record domain.OutputMetadata, v domain.Value,
) (domain.Value, error) {
	stagePath := task.Stage.Path()
	link := func(name, objectID string) error {
		if objectID == "" {
			return zerr.With(zerr.With(domain.ErrObjectNotFound, "name", name), "run_id", record.RunID)
		}
		if _, err := os.Stat(s.objectFile(objectID)); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrObjectNotFound.Error()), "object", objectID)
		}
		return s.link(stagePath, name, objectID)
	}

	out, err := domain.MapLeaves(v, domain.LeafFuncs{
		Table: func(t *domain.Table) (domain.Value, error) {
			if err := link(t.Name, t.ObjectID); err != nil {
				return nil, err
			}
			copied := *t
			copied.Stage = stagePath
			return &copied, nil
		},
		Blob: func(b *domain.Blob) (domain.Value, error) {
			if err := link(b.Name, b.ObjectID); err != nil {
				return nil, err
			}
			copied := *b
			copied.Stage = stagePath
			return &copied, nil
		},
	})
	if err != nil {
		return nil, zerr.With(err, "task", task.ID.String())
	}
	return out, nil
}

// DematerializeInputs loads the payload of every handle argument for tasks taking
// InputHandle and leaves handles untouched for InputReference.
func (s *Store) DematerializeInputs(
	_ context.Context, task *domain.Task, args domain.Args,
) (domain.Args, []*domain.Table, error) {
	out := make(domain.Args, len(args))
	var tables []*domain.Table
	for i, arg := range args {
		out[i] = arg
		if arg.Value == nil {
			return nil, nil, zerr.With(zerr.With(domain.ErrInvalidArguments, "argument", arg.Name), "task", task.ID.String())
		}
		if task.InputType == domain.InputHandle {
			loaded, err := domain.MapLeaves(arg.Value, domain.LeafFuncs{
				Table: func(t *domain.Table) (domain.Value, error) {
					data, err := s.load(t.ObjectID, t.Data)
					if err != nil {
						return nil, err
					}
					l := *t
					l.Data = data
					return &l, nil
				},
				Blob: func(b *domain.Blob) (domain.Value, error) {
					data, err := s.load(b.ObjectID, b.Data)
					if err != nil {
						return nil, err
					}
					l := *b
					l.Data = data
					return &l, nil
				},
			})
			if err != nil {
				return nil, nil, zerr.With(zerr.With(err, "argument", arg.Name), "task", task.ID.String())
			}
			out[i].Value = loaded
		}
		tables = append(tables, domain.Tables(out[i].Value)...)
	}
	return out, tables, nil
}

func (s *Store) previousExpressions(req domain.MaterializeRequest) (map[string]*domain.Table, error) {
	previous := make(map[string]*domain.Table)
	if !req.Task.Lazy || req.CacheInfo == nil || req.CacheInfo.Record == nil {
		return previous, nil
	}
	v, err := s.Decode(req.CacheInfo.Record.Output)
	if err != nil {
		return nil, zerr.With(err, "task", req.Task.ID.String())
	}
	for _, t := range domain.Tables(v) {
		previous[t.Name] = t
	}
	return previous, nil
}

func sameExpressions(previous map[string]*domain.Table, current map[string]string, hadRecord bool) bool {
	if !hadRecord {
		return false
	}
	n := 0
	for _, t := range previous {
		if t.Query == "" {
			continue
		}
		n++
		if current[t.Name] != t.Query {
			return false
		}
	}
	return n == len(current)
}

func tablePayload(t *domain.Table) []byte {
	if len(t.Data) > 0 {
		return t.Data
	}
	if t.Query != "" {
		return []byte(t.Query)
	}
	return nil
}

// defaultNames assigns stable names to unnamed leaves in canonical traversal order.
func defaultNames(task *domain.Task, keys domain.CacheKeys, v domain.Value) map[any]string {
	names := make(map[any]string)
	prefix := keys.InputHash
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	n := 0
	for node := range domain.Walk(v) {
		switch leaf := node.(type) {
		case *domain.Table:
			if leaf != nil && leaf.Name == "" {
				names[leaf] = fmt.Sprintf("%s_%s_%d", task.ID.Name.String(), prefix, n)
				n++
			}
		case *domain.Blob:
			if leaf != nil && leaf.Name == "" {
				names[leaf] = fmt.Sprintf("%s_%s_%d", task.ID.Name.String(), prefix, n)
				n++
			}
		}
	}
	return names
}

// persist writes payload as a content addressed object and links it into the stage.
// A handle without payload must already point at a stored object.
func (s *Store) persist(stagePath, name string, objectID *string, payload []byte) error {
	switch {
	case len(payload) > 0:
		*objectID = s.hasher.Hash(payload)
	case *objectID == "":
		payload = []byte{}
		*objectID = s.hasher.Hash(payload)
	}
	path := s.objectFile(*objectID)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
		}
		if payload == nil {
			return zerr.With(domain.ErrObjectNotFound, "object", *objectID)
		}
		if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
			return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
		}
		if err := writeFileAtomic(path, payload); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "object", *objectID)
		}
	}
	return s.link(stagePath, name, *objectID)
}

func (s *Store) link(stagePath, name, objectID string) error {
	ref := filepath.Join(s.stageDir(stagePath), safeName(name)+refSuffix)
	if err := writeFileAtomic(ref, []byte(objectID)); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "name", name)
	}
	return nil
}

func (s *Store) load(objectID string, data []byte) ([]byte, error) {
	if len(data) > 0 {
		return data, nil
	}
	if objectID == "" {
		return nil, domain.ErrObjectNotFound
	}
	//nolint:gosec // Path is built from the store root and a hex digest
	payload, err := os.ReadFile(s.objectFile(objectID))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrObjectNotFound.Error()), "object", objectID)
	}
	return payload, nil
}

func (s *Store) appendRecord(record domain.OutputMetadata) error {
	line, err := json.Marshal(record)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.metadataFile(record.Task)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}
	//nolint:gosec // Path is built from the store root and a hex digest
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, domain.FilePerm)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

func (s *Store) readLog(path string) ([]domain.OutputMetadata, error) {
	//nolint:gosec // Path is built from the store root and a hex digest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	var records []domain.OutputMetadata
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r domain.OutputMetadata
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error()), "path", path)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	return records, nil
}

func (s *Store) stageDir(stagePath string) string {
	parts := strings.Split(stagePath, "/")
	for i, p := range parts {
		parts[i] = safeName(p)
	}
	return filepath.Join(append([]string{s.root, domain.StagesDirName}, parts...)...)
}

func (s *Store) objectFile(objectID string) string {
	prefix := objectID
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, domain.ObjectsDirName, prefix, objectID)
}

func (s *Store) metadataFile(id domain.TaskID) string {
	return filepath.Join(s.root, domain.MetadataDirName, s.hasher.Hash([]byte(id.String()))+".jsonl")
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
