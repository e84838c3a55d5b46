package materializer

import (
	"context"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
)

// Validator decides whether a stored output may replace executing a task.
type Validator struct {
	store ports.Store
}

// NewValidator creates a Validator reading records from store.
func NewValidator(store ports.Store) *Validator {
	return &Validator{store: store}
}

// Check looks up the newest record matching the task identity, the keys and the task version.
//
// Eager tasks hit the cache when such a record exists and decodes. Eager tasks without a
// version never hit. Lazy tasks are always provisionally valid and carry the matching
// record, if any, so the store can compare expressions while materializing.
func (v *Validator) Check(ctx context.Context, task *domain.Task, keys domain.CacheKeys) (domain.TaskCacheInfo, error) {
	if !task.Lazy && task.Version == "" {
		return domain.TaskCacheInfo{}, nil
	}

	records, err := v.store.FindMetadata(ctx, task.ID)
	if err != nil {
		return domain.TaskCacheInfo{}, zerr.With(err, "task", task.ID.String())
	}
	match := newestMatch(records, task, keys)

	if task.Lazy {
		return domain.TaskCacheInfo{IsCacheValid: true, Record: match}, nil
	}
	if match == nil {
		return domain.TaskCacheInfo{}, nil
	}

	out, err := v.store.Decode(match.Output)
	if err != nil {
		return domain.TaskCacheInfo{}, zerr.With(err, "task", task.ID.String())
	}
	return domain.TaskCacheInfo{IsCacheValid: true, CachedOutput: out, Record: match}, nil
}

func newestMatch(records []domain.OutputMetadata, task *domain.Task, keys domain.CacheKeys) *domain.OutputMetadata {
	var match *domain.OutputMetadata
	for i := range records {
		r := &records[i]
		if r.Task != task.ID || r.InputHash != keys.InputHash || r.CacheFnHash != keys.CacheFnHash {
			continue
		}
		if task.Version != "" && r.Version != task.Version {
			continue
		}
		if match == nil || !r.Timestamp.Before(match.Timestamp) {
			match = r
		}
	}
	return match
}
