package domain

import (
	"encoding/json"
	"time"
)

// OutputMetadata is one historical materialization of a task. Records are append-only.
type OutputMetadata struct {
	Task        TaskID          `json:"task"`
	InputHash   string          `json:"input_hash"`
	CacheFnHash string          `json:"cache_fn_hash,omitzero"`
	Version     string          `json:"version,omitzero"`
	Output      json.RawMessage `json:"output"`
	RunID       string          `json:"run_id,omitzero"`
	Timestamp   time.Time       `json:"timestamp"`
}

// CacheKeys are the digests identifying one invocation of a task.
type CacheKeys struct {
	InputHash   string
	CacheFnHash string
	// Combined digests the task identity with both hashes. It keys the run memo.
	Combined string
}

// TaskCacheInfo is the validity decision for one invocation.
type TaskCacheInfo struct {
	IsCacheValid bool
	// CachedOutput is nil when no stored output can be reused.
	CachedOutput Value
	Record       *OutputMetadata
}

// MaterializeRequest carries everything the store needs to persist a task output.
type MaterializeRequest struct {
	Task      *Task
	Keys      CacheKeys
	RunID     string
	Inputs    []*Table
	Result    Value
	CacheInfo *TaskCacheInfo
	Timestamp time.Time
}

// Newest returns the most recent record, or nil when records is empty.
func Newest(records []OutputMetadata) *OutputMetadata {
	var newest *OutputMetadata
	for i := range records {
		if newest == nil || !records[i].Timestamp.Before(newest.Timestamp) {
			newest = &records[i]
		}
	}
	return newest
}
