package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrTaskAlreadyExists is returned when attempting to register a task whose identity is already taken.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrTaskWithoutStage is returned when a task is registered outside of a stage.
	ErrTaskWithoutStage = zerr.New("task must belong to a stage")

	// ErrNotMaterializable is returned when a value cannot cross a task boundary.
	ErrNotMaterializable = zerr.New("value is not materializable")

	// ErrInvalidArguments is returned when call arguments do not match the task parameters.
	ErrInvalidArguments = zerr.New("invalid task arguments")

	// ErrOutputArity is returned when a task returns a different number of outputs than declared.
	ErrOutputArity = zerr.New("task output arity mismatch")

	// ErrInvalidTask is returned when a task definition is malformed.
	ErrInvalidTask = zerr.New("invalid task definition")

	// ErrMissingDependency is returned when a call references a task that is not part of the flow.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the call graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested task is not found in the flow.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrNoMaterialization is the cause of a CacheError when no stored output exists.
	ErrNoMaterialization = zerr.New("no materialization found")

	// ErrAmbiguousOutput is the cause of a CacheError when stored outputs disagree.
	ErrAmbiguousOutput = zerr.New("ambiguous cached output")

	// ErrInvalidValueEncoding is returned when an encoded value cannot be decoded.
	ErrInvalidValueEncoding = zerr.New("invalid value encoding")

	// ErrStoreCreateFailed is returned when the store directories cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create store directory")

	// ErrStoreReadFailed is returned when stored data cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read from store")

	// ErrStoreWriteFailed is returned when data cannot be written to the store.
	ErrStoreWriteFailed = zerr.New("failed to write to store")

	// ErrStoreUnmarshalFailed is returned when a metadata record cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal metadata record")

	// ErrStoreMarshalFailed is returned when a metadata record cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal metadata record")

	// ErrStageNotReady is returned when output is written to a stage that was never initialized.
	ErrStageNotReady = zerr.New("stage not ready")

	// ErrObjectNotFound is returned when a handle points at an object missing from the store.
	ErrObjectNotFound = zerr.New("stored object not found")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidConfig is returned when the config file holds unsupported values.
	ErrInvalidConfig = zerr.New("invalid config")

	// ErrRunFailed is returned when a pipeline run fails.
	ErrRunFailed = zerr.New("pipeline run failed")

	// ErrTaskExecutionFailed is returned when a call fails inside the scheduler.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrTaskSkipped is returned for calls whose upstream calls failed.
	ErrTaskSkipped = zerr.New("task skipped because an upstream task failed")
)

// CacheErrorKind distinguishes the ways rehydration can fail.
type CacheErrorKind uint8

const (
	// CacheMissing means the upstream task has no stored output.
	CacheMissing CacheErrorKind = iota + 1
	// CacheAmbiguous means the upstream task has stored outputs that disagree.
	CacheAmbiguous
)

// CacheError reports that the output of an upstream task could not be recovered from the store.
type CacheError struct {
	Kind CacheErrorKind
	Task TaskID
	// Candidates is the number of distinct stored outputs that were found.
	Candidates int
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("%s: %s", e.Unwrap().Error(), e.Task)
}

// Unwrap returns the sentinel matching the error kind.
func (e *CacheError) Unwrap() error {
	if e.Kind == CacheAmbiguous {
		return ErrAmbiguousOutput
	}
	return ErrNoMaterialization
}
