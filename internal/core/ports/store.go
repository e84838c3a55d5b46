// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/pipecache/internal/core/domain"
)

// Store persists task outputs and their metadata records.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type Store interface {
	// Encode returns the canonical encoding of a value.
	// It fails with domain.ErrNotMaterializable for values that cannot cross a task boundary.
	Encode(v domain.Value) ([]byte, error)

	// Decode reverses Encode.
	Decode(data []byte) (domain.Value, error)

	// EnsureStageReady initializes the storage of a single stage. It must be idempotent.
	EnsureStageReady(ctx context.Context, stage *domain.Stage) error

	// FindMetadata returns all historical records of a task, oldest first.
	FindMetadata(ctx context.Context, id domain.TaskID) ([]domain.OutputMetadata, error)

	// Materialize persists every handle leaf of the result, appends a metadata record
	// and returns the result with its handles pointing at stored objects.
	// For lazy tasks it may set req.CacheInfo.IsCacheValid to false.
	Materialize(ctx context.Context, req domain.MaterializeRequest) (domain.Value, error)

	// CopyCachedOutput makes a stored output readable from the current run's stage.
	CopyCachedOutput(
		ctx context.Context, task *domain.Task, record domain.OutputMetadata, v domain.Value,
	) (domain.Value, error)

	// DematerializeInputs converts bound arguments into the form the task body expects,
	// according to the task's input type. It also returns the input tables.
	DematerializeInputs(ctx context.Context, task *domain.Task, args domain.Args) (domain.Args, []*domain.Table, error)
}

// StoreAdmin exposes maintenance operations over the whole store.
type StoreAdmin interface {
	// ListMetadata returns every record in the store, oldest first.
	ListMetadata(ctx context.Context) ([]domain.OutputMetadata, error)

	// Clean removes all stored outputs and records.
	Clean(ctx context.Context) error
}
