// Package model defines the pluggable storage contract the Store
// Dispatcher invokes after decoding a wire request. Implementations are
// external collaborators; this package also ships an in-memory example
// (see memory.go) for tests and the bundled CLI.
package model

import "context"

// FindOptions bounds a Find call.
type FindOptions struct {
	Limit int
	Skip  int
}

// UpdateOptions modifies an Update call. Multi is always forced true by
// the Store dispatcher before the Model sees it.
type UpdateOptions struct {
	Select map[string]any
	Multi  bool
}

// Model is the pluggable storage contract dispatched to by the Store.
// BuildModel constructs one per schema at Store construction time.
type Model interface {
	Count(ctx context.Context, conditions map[string]any) (int64, error)

	// Create accepts either a single object (map[string]any) or a slice
	// of objects ([]map[string]any) and must handle both.
	Create(ctx context.Context, object any, projection map[string]any) (any, error)

	Find(ctx context.Context, conditions, projection map[string]any, options FindOptions) ([]map[string]any, error)

	Update(ctx context.Context, conditions, object map[string]any, options UpdateOptions) (any, error)
}

// BuildModel constructs a Model for a given schema name. Supplied by
// callers of Store; the Store contract treats it as an external
// collaborator and calls it exactly once during construction.
type BuildModel func(schemaName string) (Model, error)
