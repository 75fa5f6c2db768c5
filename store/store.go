// Package store defines the aggregate persistence interface. Each
// subsystem (workflow, review) defines its own store interface; the
// composite Store composes them all. Backends: Postgres, Redis, and
// Memory.
package store

import (
	"context"

	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, redis, memory) implements all of them.
type Store interface {
	workflow.Store
	review.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
