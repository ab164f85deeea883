// Package collector provides background producers that feed actions to the daemon engine.
package collector

import (
	"context"

	"github.com/grovetools/mwstate/pkg/middleware"
	"github.com/grovetools/mwstate/pkg/store"
)

// Collector is a background worker that produces actions.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// Actions go through emit; st may be read (never written) for context.
	Run(ctx context.Context, st *store.Store, emit middleware.Emitter) error
}
