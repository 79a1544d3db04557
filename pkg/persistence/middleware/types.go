// Package middleware wraps a ports.CheckpointStore with cross-cutting
// persistence behaviour: PII masking and at-rest encryption.
package middleware

import "github.com/afo-kingdom/chancellor/pkg/ports"

// Middleware allows wrapping a CheckpointStore to add behavior.
type Middleware func(ports.CheckpointStore) ports.CheckpointStore

// Chain applies middlewares so the first one listed is outermost.
func Chain(store ports.CheckpointStore, mws ...Middleware) ports.CheckpointStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
