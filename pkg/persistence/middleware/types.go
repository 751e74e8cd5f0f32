// Package middleware decorates a ports.ExportStore with confidentiality layers.
package middleware

import "github.com/ddt-tool/ddt/pkg/ports"

// Middleware allows wrapping an ExportStore to add behavior.
type Middleware func(ports.ExportStore) ports.ExportStore

// Chain wraps store with mws. The first middleware is the outermost one, so
// Chain(s, pii, enc) masks before it encrypts.
func Chain(store ports.ExportStore, mws ...Middleware) ports.ExportStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
