// Package api provides interfaces for dependency injection
package api

import (
	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/storage"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer starts the API server with the given configuration
	StartServer(db *engine.DB, store *storage.Store, port int, apiKey, dataDir string) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
