package backend

import (
	"context"

	"whomst/internal/services"
	"whomst/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired entry service and its cleanup function
type BackendResult struct {
	Entries *services.EntryService
	Cleanup CleanupFunc
}

// Store is shorthand for the store behind Entries.
func (r *BackendResult) Store() store.Store {
	return r.Entries.Store()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Files backend; also where dump.csv lands
	DataDir string

	// SQLite specific
	SQLiteDBPath string

	// Event publishing, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	FilesBackend  BackendType = "files"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FilesBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
