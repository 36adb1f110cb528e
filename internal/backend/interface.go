package backend

import (
	"context"
	"time"

	"devexpense/internal/cache"
	"devexpense/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is a calculator service wired to a session store, plus
// the hooks the caller needs to run it.
type BackendResult struct {
	Service *services.CalculatorService
	// Cleaner purges expired sessions; register it with a cache.Manager.
	Cleaner cache.Cleaner
	// Ping reports whether the store is usable.
	Ping func(ctx context.Context) error
	// AMQPEnabled is true when calculation events are being published.
	AMQPEnabled bool
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SessionTTL  time.Duration
	MaxSessions int

	// SQLite specific
	SQLiteDBPath string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of session store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
