package backend

import (
	"context"

	"conti/internal/cache"
	"conti/internal/config"
	"conti/internal/core"
	"conti/internal/events"
	"conti/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the store instance and optional cleanup function
type StoreResult struct {
	Store   storage.AccountStore
	Cleanup CleanupFunc
}

// SummaryCacheResult contains the summary cache and optional cleanup function
type SummaryCacheResult struct {
	Cache   cache.Cache[core.Summary]
	Cleanup CleanupFunc
}

// Factory creates the infrastructure the account service runs on.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreatePublisher(ctx context.Context, appConfig *config.Config) (events.Publisher, error)
	CreateSummaryCache(ctx context.Context, appConfig *config.Config) (*SummaryCacheResult, error)
}

// Config holds configuration for store creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
