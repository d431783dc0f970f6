// Package domain defines the core interfaces and types for Skua.
package domain

import (
	"context"
	"time"
)

// Repository defines the warehouse persistence interface.
//
// Every write path is conflict-ignore by natural key or content hash:
// concurrent pipeline runs are never assumed disjoint, and the design
// tolerates them only because each insert is safe under "insert if absent".
type Repository interface {
	// Schema lifecycle. InitSchema is idempotent and also seeds the
	// UNKNOWN location sentinel.
	InitSchema(ctx context.Context) error

	// Staging ledger operations.
	ListStagedSourceFiles(ctx context.Context) (map[string]struct{}, error)
	AppendStaged(ctx context.Context, sourceFile string, records []*StagedRecord) error

	// Delta resolution. CountDelta and SelectDelta are backed by the same
	// query fragment: one row per hash_id (earliest created_at wins),
	// filtered to created_at strictly after the fact high-water mark.
	FactHighWater(ctx context.Context) (time.Time, error)
	CountDelta(ctx context.Context) (int, error)
	SelectDelta(ctx context.Context) ([]*StagedRecord, error)

	// Dimension reconciliation. One transaction, ordered locations →
	// items → dates, each insert conflict-ignore on its key. The UNKNOWN
	// sentinel is ensured before user locations.
	ReconcileDimensions(ctx context.Context, locations []Location, items []Item, dates []DateRow) error
	LocationNames(ctx context.Context) (map[string]struct{}, error)
	LocationIDsByName(ctx context.Context) (map[string]int64, error)

	// Fact commit. One transaction, ON CONFLICT (hash_id) DO NOTHING.
	// Returns the number of rows actually inserted.
	CommitFacts(ctx context.Context, facts []*FactRecord) (int, error)
	FactCount(ctx context.Context) (int, error)
	FactByHash(ctx context.Context, hashID string) (*FactRecord, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
