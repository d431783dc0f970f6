// Package repository provides warehouse persistence over database/sql.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opensource-finance/skua/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDriver, cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}, nil
}

// InitSchema applies the warehouse DDL. Every statement is CREATE IF NOT
// EXISTS, so repeated invocations are no-ops. The UNKNOWN location
// sentinel is seeded here as well: it must exist before any fact commit
// can resolve unmatched locations.
func (r *SQLRepository) InitSchema(ctx context.Context) error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if err := r.ensureUnknownLocation(ctx, r.db); err != nil {
		return fmt.Errorf("failed to seed sentinel location: %w", err)
	}

	return nil
}

// Ping verifies the database connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
