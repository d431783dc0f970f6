package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opensource-finance/skua/internal/domain"
)

// CommitFacts inserts fact rows in one transaction. The hash_id primary
// key plus ON CONFLICT DO NOTHING makes a retried run converge: an
// already-committed row is skipped, never duplicated and never an error.
// A failure rolls back the whole phase, so no partial fact rows remain.
func (r *SQLRepository) CommitFacts(ctx context.Context, facts []*domain.FactRecord) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin fact transaction: %w", err)
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO fact_transaction (
			hash_id, transaction_id, user_id, date_id, transaction_time,
			item_id, item_quantity, cost_per_item, total_cost,
			location_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hash_id) DO NOTHING
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare fact insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, f := range facts {
		res, err := stmt.ExecContext(ctx,
			f.HashID, f.TransactionID, f.UserID,
			f.DateID, f.TransactionTime.UTC(),
			f.ItemID, f.ItemQuantity,
			f.CostPerItem, f.TotalCost,
			f.LocationID,
			f.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fact %s: %w", f.HashID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit facts: %w", err)
	}

	return inserted, nil
}

// FactCount returns the number of committed fact rows.
func (r *SQLRepository) FactCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fact_transaction`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return count, nil
}

// FactByHash retrieves a committed fact row by its identity hash.
func (r *SQLRepository) FactByHash(ctx context.Context, hashID string) (*domain.FactRecord, error) {
	if hashID == "" {
		return nil, fmt.Errorf("%w: hashID is required", ErrInvalidInput)
	}

	query := r.rebind(`
		SELECT hash_id, transaction_id, user_id, date_id, transaction_time,
		       item_id, item_quantity, cost_per_item, total_cost,
		       location_id, created_at
		FROM fact_transaction
		WHERE hash_id = ?
	`)

	var f domain.FactRecord
	err := r.db.QueryRowContext(ctx, query, hashID).Scan(
		&f.HashID, &f.TransactionID, &f.UserID,
		&f.DateID, &f.TransactionTime,
		&f.ItemID, &f.ItemQuantity,
		&f.CostPerItem, &f.TotalCost,
		&f.LocationID, &f.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	f.TransactionTime = f.TransactionTime.UTC()
	f.CreatedAt = f.CreatedAt.UTC()

	return &f, nil
}
