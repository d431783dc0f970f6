package repository

import (
	"context"
	"fmt"

	"github.com/opensource-finance/skua/internal/domain"
)

// ListStagedSourceFiles returns the set of source files already present in
// the preload ledger. Membership is file-granular: a file whose append was
// interrupted partway still counts as staged and will be skipped on retry
// (known limitation, surfaced in the docs rather than silently corrected).
func (r *SQLRepository) ListStagedSourceFiles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT source_file FROM preload_transaction`)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged source files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		files[name] = struct{}{}
	}

	return files, rows.Err()
}

// AppendStaged bulk-appends normalized records for one source file.
//
// No uniqueness is enforced at this layer: the ledger may hold the same
// hash many times across overlapping deliveries, and the delta resolver is
// the one place that dedups. One transaction per file keeps a failed
// append from leaving a file half-staged mid-batch.
func (r *SQLRepository) AppendStaged(ctx context.Context, sourceFile string, records []*domain.StagedRecord) error {
	if sourceFile == "" {
		return fmt.Errorf("%w: sourceFile is required", ErrInvalidInput)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO preload_transaction (
			hash_id, source_file, transaction_id, user_id, transaction_time,
			item_code, item_description, item_quantity, cost_per_item,
			country, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.HashID, sourceFile,
			rec.TransactionID, rec.UserID,
			rec.TransactionTime.UTC(),
			rec.ItemCode, rec.ItemDescription,
			rec.ItemQuantity, rec.CostPerItem,
			rec.Country,
			rec.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to stage record %s: %w", rec.HashID, err)
		}
	}

	return tx.Commit()
}
