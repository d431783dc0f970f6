package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/skua/internal/domain"
)

// deltaCTE is the single definition of "the delta": the first-seen staged
// row per hash_id (earliest created_at wins) with an ingestion timestamp
// strictly after the fact high-water mark. CountDelta and SelectDelta are
// both built from this fragment so the two entry points cannot drift.
//
// The high-water mark is bound as a parameter; the zero time sorts before
// every real timestamp, so an empty fact table degenerates the filter to
// "include everything".
const deltaCTE = `
WITH unique_delta_preload AS (
    SELECT id, hash_id, source_file, transaction_id, user_id,
           transaction_time, item_code, item_description, item_quantity,
           cost_per_item, country, created_at
    FROM (
        SELECT p.*,
               ROW_NUMBER() OVER (PARTITION BY hash_id ORDER BY created_at) AS row_num
        FROM preload_transaction AS p
    ) AS ranked
    WHERE row_num = 1 AND created_at > ?
)`

// FactHighWater returns the max commit timestamp present in the fact
// table, or the zero time when the fact table is empty. The fact table is
// the system's sole high-water mark; there is no separate cursor store.
func (r *SQLRepository) FactHighWater(ctx context.Context) (time.Time, error) {
	var hw time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM fact_transaction ORDER BY created_at DESC LIMIT 1`,
	).Scan(&hw)

	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read fact high-water mark: %w", err)
	}

	return hw.UTC(), nil
}

// CountDelta returns |delta| without materializing it. Used as the
// fast-path guard: a zero count skips the load phase entirely.
func (r *SQLRepository) CountDelta(ctx context.Context) (int, error) {
	highWater, err := r.FactHighWater(ctx)
	if err != nil {
		return 0, err
	}

	query := r.rebind(deltaCTE + `
		SELECT COUNT(*) FROM unique_delta_preload`)

	var count int
	if err := r.db.QueryRowContext(ctx, query, highWater).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count delta: %w", err)
	}

	return count, nil
}

// SelectDelta materializes the delta set, ordered by ingestion time (ledger
// id as a stable secondary ordering).
func (r *SQLRepository) SelectDelta(ctx context.Context) ([]*domain.StagedRecord, error) {
	highWater, err := r.FactHighWater(ctx)
	if err != nil {
		return nil, err
	}

	query := r.rebind(deltaCTE + `
		SELECT id, hash_id, source_file, transaction_id, user_id,
		       transaction_time, item_code, item_description, item_quantity,
		       cost_per_item, country, created_at
		FROM unique_delta_preload
		ORDER BY created_at, id`)

	rows, err := r.db.QueryContext(ctx, query, highWater)
	if err != nil {
		return nil, fmt.Errorf("failed to select delta: %w", err)
	}
	defer rows.Close()

	var records []*domain.StagedRecord
	for rows.Next() {
		var rec domain.StagedRecord
		var description, country sql.NullString

		if err := rows.Scan(
			&rec.ID, &rec.HashID, &rec.SourceFile,
			&rec.TransactionID, &rec.UserID,
			&rec.TransactionTime,
			&rec.ItemCode, &description, &rec.ItemQuantity,
			&rec.CostPerItem, &country,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		if description.Valid {
			rec.ItemDescription = &description.String
		}
		if country.Valid {
			rec.Country = &country.String
		}
		rec.TransactionTime = rec.TransactionTime.UTC()
		rec.CreatedAt = rec.CreatedAt.UTC()

		records = append(records, &rec)
	}

	return records, rows.Err()
}
