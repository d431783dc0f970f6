package repository

import (
	"context"
	"fmt"

	"github.com/opensource-finance/skua/internal/domain"
)

// ReconcileDimensions upserts the dimension rows needed by a delta set in
// one transaction: locations first, then items, then dates. Every insert
// is conflict-ignore on its key, so concurrent identical runs no-op
// instead of erroring. The commit here is the durability boundary the fact
// committer depends on: its joins must observe committed dimension state.
func (r *SQLRepository) ReconcileDimensions(ctx context.Context, locations []domain.Location, items []domain.Item, dates []domain.DateRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin dimension transaction: %w", err)
	}
	defer tx.Rollback()

	// Sentinel before user locations: facts fall back to it for any
	// country that never resolved.
	if err := r.ensureUnknownLocation(ctx, tx); err != nil {
		return err
	}

	locQuery := r.rebind(`
		INSERT INTO dim_location (country_code, country_name, continent)
		VALUES (?, ?, ?)
		ON CONFLICT (country_name) DO NOTHING
	`)
	for _, loc := range locations {
		if _, err := tx.ExecContext(ctx, locQuery,
			loc.CountryCode, loc.CountryName, loc.Continent,
		); err != nil {
			return fmt.Errorf("failed to insert location %q: %w", loc.CountryName, err)
		}
	}

	itemQuery := r.rebind(`
		INSERT INTO dim_item (id, description)
		VALUES (?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, itemQuery,
			item.Code, item.Description,
		); err != nil {
			return fmt.Errorf("failed to insert item %d: %w", item.Code, err)
		}
	}

	dateQuery := r.rebind(`
		INSERT INTO dim_date (id, date, year, quarter, month, day)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	for _, d := range dates {
		if _, err := tx.ExecContext(ctx, dateQuery,
			d.ID, d.Date, d.Year, d.Quarter, d.Month, d.Day,
		); err != nil {
			return fmt.Errorf("failed to insert date %d: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// ensureUnknownLocation inserts the UNKNOWN sentinel row if absent.
func (r *SQLRepository) ensureUnknownLocation(ctx context.Context, db execer) error {
	sentinel := domain.UnknownLocation()

	query := r.rebind(`
		INSERT INTO dim_location (country_code, country_name, continent)
		VALUES (?, ?, ?)
		ON CONFLICT (country_name) DO NOTHING
	`)
	if _, err := db.ExecContext(ctx, query,
		sentinel.CountryCode, sentinel.CountryName, sentinel.Continent,
	); err != nil {
		return fmt.Errorf("failed to ensure sentinel location: %w", err)
	}

	return nil
}

// LocationNames returns the set of country names present in dim_location.
func (r *SQLRepository) LocationNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT country_name FROM dim_location`)
	if err != nil {
		return nil, fmt.Errorf("failed to list location names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}

	return names, rows.Err()
}

// LocationIDsByName returns the committed country name → surrogate id
// mapping. The fact committer resolves its location foreign keys against
// this snapshot, falling back to the UNKNOWN sentinel's id.
func (r *SQLRepository) LocationIDsByName(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, country_name FROM dim_location`)
	if err != nil {
		return nil, fmt.Errorf("failed to load location ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}

	return ids, rows.Err()
}
