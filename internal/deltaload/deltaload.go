// Package deltaload merges staged records into the star schema: it
// resolves the delta against the fact high-water mark, reconciles the
// date/item/location dimensions, and commits fact rows idempotently.
package deltaload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/identity"
)

// Stats summarizes one delta load.
type Stats struct {
	DeltaCount     int
	FactsCommitted int
}

// DeltaLoader merges the staged delta into the warehouse.
type DeltaLoader struct {
	repo     domain.Repository
	resolver *identity.Resolver
}

// New creates a DeltaLoader.
func New(repo domain.Repository, resolver *identity.Resolver) *DeltaLoader {
	return &DeltaLoader{
		repo:     repo,
		resolver: resolver,
	}
}

// Run executes the delta merge.
//
// Dimensions are reconciled and committed before any fact insert runs
// (two-phase commit boundary, not two-phase commit protocol): the fact
// phase reads its location foreign keys from durable dimension state. A
// failure in either phase rolls back that phase only; the run as a whole
// is safe to retry because every write is conflict-ignore by key.
func (l *DeltaLoader) Run(ctx context.Context) (*Stats, error) {
	count, err := l.repo.CountDelta(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("found new entries in preload_transaction", "count", count)

	if count == 0 {
		slog.Info("skipping insertion as there is no new entry")
		return &Stats{}, nil
	}

	delta, err := l.repo.SelectDelta(ctx)
	if err != nil {
		return nil, err
	}

	locations, err := l.resolveLocations(ctx, delta)
	if err != nil {
		return nil, err
	}

	items := collectItems(delta)
	dates := collectDates(delta)

	slog.Info("reconciling dimensions",
		"locations", len(locations),
		"items", len(items),
		"dates", len(dates),
	)
	if err := l.repo.ReconcileDimensions(ctx, locations, items, dates); err != nil {
		return nil, err
	}

	facts, err := l.buildFacts(ctx, delta)
	if err != nil {
		return nil, err
	}

	committed, err := l.repo.CommitFacts(ctx, facts)
	if err != nil {
		return nil, err
	}

	slog.Info("insertion finished",
		"delta", len(delta),
		"facts_committed", committed,
	)
	return &Stats{DeltaCount: len(delta), FactsCommitted: committed}, nil
}

// resolveLocations normalizes the distinct country names present in the
// delta but absent from dim_location. Unresolvable names collapse into the
// UNKNOWN sentinel, whose insert no-ops because the sentinel always
// exists.
func (l *DeltaLoader) resolveLocations(ctx context.Context, delta []*domain.StagedRecord) ([]domain.Location, error) {
	existing, err := l.repo.LocationNames(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var locations []domain.Location

	for _, rec := range delta {
		if rec.Country == nil {
			continue
		}
		name := *rec.Country

		if _, ok := existing[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		loc := l.resolver.Resolve(ctx, name)
		locations = append(locations, loc)
	}

	return dedupeByName(locations), nil
}

// dedupeByName keeps one location per canonical country name. Distinct raw
// names can resolve to the same dimension row (every failed lookup yields
// UNKNOWN), and dim_location keys on the name.
func dedupeByName(locations []domain.Location) []domain.Location {
	seen := make(map[string]struct{})
	out := locations[:0]
	for _, loc := range locations {
		if _, ok := seen[loc.CountryName]; ok {
			continue
		}
		seen[loc.CountryName] = struct{}{}
		out = append(out, loc)
	}
	return out
}

// collectItems gathers the distinct items of the delta. First occurrence
// wins, mirroring the conflict-ignore insert: dim_item rows are never
// updated once written.
func collectItems(delta []*domain.StagedRecord) []domain.Item {
	seen := make(map[int64]struct{})
	var items []domain.Item

	for _, rec := range delta {
		if _, ok := seen[rec.ItemCode]; ok {
			continue
		}
		seen[rec.ItemCode] = struct{}{}

		description := "unknown"
		if rec.ItemDescription != nil {
			description = *rec.ItemDescription
		}
		items = append(items, domain.Item{Code: rec.ItemCode, Description: description})
	}

	return items
}

// collectDates gathers the distinct calendar dates of the delta.
func collectDates(delta []*domain.StagedRecord) []domain.DateRow {
	seen := make(map[int64]struct{})
	var dates []domain.DateRow

	for _, rec := range delta {
		row := domain.NewDateRow(rec.TransactionTime)
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		dates = append(dates, row)
	}

	return dates
}

// buildFacts joins the delta against the committed dimension snapshot. A
// record whose country has no dim_location row takes the UNKNOWN
// sentinel's id: fact foreign keys are never null, even when
// reconciliation was somehow incomplete.
func (l *DeltaLoader) buildFacts(ctx context.Context, delta []*domain.StagedRecord) ([]*domain.FactRecord, error) {
	locationIDs, err := l.repo.LocationIDsByName(ctx)
	if err != nil {
		return nil, err
	}

	sentinelID, ok := locationIDs[domain.UnknownCountryName]
	if !ok {
		return nil, fmt.Errorf("sentinel location %q is missing from dim_location", domain.UnknownCountryName)
	}

	facts := make([]*domain.FactRecord, 0, len(delta))
	for _, rec := range delta {
		locationID := sentinelID
		if rec.Country != nil {
			if id, ok := locationIDs[*rec.Country]; ok {
				locationID = id
			}
		}

		facts = append(facts, &domain.FactRecord{
			HashID:          rec.HashID,
			TransactionID:   rec.TransactionID,
			UserID:          rec.UserID,
			DateID:          domain.DateID(rec.TransactionTime),
			TransactionTime: rec.TransactionTime,
			ItemID:          rec.ItemCode,
			ItemQuantity:    rec.ItemQuantity,
			CostPerItem:     rec.CostPerItem,
			TotalCost:       float64(rec.ItemQuantity) * rec.CostPerItem,
			LocationID:      locationID,
			CreatedAt:       rec.CreatedAt,
		})
	}

	return facts, nil
}
