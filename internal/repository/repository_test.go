package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/skua/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "skua-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	if err := repo.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
		os.Remove(tmpPath)
	})

	return repo
}

func staged(hash string, transactionTime, createdAt time.Time, country *string) *domain.StagedRecord {
	description := "HANGING HEART T-LIGHT HOLDER"
	return &domain.StagedRecord{
		HashID:          hash,
		TransactionID:   6355745,
		UserID:          278166,
		TransactionTime: transactionTime,
		ItemCode:        465549,
		ItemDescription: &description,
		ItemQuantity:    6,
		CostPerItem:     2.55,
		Country:         country,
		CreatedAt:       createdAt,
	}
}

func strptr(s string) *string { return &s }

func TestInitSchema(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		if err := repo.InitSchema(ctx); err != nil {
			t.Errorf("second InitSchema failed: %v", err)
		}
	})

	t.Run("SeedsSentinel", func(t *testing.T) {
		ids, err := repo.LocationIDsByName(ctx)
		if err != nil {
			t.Fatalf("LocationIDsByName failed: %v", err)
		}
		if _, ok := ids[domain.UnknownCountryName]; !ok {
			t.Error("expected the UNKNOWN sentinel to exist after InitSchema")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestStaging(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	txTime := time.Date(2019, time.February, 5, 13, 10, 0, 0, time.UTC)
	t1 := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	t.Run("AppendAndList", func(t *testing.T) {
		records := []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1, strptr("United Kingdom")),
			staged("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", txTime, t1, nil),
		}
		if err := repo.AppendStaged(ctx, "transactions_1.csv", records); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}

		files, err := repo.ListStagedSourceFiles(ctx)
		if err != nil {
			t.Fatalf("ListStagedSourceFiles failed: %v", err)
		}
		if _, ok := files["transactions_1.csv"]; !ok {
			t.Error("expected transactions_1.csv to be listed as staged")
		}
		if len(files) != 1 {
			t.Errorf("expected 1 staged file, got %d", len(files))
		}
	})

	t.Run("EmptyAppendIsNoop", func(t *testing.T) {
		if err := repo.AppendStaged(ctx, "empty.csv", nil); err != nil {
			t.Fatalf("empty AppendStaged failed: %v", err)
		}

		files, err := repo.ListStagedSourceFiles(ctx)
		if err != nil {
			t.Fatalf("ListStagedSourceFiles failed: %v", err)
		}
		if _, ok := files["empty.csv"]; ok {
			t.Error("an empty append must not register the source file")
		}
	})

	t.Run("RequiresSourceFile", func(t *testing.T) {
		err := repo.AppendStaged(ctx, "", []*domain.StagedRecord{
			staged("cccccccccccccccccccccccccccccccc", txTime, t1, nil),
		})
		if err == nil {
			t.Error("expected an error for empty source file")
		}
	})

	t.Run("DuplicateHashesAllowed", func(t *testing.T) {
		// Overlapping re-delivery under a new name: same hash again.
		records := []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1.Add(time.Hour), strptr("United Kingdom")),
		}
		if err := repo.AppendStaged(ctx, "transactions_1_redelivery.csv", records); err != nil {
			t.Errorf("the ledger must accept duplicate hashes: %v", err)
		}
	})
}

func TestDelta(t *testing.T) {
	txTime := time.Date(2019, time.February, 5, 13, 10, 0, 0, time.UTC)
	t1 := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(2 * time.Hour)

	t.Run("EmptyLedger", func(t *testing.T) {
		repo := newTestRepo(t)
		ctx := context.Background()

		count, err := repo.CountDelta(ctx)
		if err != nil {
			t.Fatalf("CountDelta failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty delta, got %d", count)
		}

		records, err := repo.SelectDelta(ctx)
		if err != nil {
			t.Fatalf("SelectDelta failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("HighWaterEmptyFactTable", func(t *testing.T) {
		repo := newTestRepo(t)

		hw, err := repo.FactHighWater(context.Background())
		if err != nil {
			t.Fatalf("FactHighWater failed: %v", err)
		}
		if !hw.IsZero() {
			t.Errorf("expected zero high-water mark, got %v", hw)
		}
	})

	t.Run("DedupEarliestWins", func(t *testing.T) {
		repo := newTestRepo(t)
		ctx := context.Background()

		// Same hash staged twice from overlapping deliveries.
		if err := repo.AppendStaged(ctx, "a.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}
		if err := repo.AppendStaged(ctx, "b.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t2, nil),
			staged("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", txTime, t2, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}

		count, err := repo.CountDelta(ctx)
		if err != nil {
			t.Fatalf("CountDelta failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected delta of 2, got %d", count)
		}

		records, err := repo.SelectDelta(ctx)
		if err != nil {
			t.Fatalf("SelectDelta failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}

		for _, rec := range records {
			if rec.HashID == "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" && !rec.CreatedAt.Equal(t1) {
				t.Errorf("expected the earliest staged copy (t1), got %v", rec.CreatedAt)
			}
		}
	})

	t.Run("WatermarkFiltersCommitted", func(t *testing.T) {
		repo := newTestRepo(t)
		ctx := context.Background()

		if err := repo.AppendStaged(ctx, "a.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}

		commitDeltaAsFacts(t, repo)

		hw, err := repo.FactHighWater(ctx)
		if err != nil {
			t.Fatalf("FactHighWater failed: %v", err)
		}
		if !hw.Equal(t1) {
			t.Fatalf("expected high-water %v, got %v", t1, hw)
		}

		// Everything at or before the high-water mark is out.
		count, err := repo.CountDelta(ctx)
		if err != nil {
			t.Fatalf("CountDelta failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty delta after commit, got %d", count)
		}

		// A re-delivery of the committed hash stays out: its first-seen
		// copy sits at the watermark.
		if err := repo.AppendStaged(ctx, "b.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t2, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}
		count, err = repo.CountDelta(ctx)
		if err != nil {
			t.Fatalf("CountDelta failed: %v", err)
		}
		if count != 0 {
			t.Errorf("a re-delivered committed hash must not re-enter the delta, got %d", count)
		}

		// A genuinely new hash staged later is in.
		if err := repo.AppendStaged(ctx, "c.csv", []*domain.StagedRecord{
			staged("cccccccccccccccccccccccccccccccc", txTime, t3, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}
		count, err = repo.CountDelta(ctx)
		if err != nil {
			t.Fatalf("CountDelta failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected delta of 1 after staging a new hash, got %d", count)
		}
	})

	t.Run("CountMatchesSelect", func(t *testing.T) {
		repo := newTestRepo(t)
		ctx := context.Background()

		if err := repo.AppendStaged(ctx, "a.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1, nil),
			staged("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", txTime, t1, strptr("France")),
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t2, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}

		count, err := repo.CountDelta(ctx)
		if err != nil {
			t.Fatalf("CountDelta failed: %v", err)
		}
		records, err := repo.SelectDelta(ctx)
		if err != nil {
			t.Fatalf("SelectDelta failed: %v", err)
		}
		if count != len(records) {
			t.Errorf("CountDelta (%d) and SelectDelta (%d) disagree", count, len(records))
		}
	})
}

func TestDimensions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	locations := []domain.Location{
		{CountryCode: "GBR", CountryName: "United Kingdom", Continent: "Europe"},
	}
	items := []domain.Item{
		{Code: 465549, Description: "HANGING HEART T-LIGHT HOLDER"},
	}
	dates := []domain.DateRow{
		domain.NewDateRow(time.Date(2019, time.February, 5, 13, 10, 0, 0, time.UTC)),
	}

	t.Run("Reconcile", func(t *testing.T) {
		if err := repo.ReconcileDimensions(ctx, locations, items, dates); err != nil {
			t.Fatalf("ReconcileDimensions failed: %v", err)
		}

		names, err := repo.LocationNames(ctx)
		if err != nil {
			t.Fatalf("LocationNames failed: %v", err)
		}
		if _, ok := names["United Kingdom"]; !ok {
			t.Error("expected United Kingdom in dim_location")
		}
		if _, ok := names[domain.UnknownCountryName]; !ok {
			t.Error("expected the UNKNOWN sentinel in dim_location")
		}
	})

	t.Run("ReconcileIsIdempotent", func(t *testing.T) {
		before, err := repo.LocationIDsByName(ctx)
		if err != nil {
			t.Fatalf("LocationIDsByName failed: %v", err)
		}

		if err := repo.ReconcileDimensions(ctx, locations, items, dates); err != nil {
			t.Fatalf("second ReconcileDimensions failed: %v", err)
		}

		after, err := repo.LocationIDsByName(ctx)
		if err != nil {
			t.Fatalf("LocationIDsByName failed: %v", err)
		}
		if len(before) != len(after) {
			t.Errorf("expected no new rows, had %d now %d", len(before), len(after))
		}
		if before["United Kingdom"] != after["United Kingdom"] {
			t.Errorf("surrogate id changed across reconciles")
		}
	})
}

func TestFacts(t *testing.T) {
	txTime := time.Date(2019, time.February, 5, 13, 10, 0, 0, time.UTC)
	t1 := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	t.Run("CommitIsIdempotent", func(t *testing.T) {
		repo := newTestRepo(t)
		ctx := context.Background()

		if err := repo.AppendStaged(ctx, "a.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}

		first := commitDeltaAsFacts(t, repo)
		if first != 1 {
			t.Fatalf("expected 1 inserted fact, got %d", first)
		}

		// Replaying the identical commit is a no-op, not an error.
		second := replayFacts(t, repo, txTime, t1)
		if second != 0 {
			t.Errorf("expected 0 inserted on replay, got %d", second)
		}

		count, err := repo.FactCount(ctx)
		if err != nil {
			t.Fatalf("FactCount failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 fact row, got %d", count)
		}
	})

	t.Run("FactByHash", func(t *testing.T) {
		repo := newTestRepo(t)
		ctx := context.Background()

		if err := repo.AppendStaged(ctx, "a.csv", []*domain.StagedRecord{
			staged("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", txTime, t1, nil),
		}); err != nil {
			t.Fatalf("AppendStaged failed: %v", err)
		}
		commitDeltaAsFacts(t, repo)

		fact, err := repo.FactByHash(ctx, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
		if err != nil {
			t.Fatalf("FactByHash failed: %v", err)
		}
		if fact.DateID != 20190205 {
			t.Errorf("expected date id 20190205, got %d", fact.DateID)
		}
		if fact.TotalCost != float64(fact.ItemQuantity)*fact.CostPerItem {
			t.Errorf("total cost law violated: %v != %v * %v",
				fact.TotalCost, fact.ItemQuantity, fact.CostPerItem)
		}
		if !fact.CreatedAt.Equal(t1) {
			t.Errorf("fact created_at must carry the staged timestamp, got %v", fact.CreatedAt)
		}

		if _, err := repo.FactByHash(ctx, "ffffffffffffffffffffffffffffffff"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

// commitDeltaAsFacts reconciles dimensions for the current delta and
// commits one fact per delta record, the way the delta loader does.
func commitDeltaAsFacts(t *testing.T, repo domain.Repository) int {
	t.Helper()
	ctx := context.Background()

	delta, err := repo.SelectDelta(ctx)
	if err != nil {
		t.Fatalf("SelectDelta failed: %v", err)
	}

	var items []domain.Item
	var dates []domain.DateRow
	for _, rec := range delta {
		description := "unknown"
		if rec.ItemDescription != nil {
			description = *rec.ItemDescription
		}
		items = append(items, domain.Item{Code: rec.ItemCode, Description: description})
		dates = append(dates, domain.NewDateRow(rec.TransactionTime))
	}

	if err := repo.ReconcileDimensions(ctx, nil, items, dates); err != nil {
		t.Fatalf("ReconcileDimensions failed: %v", err)
	}

	ids, err := repo.LocationIDsByName(ctx)
	if err != nil {
		t.Fatalf("LocationIDsByName failed: %v", err)
	}
	sentinelID := ids[domain.UnknownCountryName]

	var facts []*domain.FactRecord
	for _, rec := range delta {
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
			LocationID:      sentinelID,
			CreatedAt:       rec.CreatedAt,
		})
	}

	inserted, err := repo.CommitFacts(ctx, facts)
	if err != nil {
		t.Fatalf("CommitFacts failed: %v", err)
	}
	return inserted
}

// replayFacts re-commits the same logical fact to prove conflict-ignore.
func replayFacts(t *testing.T, repo domain.Repository, txTime, createdAt time.Time) int {
	t.Helper()
	ctx := context.Background()

	ids, err := repo.LocationIDsByName(ctx)
	if err != nil {
		t.Fatalf("LocationIDsByName failed: %v", err)
	}

	inserted, err := repo.CommitFacts(ctx, []*domain.FactRecord{{
		HashID:          "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		TransactionID:   6355745,
		UserID:          278166,
		DateID:          domain.DateID(txTime),
		TransactionTime: txTime,
		ItemID:          465549,
		ItemQuantity:    6,
		CostPerItem:     2.55,
		TotalCost:       15.299999999999999,
		LocationID:      ids[domain.UnknownCountryName],
		CreatedAt:       createdAt,
	}})
	if err != nil {
		t.Fatalf("replay CommitFacts failed: %v", err)
	}
	return inserted
}
