// Package preload stages delivered CSV transaction files into the preload
// ledger: extract new files from the monitored folder, normalize rows, and
// bulk-append them keyed by source file.
package preload

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/opensource-finance/skua/internal/archive"
	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/identity"
)

// FileBatch holds the raw rows extracted from one delivered file.
type FileBatch struct {
	Name    string
	Records []domain.RawRecord
}

// Stats summarizes one preload run.
type Stats struct {
	Files    int
	Staged   int
	Archived int
}

// PreLoader stages source files from a monitored folder.
type PreLoader struct {
	folder    string
	repo      domain.Repository
	archiver  *archive.Archiver
	createdAt time.Time
}

// New creates a PreLoader for one run. createdAt stamps every staged row
// of the run and becomes the fact commit timestamp downstream, so a single
// instant per run keeps the delta filter file-coherent.
func New(folder string, repo domain.Repository, archiver *archive.Archiver, createdAt time.Time) *PreLoader {
	return &PreLoader{
		folder:    folder,
		repo:      repo,
		archiver:  archiver,
		createdAt: createdAt.UTC(),
	}
}

// Run executes the staging ETL: extract, transform, load.
func (p *PreLoader) Run(ctx context.Context) (*Stats, error) {
	batches, err := p.Extract(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Files: len(batches)}
	for _, batch := range batches {
		staged, rejected := p.Transform(batch)

		if len(rejected) > 0 {
			if err := p.archiver.Archive(rejected); err != nil {
				return nil, fmt.Errorf("failed to archive rejected rows: %w", err)
			}
			stats.Archived += len(rejected)
		}

		if err := p.Load(ctx, batch.Name, staged); err != nil {
			return nil, err
		}
		stats.Staged += len(staged)
	}

	return stats, nil
}

// Extract lists CSV files in the monitored folder and reads the ones not
// yet present in the staging ledger. Already-staged files are skipped by
// name, which is what makes re-delivery of the same file a no-op.
func (p *PreLoader) Extract(ctx context.Context) ([]FileBatch, error) {
	slog.Info("starting extraction from source folder", "folder", p.folder)

	stagedFiles, err := p.repo.ListStagedSourceFiles(ctx)
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(p.folder, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list source folder: %w", err)
	}
	sort.Strings(paths)
	slog.Info("found source CSV files", "count", len(paths))

	var batches []FileBatch
	for _, path := range paths {
		name := filepath.Base(path)
		if _, ok := stagedFiles[name]; ok {
			continue
		}

		records, err := readCSV(path)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", name, err)
		}

		slog.Info("extracted source file", "source_file", name, "entries", len(records))
		batches = append(batches, FileBatch{Name: name, Records: records})
	}

	slog.Info("found new source CSV files compared to the ledger", "count", len(batches))
	return batches, nil
}

// Transform normalizes one file's raw rows into staged records. Rows with
// an unparseable timestamp or malformed numeric fields are returned as
// rejected — they never abort the batch.
func (p *PreLoader) Transform(batch FileBatch) ([]*domain.StagedRecord, []domain.RawRecord) {
	slog.Info("starting transformation", "source_file", batch.Name)

	var staged []*domain.StagedRecord
	var rejected []domain.RawRecord

	for _, raw := range batch.Records {
		rec, err := p.transformEntry(raw, batch.Name)
		if err != nil {
			slog.Warn("rejecting unconvertible entry",
				"source_file", batch.Name,
				"error", err,
			)
			rejected = append(rejected, raw)
			continue
		}
		staged = append(staged, rec)
	}

	slog.Info("transformed entries",
		"source_file", batch.Name,
		"staged", len(staged),
		"rejected", len(rejected),
	)
	return staged, rejected
}

// Load bulk-appends staged records for one source file.
func (p *PreLoader) Load(ctx context.Context, sourceFile string, records []*domain.StagedRecord) error {
	if len(records) == 0 {
		slog.Info("no data to insert into preload_transaction", "source_file", sourceFile)
		return nil
	}

	slog.Info("inserting into preload_transaction",
		"source_file", sourceFile,
		"count", len(records),
	)
	return p.repo.AppendStaged(ctx, sourceFile, records)
}

func (p *PreLoader) transformEntry(raw domain.RawRecord, sourceFile string) (*domain.StagedRecord, error) {
	// Hash before any conversion: identity is a pure function of the
	// delivered content.
	hashID := identity.Hash(raw)

	rawTime, _ := raw.Get(domain.FieldTransactionTime)
	transactionTime, err := ParseTransactionTime(rawTime)
	if err != nil {
		return nil, err
	}

	transactionID, err := intField(raw, domain.FieldTransactionID)
	if err != nil {
		return nil, err
	}
	userID, err := intField(raw, domain.FieldUserID)
	if err != nil {
		return nil, err
	}
	itemCode, err := intField(raw, domain.FieldItemCode)
	if err != nil {
		return nil, err
	}
	quantity, err := intField(raw, domain.FieldItemQuantity)
	if err != nil {
		return nil, err
	}
	costPerItem, err := floatField(raw, domain.FieldCostPerItem)
	if err != nil {
		return nil, err
	}

	return &domain.StagedRecord{
		HashID:          hashID,
		SourceFile:      sourceFile,
		TransactionID:   transactionID,
		UserID:          userID,
		TransactionTime: transactionTime,
		ItemCode:        itemCode,
		ItemDescription: optionalField(raw, domain.FieldItemDescription),
		ItemQuantity:    quantity,
		CostPerItem:     costPerItem,
		Country:         optionalField(raw, domain.FieldCountry),
		CreatedAt:       p.createdAt,
	}, nil
}

func intField(raw domain.RawRecord, key string) (int64, error) {
	v, ok := raw.Get(key)
	if !ok || v == "" {
		return 0, fmt.Errorf("missing field %s", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed field %s=%q: %w", key, v, err)
	}
	return n, nil
}

func floatField(raw domain.RawRecord, key string) (float64, error) {
	v, ok := raw.Get(key)
	if !ok || v == "" {
		return 0, fmt.Errorf("missing field %s", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed field %s=%q: %w", key, v, err)
	}
	return f, nil
}

func optionalField(raw domain.RawRecord, key string) *string {
	v, ok := raw.Get(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// readCSV reads a delivered file into raw records, preserving the source
// column order (the identity hash depends on it).
func readCSV(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records []domain.RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		fields := make([]domain.RawField, len(header))
		for i, key := range header {
			fields[i] = domain.RawField{Key: key, Value: row[i]}
		}
		records = append(records, domain.RawRecord{Fields: fields})
	}

	return records, nil
}
