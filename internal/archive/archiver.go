// Package archive persists rejected raw rows to timestamped side files so
// a failed conversion is never silently dropped.
package archive

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opensource-finance/skua/internal/domain"
)

const fileTimeFormat = "2006-01-02_15-04-05"

// Archiver writes unconvertible entries to a CSV file named after the run
// timestamp, e.g. "2019-02-05_13-10-00_unconvertibles.csv".
type Archiver struct {
	folder    string
	timestamp time.Time
}

// New creates an Archiver for one run.
func New(folder string, timestamp time.Time) *Archiver {
	return &Archiver{
		folder:    folder,
		timestamp: timestamp,
	}
}

// FileName returns the archive file name for this run.
func (a *Archiver) FileName() string {
	return a.timestamp.Format(fileTimeFormat) + "_unconvertibles.csv"
}

// Archive appends the entries to this run's archive file, creating the
// archive folder on first use. The header is taken from the first entry's
// source column order; entries from the same delivery share it.
func (a *Archiver) Archive(entries []domain.RawRecord) error {
	if len(entries) == 0 {
		return nil
	}

	slog.Warn("caught unconvertible entries", "count", len(entries))

	if err := os.MkdirAll(a.folder, 0755); err != nil {
		return fmt.Errorf("failed to create archive folder: %w", err)
	}

	path := filepath.Join(a.folder, a.FileName())

	newFile := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		newFile = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	keys := entries[0].Keys()
	if newFile {
		if err := w.Write(keys); err != nil {
			return fmt.Errorf("failed to write archive header: %w", err)
		}
	}

	for _, entry := range entries {
		row := make([]string, len(keys))
		for i, key := range keys {
			row[i], _ = entry.Get(key)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write archive row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush archive file: %w", err)
	}

	slog.Warn("archived unconvertible entries", "count", len(entries), "file", path)
	return nil
}
