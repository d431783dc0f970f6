// Package feeder relocates delivered source files into the monitored
// folder one at a time, imitating an upstream delivery process.
package feeder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoSourceFolder is returned when the source folder does not exist;
// this is a configuration failure and aborts before any I/O.
var ErrNoSourceFolder = errors.New("source folder does not exist")

// NextFile returns the alphabetically first CSV file in folder, or ""
// when there is nothing to feed.
func NextFile(folder string) (string, error) {
	paths, err := filepath.Glob(filepath.Join(folder, "*.csv"))
	if err != nil {
		return "", fmt.Errorf("failed to list source folder: %w", err)
	}
	if len(paths) == 0 {
		return "", nil
	}

	sort.Strings(paths)
	return paths[0], nil
}

// Feed moves the next available source file into the destination folder.
// The destination folder is created when absent; a missing source folder
// is an error.
func Feed(srcFolder, dstFolder string) error {
	if _, err := os.Stat(srcFolder); err != nil {
		return fmt.Errorf("%w: %s", ErrNoSourceFolder, srcFolder)
	}

	if _, err := os.Stat(dstFolder); os.IsNotExist(err) {
		slog.Warn("monitor (destination) folder does not exist, creating it", "folder", dstFolder)
		if err := os.MkdirAll(dstFolder, 0755); err != nil {
			return fmt.Errorf("failed to create destination folder: %w", err)
		}
	}

	slog.Info("looking for available source file", "folder", srcFolder)
	next, err := NextFile(srcFolder)
	if err != nil {
		return err
	}
	if next == "" {
		slog.Info("found no processable file")
		return nil
	}

	dst := filepath.Join(dstFolder, filepath.Base(next))
	slog.Info("moving source file", "src", next, "dst", dst)
	return moveFile(next, dst)
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy source file: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}
