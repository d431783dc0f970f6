// Feeder - relocates the next delivered source file into the monitored
// folder, imitating an upstream delivery process.
//
// Usage:
//   feeder [--source_folder S] [--destination_folder D]

package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/feeder"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := domain.ConfigFromEnv()

	source := flag.String("source_folder", cfg.SourceFolder, "path/to/the source folder")
	destination := flag.String("destination_folder", cfg.MonitorFolder, "path/to/the destination folder")
	flag.Parse()

	if err := feeder.Feed(*source, *destination); err != nil {
		slog.Error("feeding failed", "error", err)
		os.Exit(1)
	}
}
