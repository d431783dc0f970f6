// Skua - batch loader for the transaction star-schema warehouse.
//
// Usage:
//   skua init                   apply the warehouse schema (idempotent)
//   skua preload [--folder F]   stage delivered CSV files from F
//   skua load                   merge the staged delta into the warehouse
//   skua run [--folder F]       preload + load in one invocation
//   skua serve                  admin HTTP surface (health/status/trigger)

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/skua/internal/api"
	"github.com/opensource-finance/skua/internal/archive"
	"github.com/opensource-finance/skua/internal/cache"
	"github.com/opensource-finance/skua/internal/deltaload"
	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/identity"
	"github.com/opensource-finance/skua/internal/pipeline"
	"github.com/opensource-finance/skua/internal/preload"
	"github.com/opensource-finance/skua/internal/repository"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; explicit environment always wins.
	_ = godotenv.Load()

	cfg := domain.ConfigFromEnv()
	initLogger(cfg.Logging)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "init":
		err = runInit(cfg)
	case "preload":
		err = runPreload(cfg, args)
	case "load":
		err = runLoad(cfg)
	case "run":
		err = runPipeline(cfg, args)
	case "serve":
		err = runServe(cfg)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: skua <init|preload|load|run|serve> [flags]")
}

func initLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	if cfg.Level == "debug" || os.Getenv("SKUA_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func openRepository(cfg *domain.Config) (domain.Repository, error) {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return nil, err
	}
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)
	return repo, nil
}

func newResolver(cfg *domain.Config) (*identity.Resolver, domain.LocationCache, error) {
	locationCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	return identity.NewResolver(locationCache), locationCache, nil
}

func runInit(cfg *domain.Config) error {
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.InitSchema(context.Background()); err != nil {
		return err
	}

	slog.Info("warehouse schema applied")
	return nil
}

func runPreload(cfg *domain.Config, args []string) error {
	fs := flag.NewFlagSet("preload", flag.ExitOnError)
	folder := fs.String("folder", cfg.MonitorFolder, "path to the folder with source files to stage")
	fs.Parse(args)

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	now := time.Now().UTC()
	archiver := archive.New(cfg.ArchiveFolder, now)
	loader := preload.New(*folder, repo, archiver, now)

	stats, err := loader.Run(context.Background())
	if err != nil {
		return err
	}

	slog.Info("preload finished",
		"files", stats.Files,
		"staged", stats.Staged,
		"archived", stats.Archived,
	)
	return nil
}

func runLoad(cfg *domain.Config) error {
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	resolver, locationCache, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer locationCache.Close()

	stats, err := deltaload.New(repo, resolver).Run(context.Background())
	if err != nil {
		return err
	}

	slog.Info("delta load finished",
		"delta", stats.DeltaCount,
		"facts_committed", stats.FactsCommitted,
	)
	return nil
}

func runPipeline(cfg *domain.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	folder := fs.String("folder", cfg.MonitorFolder, "path to the folder with source files to stage")
	fs.Parse(args)
	cfg.MonitorFolder = *folder

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	resolver, locationCache, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer locationCache.Close()

	runner := pipeline.NewRunner(cfg, repo, resolver)
	_, err = runner.Run(context.Background())
	return err
}

func runServe(cfg *domain.Config) error {
	slog.Info("starting skua",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	resolver, locationCache, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer locationCache.Close()

	runner := pipeline.NewRunner(cfg, repo, resolver)
	server := api.NewServer(cfg.Server, repo, runner, Version)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
		)
		errCh <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
