package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/identity"
	"github.com/opensource-finance/skua/internal/pipeline"
	"github.com/opensource-finance/skua/internal/repository"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "skua-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	repo, err := repository.New(domain.RepositoryConfig{
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

	monitorFolder := t.TempDir()
	cfg := domain.DefaultConfig()
	cfg.MonitorFolder = monitorFolder
	cfg.ArchiveFolder = t.TempDir()

	runner := pipeline.NewRunner(cfg, repo, identity.NewResolver(nil))
	return NewServer(cfg.Server, repo, runner, "test"), monitorFolder
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("expected version test, got %q", body["version"])
	}
}

func TestReady(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("EmptyWarehouse", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/status")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var body StatusResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.FactCount != 0 {
			t.Errorf("expected 0 facts, got %d", body.FactCount)
		}
		if body.HighWater != "" {
			t.Errorf("expected no high-water mark, got %q", body.HighWater)
		}
		if body.LastRun != nil {
			t.Errorf("expected no last run, got %+v", body.LastRun)
		}
	})
}

func TestTriggerRun(t *testing.T) {
	srv, monitorFolder := newTestServer(t)

	csv := "UserId,TransactionId,TransactionTime,ItemCode,ItemDescription,NumberOfItemsPurchased,CostPerItem,Country\n" +
		"278166,6355745,Sun Feb 2 13:01:00 UTC 2019,465549,HANGING HEART T-LIGHT HOLDER,6,2.55,United Kingdom\n"
	if err := os.WriteFile(filepath.Join(monitorFolder, "transactions_1.csv"), []byte(csv), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report domain.RunReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.RunID == "" {
		t.Error("expected a run id")
	}
	if report.FilesStaged != 1 || report.RecordsStaged != 1 {
		t.Errorf("expected 1 file / 1 record staged, got %+v", report)
	}
	if report.FactsCommitted != 1 {
		t.Errorf("expected 1 committed fact, got %d", report.FactsCommitted)
	}

	// The run's result is visible on the status surface.
	status := doRequest(t, srv, http.MethodGet, "/status")
	var body StatusResponse
	if err := json.NewDecoder(status.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if body.FactCount != 1 {
		t.Errorf("expected 1 fact, got %d", body.FactCount)
	}
	if body.HighWater == "" {
		t.Error("expected a high-water mark after the run")
	}
	if body.LastRun == nil || body.LastRun.RunID != report.RunID {
		t.Errorf("expected last run %s on the status surface, got %+v", report.RunID, body.LastRun)
	}

	// Rerunning against an unchanged folder commits nothing new.
	rerun := doRequest(t, srv, http.MethodPost, "/runs")
	if rerun.Code != http.StatusOK {
		t.Fatalf("expected 200 on rerun, got %d", rerun.Code)
	}
	var second domain.RunReport
	if err := json.NewDecoder(rerun.Body).Decode(&second); err != nil {
		t.Fatalf("failed to decode rerun report: %v", err)
	}
	if second.FactsCommitted != 0 {
		t.Errorf("expected an idempotent rerun, got %d new facts", second.FactsCommitted)
	}
}
