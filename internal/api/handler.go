package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/pipeline"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	runner  *pipeline.Runner
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, runner *pipeline.Runner, version string) *Handler {
	return &Handler{
		repo:    repo,
		runner:  runner,
		version: version,
	}
}

// Health handles GET /health - liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready - readiness probe including the warehouse.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	FactCount int               `json:"factCount"`
	HighWater string            `json:"highWater,omitempty"`
	LastRun   *domain.RunReport `json:"lastRun,omitempty"`
}

// Status handles GET /status - warehouse high-water mark and last run.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.FactCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	resp := StatusResponse{
		FactCount: count,
		LastRun:   h.runner.LastReport(),
	}

	highWater, err := h.repo.FactHighWater(r.Context())
	if err == nil && !highWater.IsZero() {
		resp.HighWater = highWater.Format("2006-01-02T15:04:05Z07:00")
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerRun handles POST /runs - executes one pipeline run synchronously.
// Returns 409 when a run is already in flight in this process.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context())

	if errors.Is(err, pipeline.ErrRunInFlight) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
