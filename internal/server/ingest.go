package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// Pipeline is the ingest engine as seen by HTTP callers.
type Pipeline interface {
	Trigger(ctx context.Context, trigger string) (string, error)
	LastSummary(ctx context.Context) (*models.RunSummary, error)
	Active() bool
}

// StatsSource reports catalog row counts.
type StatsSource interface {
	Stats(ctx context.Context) (*repositories.CatalogStats, error)
}

// IngestHandler serves the manual trigger and run status endpoints.
type IngestHandler struct {
	pipeline Pipeline
	stats    StatsSource
	trigger  string
	logger   *log.Logger
	mux      *http.ServeMux
}

// NewIngestHandler creates the handler. stats may be nil, which disables the stats route.
func NewIngestHandler(pipeline Pipeline, stats StatsSource, trigger string, logger *log.Logger) *IngestHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	h := &IngestHandler{pipeline: pipeline, stats: stats, trigger: trigger, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /api/ingest", h.handleTrigger)
	h.mux.HandleFunc("GET /api/ingest/last", h.handleLast)
	h.mux.HandleFunc("GET /api/catalog/stats", h.handleStats)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *IngestHandler) Routes() []string {
	return []string{"POST /api/ingest", "GET /api/ingest/last", "GET /api/catalog/stats"}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type triggerResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// handleTrigger starts a run and answers 202 without waiting for it.
func (h *IngestHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	runID, err := h.pipeline.Trigger(r.Context(), h.trigger)
	switch {
	case errors.Is(err, shared.ErrRunActive):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to trigger run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start ingest run")
		return
	}

	h.logger.Info("run triggered over HTTP", "run", runID, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, triggerResponse{RunID: runID, Status: "accepted"})
}

type lastResponse struct {
	Active  bool               `json:"active"`
	Summary *models.RunSummary `json:"summary"`
}

func (h *IngestHandler) handleLast(w http.ResponseWriter, r *http.Request) {
	summary, err := h.pipeline.LastSummary(r.Context())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeError(w, http.StatusNotFound, "no ingest runs recorded")
		return
	case err != nil:
		h.logger.Error("failed to load last run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load last run")
		return
	}
	writeJSON(w, http.StatusOK, lastResponse{Active: h.pipeline.Active(), Summary: summary})
}

func (h *IngestHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "catalog stats unavailable")
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to count catalog rows", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count catalog rows")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health answers liveness probes. It is registered outside the auth middleware.
func Health(pipeline Pipeline) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active": pipeline.Active()})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
