package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-sales-etl/internal/config"
	"go-sales-etl/internal/pipeline"
	"go-sales-etl/internal/store"
)

// RunHandler exposes pipeline runs and their audit trail over HTTP.
type RunHandler struct {
	store *store.Store
	cfg   config.Config
	log   *slog.Logger
}

// NewRunHandler wires the store client and configuration.
func NewRunHandler(st *store.Store, cfg config.Config, log *slog.Logger) *RunHandler {
	return &RunHandler{store: st, cfg: cfg, log: log}
}

type createRunRequest struct {
	Source string `json:"source,omitempty"` // optional override of the configured source path
}

// CreateRun starts a pipeline run asynchronously and returns its execution id.
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}
	source := h.cfg.Source.Path
	if req.Source != "" {
		source = req.Source
	}

	executionID := uuid.NewString()
	orch := h.buildOrchestrator(source).WithIDGenerator(func() string { return executionID })

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := orch.Run(ctx); err != nil {
			h.log.Error("async run failed", "execution_id", executionID, "error", err.Error())
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"execution_id": executionID,
		"status":       "started",
		"source":       source,
		"created_at":   time.Now().UTC(),
	})
}

// ListRuns returns recent execution runs.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListExecutions(r.Context(), 100)
	if err != nil {
		http.Error(w, "failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRunEvents returns the audit events of one execution.
func (h *RunHandler) GetRunEvents(w http.ResponseWriter, r *http.Request) {
	executionID := pathSegment(r.URL.Path, 3)
	if executionID == "" {
		http.Error(w, "execution id is required", http.StatusBadRequest)
		return
	}
	events, err := h.store.ListStageEvents(r.Context(), executionID)
	if err != nil {
		http.Error(w, "failed to fetch events", http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetRunRejections returns the quarantine entries of one execution.
func (h *RunHandler) GetRunRejections(w http.ResponseWriter, r *http.Request) {
	executionID := pathSegment(r.URL.Path, 3)
	if executionID == "" {
		http.Error(w, "execution id is required", http.StatusBadRequest)
		return
	}
	entries, err := h.store.ListRejections(r.Context(), executionID)
	if err != nil {
		http.Error(w, "failed to fetch rejections", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetSummary returns store-level verification counts.
func (h *RunHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountSales(r.Context())
	if err != nil {
		http.Error(w, "failed to count sales", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sales_rows": count})
}

func (h *RunHandler) buildOrchestrator(source string) *pipeline.Orchestrator {
	extractor := pipeline.NewCSVExtractor(source)
	transformer := pipeline.NewTransformer(h.log)
	loader := pipeline.NewLoader(h.store, h.store, pipeline.LoaderOptions{
		ChunkSize: h.cfg.Load.ChunkSize,
		Workers:   h.cfg.Load.Workers,
		Timeout:   h.cfg.Database.StoreTimeout(),
		Policy: pipeline.RetryPolicy{
			MaxAttempts:   h.cfg.Load.MaxAttempts,
			InitialDelay:  h.cfg.Load.InitialDelay(),
			MaxDelay:      h.cfg.Load.MaxDelay(),
			BackoffFactor: 2.0,
			Transient:     store.IsTransient,
		},
	}, h.log)
	tracker := pipeline.NewTracker(h.store)
	return pipeline.NewOrchestrator(extractor, transformer, loader, tracker, h.log)
}

// pathSegment returns the nth segment of a slash-separated path, "" if absent.
func pathSegment(path string, n int) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if n >= len(segs) {
		return ""
	}
	return segs[n]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
