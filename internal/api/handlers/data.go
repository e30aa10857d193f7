package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jwlim/sectorpulse/internal/collector"
	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/config"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// DataHandler handles data-related API endpoints
// SSOT: data API handlers live in this struct only
type DataHandler struct {
	reader    contracts.RangeReader
	store     contracts.EntityStore
	collector *collector.Collector
	cfg       *config.Config
	logger    *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(
	reader contracts.RangeReader,
	store contracts.EntityStore,
	col *collector.Collector,
	cfg *config.Config,
	log *logger.Logger,
) *DataHandler {
	return &DataHandler{
		reader:    reader,
		store:     store,
		collector: col,
		cfg:       cfg,
		logger:    log,
	}
}

// GetRange serves rows for a kind over an id set and date window, filling
// the store from the provider when the cached span does not cover the request
// GET /api/data/{kind}?ids=BK0475,BK0428&start=2025-08-01&end=2025-08-29
// GET /api/data/{kind}?ids=BK0475&date=2025-08-29
func (h *DataHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, ok := contracts.KindByName(mux.Vars(r)["kind"])
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown data kind")
		return
	}

	query, err := rangeQueryFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, fromCache, err := h.reader.FetchOrServe(ctx, kind, query)
	if err != nil {
		h.logger.WithError(err).WithField("kind", kind.Name).Error("Failed to serve range")
		if contracts.IsTransient(err) {
			respondError(w, http.StatusBadGateway, "Upstream provider unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to serve range")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":       kind.Name,
		"count":      len(rows),
		"from_cache": fromCache,
		"rows":       rows,
	})
}

// GetSpans reports the cached min/max date per entity for a kind
// GET /api/data/{kind}/spans?ids=BK0475,BK0428
func (h *DataHandler) GetSpans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, ok := contracts.KindByName(mux.Vars(r)["kind"])
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown data kind")
		return
	}

	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "Missing 'ids' parameter")
		return
	}

	spans, err := h.store.Spans(ctx, kind, ids)
	if err != nil {
		h.logger.WithError(err).WithField("kind", kind.Name).Error("Failed to read spans")
		respondError(w, http.StatusInternalServerError, "Failed to read spans")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":  kind.Name,
		"spans": spans,
	})
}

// CollectRequest represents a data collection request
type CollectRequest struct {
	IDs       []string `json:"ids"`        // Optional: defaults to the configured universe
	Benchmark string   `json:"benchmark"`  // Optional: defaults to the configured benchmark
	AsOf      string   `json:"as_of"`      // Optional: YYYY-MM-DD, defaults to today
}

// CollectResponse represents a data collection response
type CollectResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Results []CollectResult `json:"results,omitempty"`
}

// CollectResult is the JSON shape of one entity's collection outcome.
// The failure reason is flattened to a string; error values do not
// survive JSON encoding.
type CollectResult struct {
	ID        string `json:"id"`
	RowCount  int    `json:"row_count"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
}

func collectResults(results []collector.FetchResult) []CollectResult {
	out := make([]CollectResult, 0, len(results))
	for _, r := range results {
		cr := CollectResult{
			ID:        r.ID,
			RowCount:  r.RowCount,
			FromCache: r.FromCache,
		}
		if r.Error != nil {
			cr.Error = r.Error.Error()
		}
		out = append(out, cr)
	}
	return out
}

// Collect triggers a collection run over the universe
// POST /api/collect
func (h *DataHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CollectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	ids := req.IDs
	if len(ids) == 0 {
		ids = h.cfg.Ranking.Universe
	}
	benchmark := req.Benchmark
	if benchmark == "" {
		benchmark = h.cfg.Ranking.BenchmarkID
	}

	asOf := time.Now()
	if req.AsOf != "" {
		var err error
		asOf, err = time.Parse(contracts.DateLayout, req.AsOf)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'as_of' date format (expected YYYY-MM-DD)")
			return
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"ids":   len(ids),
		"as_of": asOf.Format(contracts.DateLayout),
	}).Info("Collection triggered")

	results, err := h.collector.CollectIndexDaily(ctx, ids, benchmark, asOf, collector.Config{
		Workers:     h.cfg.Ranking.FetchWorkers,
		HistoryDays: h.cfg.Ranking.HistoryDays,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to collect")
		respondError(w, http.StatusInternalServerError, "Failed to collect")
		return
	}

	respondJSON(w, http.StatusOK, CollectResponse{
		Status:  "success",
		Message: "Index histories collected",
		Results: collectResults(results),
	})
}

// rangeQueryFromRequest builds a RangeQuery from URL parameters
func rangeQueryFromRequest(r *http.Request) (contracts.RangeQuery, error) {
	q := contracts.RangeQuery{
		IDs:  splitIDs(r.URL.Query().Get("ids")),
		Desc: r.URL.Query().Get("order") == "desc",
	}

	if date := r.URL.Query().Get("date"); date != "" {
		exact, err := time.Parse(contracts.DateLayout, date)
		if err != nil {
			return q, errBadDate("date")
		}
		q.Exact = exact
	}
	if start := r.URL.Query().Get("start"); start != "" {
		t, err := time.Parse(contracts.DateLayout, start)
		if err != nil {
			return q, errBadDate("start")
		}
		q.Start = t
	}
	if end := r.URL.Query().Get("end"); end != "" {
		t, err := time.Parse(contracts.DateLayout, end)
		if err != nil {
			return q, errBadDate("end")
		}
		q.End = t
	}

	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func errBadDate(param string) error {
	return fmt.Errorf("invalid '%s' date format (expected YYYY-MM-DD)", param)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
