package handlers

import (
	"net/http"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/internal/ranking"
	"github.com/jwlim/sectorpulse/pkg/config"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// RankingHandler handles ranking-related API endpoints
// SSOT: ranking API handlers live in this struct only
type RankingHandler struct {
	engine   *ranking.Engine
	composer *ranking.Composer
	cfg      *config.Config
	logger   *logger.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(engine *ranking.Engine, composer *ranking.Composer, cfg *config.Config, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		engine:   engine,
		composer: composer,
		cfg:      cfg,
		logger:   log,
	}
}

// GetRank returns the relative-strength ranking for one trading date
// GET /api/rank?date=2025-08-29
func (h *RankingHandler) GetRank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOf, err := asOfFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Rank(ctx, h.cfg.Ranking.Universe, h.cfg.Ranking.BenchmarkID, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to rank universe")
		if contracts.IsTransient(err) {
			respondError(w, http.StatusBadGateway, "Upstream provider unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to rank universe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}

// GetVelocity returns today's ranking joined with rank changes against the
// previous one and two trading sessions
// GET /api/velocity?date=2025-08-29
func (h *RankingHandler) GetVelocity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOf, err := asOfFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.composer.Velocity(ctx, h.cfg.Ranking.Universe, h.cfg.Ranking.BenchmarkID, asOf)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compose velocity report")
		if contracts.IsTransient(err) {
			respondError(w, http.StatusBadGateway, "Upstream provider unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to compose velocity report")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}

// asOfFromRequest parses the optional ?date= parameter, defaulting to now
func asOfFromRequest(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), nil
	}
	asOf, err := time.Parse(contracts.DateLayout, raw)
	if err != nil {
		return time.Time{}, errBadDate("date")
	}
	return asOf, nil
}
