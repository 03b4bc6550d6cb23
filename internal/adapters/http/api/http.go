// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/feisworks/feispoints/internal/adapters/repository"
	"github.com/feisworks/feispoints/internal/domain/advance"
	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to implementations in other
// packages.
type Dependencies interface {
	SubmitScore(ctx context.Context, score model.RawScore) error
	CalculateRound(ctx context.Context, roundID model.RoundID) (model.RoundResult, error)
	RecallForRound(ctx context.Context, roundID model.RoundID) ([]model.CompetitorID, error)
	PendingNotices(ctx context.Context, dancerID model.DancerID) ([]model.AdvancementNotice, error)
	AcknowledgeAdvancement(ctx context.Context, id model.NoticeID, actorID string) (model.AdvancementNotice, error)
	OverrideAdvancement(ctx context.Context, id model.NoticeID, actorID, reason string) (model.AdvancementNotice, error)
	CheckRegistrationEligibility(ctx context.Context, dancer model.Dancer, comp model.Competition) (bool, string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	scoresHandler      *ScoresHandler
	resultsHandler     *ResultsHandler
	advancementHandler *AdvancementHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxResults int) *Server {
	return &Server{
		scoresHandler:      NewScoresHandler(deps),
		resultsHandler:     NewResultsHandler(deps, maxResults),
		advancementHandler: NewAdvancementHandler(deps),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleHealth)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	mux.HandleFunc("/rounds/", MetricsMiddleware(s.resultsHandler.HandleRounds, "rounds"))
	mux.HandleFunc("/dancers/", MetricsMiddleware(s.advancementHandler.HandleDancers, "dancers"))
	mux.HandleFunc("/advancement/", MetricsMiddleware(s.advancementHandler.HandleNotice, "advancement"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses:
// NotFound -> 404, InvalidInput -> 400, Consistency/AlreadyResolved -> 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, scoring.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, scoring.ErrConsistency) || errors.Is(err, advance.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
