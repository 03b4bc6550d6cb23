// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/feisworks/feispoints/internal/domain/model"
)

// ScoresHandler handles raw score submission.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the JSON schema for POST /scores.
type scoreRequest struct {
	JudgeID      string  `json:"judge_id"`
	CompetitorID string  `json:"competitor_id"`
	RoundID      string  `json:"round_id"`
	Value        float64 `json:"value"`
	Notes        string  `json:"notes,omitempty"`
}

func (r scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(r.JudgeID) == "":
		return ErrMissingJudge
	case strings.TrimSpace(r.CompetitorID) == "":
		return ErrMissingCompetitor
	case strings.TrimSpace(r.RoundID) == "":
		return ErrMissingRound
	}
	return nil
}

type scoreResponse struct {
	Status string `json:"status"`
}

// HandlePostScore handles POST /scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	score := model.RawScore{
		JudgeID:      model.JudgeID(req.JudgeID),
		CompetitorID: model.CompetitorID(req.CompetitorID),
		RoundID:      model.RoundID(req.RoundID),
		Value:        req.Value,
		Notes:        req.Notes,
	}
	if err := h.deps.SubmitScore(r.Context(), score); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, scoreResponse{Status: "accepted"})
}
