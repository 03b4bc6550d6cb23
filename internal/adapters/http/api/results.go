// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"

	"github.com/feisworks/feispoints/internal/domain/model"
)

// ResultsHandler handles round result and recall queries.
type ResultsHandler struct {
	deps       Dependencies
	maxResults int
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps Dependencies, maxResults int) *ResultsHandler {
	return &ResultsHandler{deps: deps, maxResults: maxResults}
}

// judgeScoreView mirrors one per-judge detail row.
type judgeScoreView struct {
	JudgeID  string  `json:"judge_id"`
	RawScore float64 `json:"raw_score"`
	Rank     int     `json:"rank"`
	Points   float64 `json:"points"`
}

// resultView mirrors one competitor's aggregate in the response.
type resultView struct {
	CompetitorID string           `json:"competitor_id"`
	TotalPoints  float64          `json:"total_points"`
	Rank         int              `json:"rank"`
	JudgeScores  []judgeScoreView `json:"judge_scores"`
}

type roundResultResponse struct {
	RoundID string       `json:"round_id"`
	Results []resultView `json:"results"`
}

type recallResponse struct {
	RoundID  string   `json:"round_id"`
	Recalled []string `json:"recalled"`
}

// HandleRounds routes GET /rounds/{id}/results and GET /rounds/{id}/recall.
func (h *ResultsHandler) HandleRounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/rounds/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	roundID := model.RoundID(parts[0])

	switch parts[1] {
	case "results":
		h.handleResults(w, r, roundID)
	case "recall":
		h.handleRecall(w, r, roundID)
	default:
		http.NotFound(w, r)
	}
}

func (h *ResultsHandler) handleResults(w http.ResponseWriter, r *http.Request, roundID model.RoundID) {
	result, err := h.deps.CalculateRound(r.Context(), roundID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	n := len(result.Results)
	if h.maxResults > 0 && n > h.maxResults {
		n = h.maxResults
	}
	views := make([]resultView, n)
	for i := 0; i < n; i++ {
		res := result.Results[i]
		details := make([]judgeScoreView, len(res.JudgeScores))
		for j, d := range res.JudgeScores {
			details[j] = judgeScoreView{
				JudgeID:  string(d.JudgeID),
				RawScore: d.RawScore,
				Rank:     d.Rank,
				Points:   d.Points,
			}
		}
		views[i] = resultView{
			CompetitorID: string(res.CompetitorID),
			TotalPoints:  res.TotalPoints,
			Rank:         res.Rank,
			JudgeScores:  details,
		}
	}
	writeJSON(w, http.StatusOK, roundResultResponse{RoundID: string(roundID), Results: views})
}

func (h *ResultsHandler) handleRecall(w http.ResponseWriter, r *http.Request, roundID model.RoundID) {
	recalled, err := h.deps.RecallForRound(r.Context(), roundID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ids := make([]string, len(recalled))
	for i, id := range recalled {
		ids[i] = string(id)
	}
	writeJSON(w, http.StatusOK, recallResponse{RoundID: string(roundID), Recalled: ids})
}
