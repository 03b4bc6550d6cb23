// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/feisworks/feispoints/internal/domain/model"
)

// AdvancementHandler handles the advancement notice lifecycle and the
// registration eligibility check.
type AdvancementHandler struct {
	deps Dependencies
}

// NewAdvancementHandler creates a new advancement handler.
func NewAdvancementHandler(deps Dependencies) *AdvancementHandler {
	return &AdvancementHandler{deps: deps}
}

// noticeView mirrors a notice in responses.
type noticeView struct {
	ID             string     `json:"id"`
	DancerID       string     `json:"dancer_id"`
	FromLevel      string     `json:"from_level"`
	ToLevel        string     `json:"to_level"`
	DanceType      string     `json:"dance_type,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	Overridden     bool       `json:"overridden"`
	OverriddenBy   string     `json:"overridden_by,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toNoticeView(n model.AdvancementNotice) noticeView {
	return noticeView{
		ID:             string(n.ID),
		DancerID:       string(n.DancerID),
		FromLevel:      string(n.FromLevel),
		ToLevel:        string(n.ToLevel),
		DanceType:      string(n.DanceType),
		Acknowledged:   n.Acknowledged,
		AcknowledgedAt: n.AcknowledgedAt,
		AcknowledgedBy: n.AcknowledgedBy,
		Overridden:     n.Overridden,
		OverriddenBy:   n.OverriddenBy,
		OverrideReason: n.OverrideReason,
		CreatedAt:      n.CreatedAt,
	}
}

// HandleDancers routes GET /dancers/{id}/advancement and
// GET /dancers/{id}/eligibility?level=...&dance=...
func (h *AdvancementHandler) HandleDancers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/dancers/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	dancerID := model.DancerID(parts[0])

	switch parts[1] {
	case "advancement":
		h.handlePending(w, r, dancerID)
	case "eligibility":
		h.handleEligibility(w, r, dancerID)
	default:
		http.NotFound(w, r)
	}
}

func (h *AdvancementHandler) handlePending(w http.ResponseWriter, r *http.Request, dancerID model.DancerID) {
	notices, err := h.deps.PendingNotices(r.Context(), dancerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]noticeView, len(notices))
	for i, n := range notices {
		views[i] = toNoticeView(n)
	}
	writeJSON(w, http.StatusOK, views)
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Message  string `json:"message,omitempty"`
}

func (h *AdvancementHandler) handleEligibility(w http.ResponseWriter, r *http.Request, dancerID model.DancerID) {
	level := r.URL.Query().Get("level")
	if level == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingLevel)
		return
	}
	dancer := model.Dancer{ID: dancerID, CurrentLevel: model.Level(level)}
	comp := model.Competition{
		Level:     model.Level(level),
		DanceType: model.DanceType(r.URL.Query().Get("dance")),
	}
	ok, msg, err := h.deps.CheckRegistrationEligibility(r.Context(), dancer, comp)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibilityResponse{Eligible: ok, Message: msg})
}

type actionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// HandleNotice routes POST /advancement/{id}/acknowledge and
// POST /advancement/{id}/override.
func (h *AdvancementHandler) HandleNotice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/advancement/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	id := model.NoticeID(parts[0])

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingActor)
		return
	}

	var (
		updated model.AdvancementNotice
		err     error
	)
	switch parts[1] {
	case "acknowledge":
		updated, err = h.deps.AcknowledgeAdvancement(r.Context(), id, req.ActorID)
	case "override":
		if strings.TrimSpace(req.Reason) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMissingReason)
			return
		}
		updated, err = h.deps.OverrideAdvancement(r.Context(), id, req.ActorID, req.Reason)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoticeView(updated))
}
