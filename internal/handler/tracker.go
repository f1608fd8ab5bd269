package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/service"
	"gta-grind-tracker/pkg/apierror"
	"gta-grind-tracker/pkg/response"
)

// TrackerHandler handles the board and every record endpoint.
type TrackerHandler struct {
	tracker   *service.TrackerService
	refresher *service.Refresher
}

// NewTrackerHandler creates a new tracker handler.
func NewTrackerHandler(tracker *service.TrackerService, refresher *service.Refresher) *TrackerHandler {
	return &TrackerHandler{tracker: tracker, refresher: refresher}
}

// Board handles GET /api/v1/board
func (h *TrackerHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.tracker.Board(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"entries": board,
		"pending": h.tracker.PendingConfirmations(),
	})
}

// BoardEntry handles GET /api/v1/board/{id}
func (h *TrackerHandler) BoardEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.tracker.BoardEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, entry)
}

// Refresh handles POST /api/v1/refresh
func (h *TrackerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.refresher.Refresh(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("refresh failed: "+err.Error()))
		return
	}
	response.OK(w, map[string]interface{}{
		"taken_at": snap.TakenAt,
		"status":   h.refresher.Status(),
	})
}

// ---------------------------------------------------------------------------
// Sessions

// StartSession handles POST /api/v1/sessions
func (h *TrackerHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		response.Error(w, err)
		return
	}

	session, err := h.tracker.StartSession(r.Context(), req.ActivityID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, session)
}

// StopSession handles POST /api/v1/sessions/{activity_id}/stop
func (h *TrackerHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	pc, err := h.tracker.StopSession(r.Context(), chi.URLParam(r, "activity_id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, pc)
}

// ConfirmSession handles POST /api/v1/sessions/{activity_id}/confirm
func (h *TrackerHandler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	session, err := h.tracker.ConfirmSession(r.Context(), chi.URLParam(r, "activity_id"), req.MoneyEarned)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, session)
}

// RecentSessions handles GET /api/v1/sessions
func (h *TrackerHandler) RecentSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.tracker.RecentSessions(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, sessions)
}

// BulkCreateSessions handles POST /api/v1/bulk/sessions
func (h *TrackerHandler) BulkCreateSessions(w http.ResponseWriter, r *http.Request) {
	var sessions []model.Session
	if err := decodeJSON(r, &sessions); err != nil {
		response.Error(w, err)
		return
	}

	created, err := h.tracker.BulkCreateSessions(r.Context(), sessions)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, map[string]interface{}{
		"created":  len(created),
		"sessions": created,
	})
}

// ---------------------------------------------------------------------------
// Sell sessions

// StartSell handles POST /api/v1/sell-sessions
func (h *TrackerHandler) StartSell(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		response.Error(w, err)
		return
	}

	ss, err := h.tracker.StartSell(r.Context(), req.ActivityID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, ss)
}

// StopSell handles POST /api/v1/sell-sessions/{activity_id}/stop
func (h *TrackerHandler) StopSell(w http.ResponseWriter, r *http.Request) {
	pc, err := h.tracker.StopSell(r.Context(), chi.URLParam(r, "activity_id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, pc)
}

// ConfirmSell handles POST /api/v1/sell-sessions/{activity_id}/confirm
func (h *TrackerHandler) ConfirmSell(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	ss, err := h.tracker.ConfirmSell(r.Context(), chi.URLParam(r, "activity_id"), req.MoneyEarned)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, ss)
}

// ActiveSells handles GET /api/v1/sell-sessions
func (h *TrackerHandler) ActiveSells(w http.ResponseWriter, r *http.Request) {
	sells, err := h.tracker.ActiveSellSessions(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, sells)
}
