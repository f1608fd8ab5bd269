package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gta-grind-tracker/pkg/apierror"
	"gta-grind-tracker/pkg/response"
)

// Cooldowns handles GET /api/v1/cooldowns
func (h *TrackerHandler) Cooldowns(w http.ResponseWriter, r *http.Request) {
	cooldowns, err := h.tracker.ActiveCooldowns(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, cooldowns)
}

// StartCooldown handles POST /api/v1/cooldowns
func (h *TrackerHandler) StartCooldown(w http.ResponseWriter, r *http.Request) {
	var req timerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := (activityRequest{ActivityID: req.ActivityID}).validate(); err != nil {
		response.Error(w, err)
		return
	}

	c, err := h.tracker.StartCooldown(r.Context(), req.ActivityID, req.Minutes)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, c)
}

// ClearCooldown handles DELETE /api/v1/cooldowns/{activity_id}
func (h *TrackerHandler) ClearCooldown(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ClearCooldown(r.Context(), chi.URLParam(r, "activity_id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Resupplies handles GET /api/v1/resupply
func (h *TrackerHandler) Resupplies(w http.ResponseWriter, r *http.Request) {
	resupplies, err := h.tracker.Resupplies(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, resupplies)
}

// StartResupply handles POST /api/v1/resupply
func (h *TrackerHandler) StartResupply(w http.ResponseWriter, r *http.Request) {
	var req timerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := (activityRequest{ActivityID: req.ActivityID}).validate(); err != nil {
		response.Error(w, err)
		return
	}

	rs, err := h.tracker.StartResupply(r.Context(), req.ActivityID, req.Minutes)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, rs)
}

// ClearResupply handles DELETE /api/v1/resupply/{activity_id}
func (h *TrackerHandler) ClearResupply(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ClearResupply(r.Context(), chi.URLParam(r, "activity_id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Production handles GET /api/v1/production
func (h *TrackerHandler) Production(w http.ResponseWriter, r *http.Request) {
	production, err := h.tracker.Production(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, production)
}

// ProductionOf handles GET /api/v1/production/{activity_id}
func (h *TrackerHandler) ProductionOf(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.ProductionOf(r.Context(), chi.URLParam(r, "activity_id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}

// SetProduction handles POST /api/v1/production
func (h *TrackerHandler) SetProduction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActivityID   string `json:"activity_id"`
		CurrentStock *int   `json:"current_stock"`
	}
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := (activityRequest{ActivityID: req.ActivityID}).validate(); err != nil {
		response.Error(w, err)
		return
	}
	if req.CurrentStock == nil {
		response.Error(w, apierror.ValidationError("current_stock is required",
			apierror.FieldError{Field: "current_stock", Message: "is required"}))
		return
	}

	p, err := h.tracker.SetProduction(r.Context(), req.ActivityID, *req.CurrentStock)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}

// ClearProduction handles DELETE /api/v1/production/{activity_id}
func (h *TrackerHandler) ClearProduction(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ClearProduction(r.Context(), chi.URLParam(r, "activity_id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// CollectSafe handles POST /api/v1/safes/{activity_id}/collect
func (h *TrackerHandler) CollectSafe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MoneyCollected int64 `json:"money_collected"`
	}
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	c, err := h.tracker.CollectSafe(r.Context(), chi.URLParam(r, "activity_id"), req.MoneyCollected)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, c)
}

// SafeCollections handles GET /api/v1/safes/collections
func (h *TrackerHandler) SafeCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.tracker.SafeCollections(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, collections)
}

// Stats handles GET /api/v1/stats
func (h *TrackerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tracker.Stats(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}

// StatsOf handles GET /api/v1/stats/{activity_id}
func (h *TrackerHandler) StatsOf(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tracker.StatsOf(r.Context(), chi.URLParam(r, "activity_id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}

// ResetActivity handles DELETE /api/v1/stats/{activity_id}
func (h *TrackerHandler) ResetActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ResetActivity(r.Context(), chi.URLParam(r, "activity_id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// ResetAll handles DELETE /api/v1/stats?confirm=RESET
func (h *TrackerHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ResetAll(r.Context(), r.URL.Query().Get("confirm")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
