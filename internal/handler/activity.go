package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/service"
	"gta-grind-tracker/pkg/apierror"
	"gta-grind-tracker/pkg/response"
)

// ActivityHandler handles the activity catalog.
type ActivityHandler struct {
	catalog *service.CatalogService
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(catalog *service.CatalogService) *ActivityHandler {
	return &ActivityHandler{catalog: catalog}
}

// List handles GET /api/v1/activities
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	activities, err := h.catalog.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, activities)
}

// Get handles GET /api/v1/activities/{id}
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, a)
}

// Create handles POST /api/v1/activities
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var a model.Activity
	if err := decodeJSON(r, &a); err != nil {
		response.Error(w, err)
		return
	}

	created, err := h.catalog.Create(r.Context(), a)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, created)
}

// Update handles PUT /api/v1/activities/{id}
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var a model.Activity
	if err := decodeJSON(r, &a); err != nil {
		response.Error(w, err)
		return
	}

	updated, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), a)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}

// Delete handles DELETE /api/v1/activities/{id}
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// BulkUpsert handles POST /api/v1/bulk/activities
func (h *ActivityHandler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	var activities []model.Activity
	if err := decodeJSON(r, &activities); err != nil {
		response.Error(w, err)
		return
	}
	if activities == nil {
		response.Error(w, apierror.BadRequest("expected a JSON array of activities"))
		return
	}

	imported, err := h.catalog.BulkUpsert(r.Context(), activities)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"imported":   len(imported),
		"activities": imported,
	})
}
