package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/notify"
	"gta-grind-tracker/internal/repository"
	"gta-grind-tracker/pkg/apierror"
	"gta-grind-tracker/pkg/response"
)

// NotificationHandler handles pending notifications, the event stream and
// the notification history.
type NotificationHandler struct {
	scheduler    *notify.Scheduler
	hub          *eventbus.Hub
	logs         repository.NotificationLogRepository
	pingInterval time.Duration
}

// NewNotificationHandler creates a new notification handler. logs may be
// nil when no history store is configured.
func NewNotificationHandler(scheduler *notify.Scheduler, hub *eventbus.Hub, logs repository.NotificationLogRepository) *NotificationHandler {
	return &NotificationHandler{
		scheduler:    scheduler,
		hub:          hub,
		logs:         logs,
		pingInterval: 15 * time.Second,
	}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.scheduler.Pending())
}

// Dismiss handles DELETE /api/v1/notifications/{id}
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.scheduler.Dismiss(r.Context(), id) {
		response.Error(w, apierror.NotFound("notification "+id+" not found"))
		return
	}
	response.NoContent(w)
}

// ClearAll handles DELETE /api/v1/notifications
func (h *NotificationHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]int{"cleared": h.scheduler.ClearAll(r.Context())})
}

// History handles GET /api/v1/notifications/history
func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		response.Error(w, apierror.ServiceUnavailable("notification history is not configured"))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	logs, total, err := h.logs.GetNotificationLogs(r.Context(), limit, (page-1)*limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, logs, page, limit, total)
}

// Stream handles GET /api/v1/notifications/stream as server-sent events.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, apierror.InternalError("streaming is not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sub := h.hub.Subscribe(ctx, 32)

	writeSSE(w, "ready", []byte("{}"))
	flusher.Flush()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeSSE(w, "ping", []byte("{}"))
			flusher.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			writeSSE(w, evt.Type, b)
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, data []byte) {
	_, _ = io.WriteString(w, "event: "+sseName(event)+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = w.Write(data)
	_, _ = io.WriteString(w, "\n\n")
}

func sseName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	return strings.ReplaceAll(n, "\r", "")
}
