package handler

import (
	"net/http"
	"runtime"
	"time"

	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/notify"
	"gta-grind-tracker/internal/service"
	"gta-grind-tracker/pkg/response"
)

// AdminHandler exposes runtime statistics of the tracker.
type AdminHandler struct {
	refresher *service.Refresher
	scheduler *notify.Scheduler
	hub       *eventbus.Hub
	storeType string // sqlite, postgres, or mysql
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(refresher *service.Refresher, scheduler *notify.Scheduler, hub *eventbus.Hub, storeType string) *AdminHandler {
	return &AdminHandler{
		refresher: refresher,
		scheduler: scheduler,
		hub:       hub,
		storeType: storeType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.refresher != nil {
		stats["refresh"] = h.refresher.Status()
	}
	if h.scheduler != nil {
		stats["scheduler"] = map[string]interface{}{
			"pending":   len(h.scheduler.Pending()),
			"in_flight": h.scheduler.InFlight(),
		}
	}
	if h.hub != nil {
		stats["stream_subscribers"] = h.hub.Subscribers()
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
