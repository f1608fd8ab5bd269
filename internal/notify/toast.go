package notify

import (
	"context"
	"sync"
	"time"

	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/pkg/uid"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 5 * time.Second

// Toast event types published on the hub.
const (
	EventToastShow    = "toast.show"
	EventToastDismiss = "toast.dismiss"
)

// HubToaster publishes toasts on the event bus and dismisses them after
// TTL on the given clock.
type HubToaster struct {
	hub   *eventbus.Hub
	clock clock.Clock
	ttl   time.Duration

	mu   sync.Mutex
	live map[string]clock.Handle
}

// NewHubToaster creates a toaster. A non-positive ttl uses DefaultToastTTL.
func NewHubToaster(hub *eventbus.Hub, clk clock.Clock, ttl time.Duration) *HubToaster {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &HubToaster{hub: hub, clock: clk, ttl: ttl, live: make(map[string]clock.Handle)}
}

// Show publishes a toast.show event and arms its auto-dismiss.
func (t *HubToaster) Show(_ context.Context, n model.PendingNotification, message string) (string, error) {
	handle := uid.Handle("toast")

	t.mu.Lock()
	t.live[handle] = t.clock.Schedule(t.ttl, func() { t.expire(handle) })
	t.mu.Unlock()

	t.hub.Publish(eventbus.Event{
		Type:      EventToastShow,
		Timestamp: t.clock.Now().UnixMilli(),
		Data: map[string]any{
			"handle":          handle,
			"notification_id": n.ID,
			"type":            string(n.Type),
			"message":         message,
			"ttl_ms":          t.ttl.Milliseconds(),
		},
	})
	return handle, nil
}

// Dismiss removes a toast early. Unknown or expired handles are ignored.
func (t *HubToaster) Dismiss(_ context.Context, handle string) error {
	t.mu.Lock()
	h, ok := t.live[handle]
	if ok {
		delete(t.live, handle)
		t.clock.Cancel(h)
	}
	t.mu.Unlock()

	if ok {
		t.publishDismiss(handle, "dismissed")
	}
	return nil
}

// Live returns the number of toasts currently visible.
func (t *HubToaster) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

func (t *HubToaster) expire(handle string) {
	t.mu.Lock()
	_, ok := t.live[handle]
	delete(t.live, handle)
	t.mu.Unlock()

	if ok {
		t.publishDismiss(handle, "expired")
	}
}

func (t *HubToaster) publishDismiss(handle, reason string) {
	t.hub.Publish(eventbus.Event{
		Type:      EventToastDismiss,
		Timestamp: t.clock.Now().UnixMilli(),
		Data:      map[string]any{"handle": handle, "reason": reason},
	})
}

var _ Toaster = (*HubToaster)(nil)
