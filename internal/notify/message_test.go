package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/model"
)

func TestMessage(t *testing.T) {
	v := int64(249600)
	zero := int64(0)

	tests := []struct {
		name string
		n    model.PendingNotification
		want string
	}{
		{"cooldown", model.PendingNotification{ActivityName: "VIP Work", Type: model.NotificationCooldown}, "VIP Work is ready"},
		{"resupply", model.PendingNotification{ActivityName: "Coke Lockup", Type: model.NotificationResupply}, "Coke Lockup needs resupply"},
		{"safe with value", model.PendingNotification{ActivityName: "Nightclub Safe", Type: model.NotificationSafe, Value: &v}, "Nightclub Safe is full ($250k)"},
		{"safe without value", model.PendingNotification{ActivityName: "Nightclub Safe", Type: model.NotificationSafe}, "Nightclub Safe is full (collect)"},
		{"passive zero value", model.PendingNotification{ActivityName: "Nightclub", Type: model.NotificationPassiveReady, Value: &zero}, "Nightclub is ready to sell (available)"},
		{"falls back to id", model.PendingNotification{ActivityID: "bunker", Type: model.NotificationCooldown}, "bunker is ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.n))
		})
	}
}

func TestTag(t *testing.T) {
	n := model.PendingNotification{ActivityID: "mc-coke", Type: model.NotificationResupply}
	assert.Equal(t, "resupply-mc-coke", Tag(n))
}

func TestHubToaster(t *testing.T) {
	clk := clock.NewFake(t0)
	hub := eventbus.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := hub.Subscribe(ctx, 8)

	toaster := NewHubToaster(hub, clk, 5*time.Second)
	n := model.PendingNotification{ID: "cooldown-vip-work", Type: model.NotificationCooldown}

	first, err := toaster.Show(ctx, n, "VIP Work is ready")
	require.NoError(t, err)
	second, err := toaster.Show(ctx, n, "VIP Work is ready")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, toaster.Live())

	require.NoError(t, toaster.Dismiss(ctx, first))
	require.NoError(t, toaster.Dismiss(ctx, first))
	clk.Advance(5 * time.Second)
	assert.Zero(t, toaster.Live())

	var reasons []any
	for len(events) > 0 {
		evt := <-events
		if evt.Type == EventToastDismiss {
			reasons = append(reasons, evt.Data["reason"])
		}
	}
	assert.Equal(t, []any{"dismissed", "expired"}, reasons)
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	w := &captureWriter{}
	p := newKafkaPublisher(w, DefaultKafkaTopic)
	v := int64(250000)
	n := model.PendingNotification{
		ID: "safe-nightclub-safe", ActivityID: "nightclub-safe", ActivityName: "Nightclub Safe",
		Type: model.NotificationSafe, Timestamp: t0, Value: &v,
	}

	require.NoError(t, p.NotificationFired(context.Background(), n, Message(n)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "nightclub-safe", string(w.msgs[0].Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, "safe", body["type"])
	assert.Equal(t, "Nightclub Safe is full ($250k)", body["message"])
	assert.EqualValues(t, t0.UnixMilli(), body["fired_at"])

	w.err = errors.New("leader not available")
	err := p.NotificationFired(context.Background(), n, Message(n))
	assert.ErrorContains(t, err, "gta.notifications")
}
