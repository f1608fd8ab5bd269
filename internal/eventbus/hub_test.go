package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx, 4)
	b := hub.Subscribe(ctx, 4)

	hub.Publish(Event{Type: "notification", Data: map[string]any{"id": "cooldown-vip-work"}})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, "notification", evt.Type)
			assert.NotZero(t, evt.Timestamp)
			assert.Equal(t, "cooldown-vip-work", evt.Data["id"])
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, 1)
	hub.Publish(Event{Type: "first"})
	hub.Publish(Event{Type: "second"})

	evt := <-ch
	assert.Equal(t, "first", evt.Type)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %q", extra.Type)
	default:
	}
}

func TestHubUnsubscribesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, 1)
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNilHubPublishIsNoop(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Publish(Event{Type: "x"}) })
}
