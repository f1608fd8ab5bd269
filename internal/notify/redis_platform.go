package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"gta-grind-tracker/pkg/uid"
)

// DefaultRedisChannel is where platform notifications are published.
const DefaultRedisChannel = "gta:notifications"

// RedisPlatform is a system notification surface for desktop companions
// subscribed to a Redis channel. Each shown notification is kept as a
// key with a TTL until it is closed.
type RedisPlatform struct {
	client    *redis.Client
	channel   string
	keyPrefix string
	ttl       time.Duration
}

// RedisPlatformConfig holds configuration for the Redis platform.
type RedisPlatformConfig struct {
	Channel   string
	KeyPrefix string
	TTL       time.Duration
}

type platformMessage struct {
	Action string `json:"action"`
	Handle string `json:"handle"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// NewRedisPlatform creates a platform on an existing client.
func NewRedisPlatform(client *redis.Client, cfg RedisPlatformConfig) *RedisPlatform {
	if cfg.Channel == "" {
		cfg.Channel = DefaultRedisChannel
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "gta:notification"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &RedisPlatform{client: client, channel: cfg.Channel, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

// RequestPermission succeeds when Redis is reachable.
func (p *RedisPlatform) RequestPermission(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	log.Printf("[RedisPlatform] Publishing notifications on %s", p.channel)
	return nil
}

// Show publishes the notification. A notification with the same tag
// replaces the previous one.
func (p *RedisPlatform) Show(ctx context.Context, title, body, tag string) (string, error) {
	handle := uid.Handle("platform")
	payload, err := json.Marshal(platformMessage{Action: "show", Handle: handle, Title: title, Body: body, Tag: tag})
	if err != nil {
		return "", err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.handleKey(handle), tag, p.ttl)
	pipe.Publish(ctx, p.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to publish notification: %w", err)
	}
	return handle, nil
}

// Close retracts a shown notification. Closing an unknown handle is a no-op.
func (p *RedisPlatform) Close(ctx context.Context, handle string) error {
	removed, err := p.client.Del(ctx, p.handleKey(handle)).Result()
	if err != nil {
		return fmt.Errorf("failed to close notification: %w", err)
	}
	if removed == 0 {
		return nil
	}

	payload, err := json.Marshal(platformMessage{Action: "close", Handle: handle})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPlatform) handleKey(handle string) string {
	return p.keyPrefix + ":" + handle
}

var _ Platform = (*RedisPlatform)(nil)
