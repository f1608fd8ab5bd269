package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"gta-grind-tracker/internal/model"
)

// DefaultKafkaTopic receives fired notifications.
const DefaultKafkaTopic = "gta.notifications"

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaPublisher is a Listener that forwards fired notifications to a
// Kafka topic, keyed by activity id.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// NewKafkaPublisher creates a synchronous writer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	return newKafkaPublisher(writer, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, timeout: 5 * time.Second}
}

type kafkaNotification struct {
	ID           string `json:"id"`
	ActivityID   string `json:"activity_id"`
	ActivityName string `json:"activity_name"`
	Type         string `json:"type"`
	Message      string `json:"message"`
	Value        *int64 `json:"value,omitempty"`
	FiredAt      int64  `json:"fired_at"`
}

// NotificationFired writes one message per notification.
func (p *KafkaPublisher) NotificationFired(ctx context.Context, n model.PendingNotification, message string) error {
	payload, err := json.Marshal(kafkaNotification{
		ID:           n.ID,
		ActivityID:   n.ActivityID,
		ActivityName: n.ActivityName,
		Type:         string(n.Type),
		Message:      message,
		Value:        n.Value,
		FiredAt:      n.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.ActivityID),
		Value: payload,
		Time:  n.Timestamp,
		Headers: []kafka.Header{
			{Key: "notification-type", Value: []byte(n.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Listener = (*KafkaPublisher)(nil)
