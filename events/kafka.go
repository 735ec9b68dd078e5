// Package events publishes approval events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/warp/payout-engine/payout"
)

const (
	PayoutApprovedTopic = "payout.approved"
	PayoutApprovedType  = "payout.approved.v1"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher wraps a writer. An empty topic uses PayoutApprovedTopic.
func NewKafkaPublisher(writer MessageWriter, topic string) *KafkaPublisher {
	if topic == "" {
		topic = PayoutApprovedTopic
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// NewWriter builds a writer for the given brokers. Messages carry their own
// topic, so the writer has none.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// PublishApproved writes one message keyed by restaurant/schedule/date so
// every event for a key lands on the same partition.
func (p *KafkaPublisher) PublishApproved(ctx context.Context, event payout.ApprovedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode approved event: %w", err)
	}

	key := strings.Join([]string{
		string(event.RestaurantID), string(event.ScheduleID), event.BusinessDate.String(),
	}, "/")

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(PayoutApprovedType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	})
}

var _ payout.Publisher = (*KafkaPublisher)(nil)
