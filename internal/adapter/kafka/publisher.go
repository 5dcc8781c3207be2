// Package kafka publishes appended storm history entries to a Kafka topic
// for downstream data integration. Publication is optional and disabled by
// default.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
)

// Publisher produces history-entry messages to a Kafka topic.
// It implements pipeline.HistoryPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the history topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishHistory serializes and publishes one history entry. The message key
// is the storm identifier so per-storm ordering is preserved within a
// partition.
func (p *Publisher) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	msg, err := serializeToMessage(entry)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a history entry into a Kafka message.
func serializeToMessage(entry domain.HistoryEntry) (kafkago.Message, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize history entry: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(entry.StormID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "storm_type", Value: []byte(entry.StormType)},
			{Key: "recorded_at", Value: []byte(entry.RecordedAt.Format(time.RFC3339))},
		},
	}, nil
}
