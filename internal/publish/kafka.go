// Package publish pushes confirmed negative items to Kafka so downstream
// consumers (alerting, ticketing) react without polling the store.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/finwatch/bad-news-radar/internal/models"
)

// KafkaPublisher writes one message per negative item, keyed by item ID so a
// partitioned topic keeps per-item ordering.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewKafka builds a publisher for the given brokers and topic.
func NewKafka(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})
	return &KafkaPublisher{writer: writer, log: log}
}

// PublishNegative sends the item as a JSON message.
func (p *KafkaPublisher) PublishNegative(ctx context.Context, item models.NewsItem) error {
	value, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(item.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "keyword", Value: []byte(item.MatchedKeyword)},
			{Key: "verdict", Value: []byte(item.LLMVerdict)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", item.ID, err)
	}

	p.log.Debug("published negative alert",
		slog.String("id", item.ID),
		slog.String("title", item.Title))
	return nil
}

// Close flushes and shuts down the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
