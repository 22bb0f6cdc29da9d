package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/price-locator/internal/config"
	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces search results to the audit topic.
// It implements domain.ResultPublisher.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates an async Kafka producer for the configured audit topic.
// Delivery failures are logged and counted, never returned to the search.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	p := &Publisher{logger: logger, metrics: metrics}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAuditTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

// Publish enqueues result. With an async writer this only fails on
// serialization or writer misconfiguration.
func (p *Publisher) Publish(ctx context.Context, result domain.SearchResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		p.metrics.AuditMessages.WithLabelValues("error").Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.AuditMessages.WithLabelValues("error").Inc()
		return fmt.Errorf("publish search result: %w", err)
	}
	return nil
}

func (p *Publisher) completion(msgs []kafkago.Message, err error) {
	if err != nil {
		p.metrics.AuditMessages.WithLabelValues("error").Add(float64(len(msgs)))
		p.logger.Warn("audit delivery failed", "messages", len(msgs), "error", err)
		return
	}
	p.metrics.AuditMessages.WithLabelValues("published").Add(float64(len(msgs)))
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a SearchResult into a Kafka message keyed by
// search id.
func serializeToMessage(result domain.SearchResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize search result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.SearchID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "commodity_id", Value: []byte(result.CommodityID)},
			{Key: "search_timestamp", Value: []byte(result.SearchTimestamp.Format(time.RFC3339))},
		},
	}, nil
}
