// Package kafka publishes views to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/liveboard/internal/domain/dedupe"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// SinkName identifies the publisher in metrics and logs.
const SinkName = "kafka"

const defaultBatchTimeout = 50 * time.Millisecond

// ErrNoTopic is returned when brokers are configured without a topic.
var ErrNoTopic = errors.New("kafka topic must not be empty")

// Config holds the publisher settings. No brokers disables publishing.
type Config struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a delivery sink writing each view as JSON keyed by entity id,
// so every update of one entity lands on the same partition. Each committed
// version is published once; re-emissions of a version (flag decay) are
// skipped.
type Publisher struct {
	topic     string
	writer    messageWriter
	published dedupe.Deduper
	logger    logger.Logger
}

// NewPublisher creates a publisher. A disabled config yields a publisher
// whose Deliver is a no-op.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled() {
		return &Publisher{logger: log}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, ErrNoTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           defaultBatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return newPublisherWithWriter(cfg.Topic, w, log), nil
}

func newPublisherWithWriter(topic string, w messageWriter, log logger.Logger) *Publisher {
	return &Publisher{topic: topic, writer: w, published: dedupe.NewInMemoryDeduper(), logger: log}
}

// Name implements worker.Sink.
func (p *Publisher) Name() string { return SinkName }

// Enabled reports whether views are actually published.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Deliver implements worker.Sink.
func (p *Publisher) Deliver(ctx context.Context, v model.View) error { //nolint:gocritic // hugeParam: matches worker.Sink
	if p.writer == nil {
		return nil
	}
	key := fmt.Sprintf("%s@%d", v.EntityID, v.Version)
	if p.published.SeenAndRecord(ctx, key) {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.published.Unrecord(ctx, key)
		return fmt.Errorf("encode view %s: %w", v.EntityID, err)
	}
	msg := kafka.Message{
		Key:   []byte(v.EntityID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "version", Value: []byte(fmt.Sprint(v.Version))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.published.Unrecord(ctx, key)
		return fmt.Errorf("publish view %s to %s: %w", v.EntityID, p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	p.logger.Info(context.Background(), "kafka publisher closed", logger.String("topic", p.topic))
	return nil
}
