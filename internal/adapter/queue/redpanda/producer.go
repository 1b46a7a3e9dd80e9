// Package redpanda publishes interaction events to Redpanda or Kafka.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// syncProducer is the part of *kgo.Client the publisher uses.
type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher implements domain.InteractionRecorder by producing one JSON
// record per interaction, keyed by request id.
type Publisher struct {
	client syncProducer
	topic  string
}

// NewPublisher connects to brokers and makes sure topic exists. Producing is
// idempotent but not transactional: events are audit data, not jobs.
func NewPublisher(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: no seed brokers provided")
	}
	if topic == "" {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: topic is required")
	}
	slog.Info("creating redpanda publisher", slog.Any("brokers", brokers), slog.String("topic", topic))

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequestRetries(3),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: %w", err)
	}

	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
	return newPublisher(client, topic), nil
}

func newPublisher(client syncProducer, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

var _ domain.InteractionRecorder = (*Publisher)(nil)

// Record produces the interaction and waits for the broker ack.
func (p *Publisher) Record(ctx domain.Context, in domain.Interaction) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("op=redpanda.Record: marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(in.RequestID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "outcome", Value: []byte(in.Outcome)},
			{Key: "model", Value: []byte(in.Model)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=redpanda.Record: produce: %w", err)
	}
	return nil
}

// Close flushes and closes the client.
func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
