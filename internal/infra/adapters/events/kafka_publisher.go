package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"filmstream/internal/config"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/infra/metrics"
)

var _ adapter.EntitlementPublisher = (*KafkaPublisher)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes entitlement events to a single topic, keyed by user id
// so that events of one user stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zerolog.Logger
}

func NewKafkaPublisher(cfg *config.KafkaConfig, logger *zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	l := logger.With().Str("component", "KafkaPublisher").Logger()
	l.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka publisher initialized")

	return &KafkaPublisher{writer: writer, topic: cfg.Topic, logger: &l}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev adapter.EntitlementEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte("user-" + ev.UserID),
		Value: data,
	})
	metrics.IncEntitlementEvent(string(ev.Event), err == nil)
	if err != nil {
		p.logger.Error().Err(err).
			Str("event", string(ev.Event)).
			Str("user_id", ev.UserID).
			Str("order_id", ev.OrderID).
			Msg("failed to publish entitlement event")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug().
		Str("event", string(ev.Event)).
		Str("user_id", ev.UserID).
		Msg("entitlement event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
