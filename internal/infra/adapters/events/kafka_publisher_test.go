//go:build !integration

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"filmstream/internal/config"
	"filmstream/internal/domain/ports/adapter"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestPublisher(w messageWriter) *KafkaPublisher {
	l := zerolog.New(io.Discard)
	return &KafkaPublisher{writer: w, topic: "entitlements", logger: &l}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(w)

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), adapter.EntitlementEvent{
		Event:   adapter.EntitlementGranted,
		UserID:  "u-1",
		OrderID: "o-1",
		PlanID:  "p-1",
		At:      at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "entitlements" || string(msg.Key) != "user-u-1" {
		t.Errorf("unexpected topic/key %s/%s", msg.Topic, msg.Key)
	}
	var body map[string]any
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatalf("value is not json: %v", err)
	}
	if body["event"] != "entitlement.granted" || body["planId"] != "p-1" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["filmId"]; ok {
		t.Error("empty filmId must be omitted")
	}
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	p := newTestPublisher(&fakeWriter{err: errors.New("broker down")})
	if err := p.Publish(context.Background(), adapter.EntitlementEvent{UserID: "u-1"}); err == nil {
		t.Fatal("expected writer error to propagate")
	}
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	l := zerolog.New(io.Discard)
	if _, err := NewKafkaPublisher(&config.KafkaConfig{}, &l); err == nil {
		t.Fatal("expected error without brokers")
	}
}
