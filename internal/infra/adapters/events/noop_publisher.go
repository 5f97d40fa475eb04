package events

import (
	"context"
	"sync"

	"filmstream/internal/domain/ports/adapter"
)

var _ adapter.EntitlementPublisher = (*NoopPublisher)(nil)

// NoopPublisher keeps events in memory. Used when no brokers are configured.
type NoopPublisher struct {
	mu     sync.Mutex
	events []adapter.EntitlementEvent
}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) Publish(ctx context.Context, ev adapter.EntitlementEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (p *NoopPublisher) Events() []adapter.EntitlementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]adapter.EntitlementEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *NoopPublisher) Close() error { return nil }
