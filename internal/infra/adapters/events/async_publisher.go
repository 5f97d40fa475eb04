package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/infra/worker"
)

var _ adapter.EntitlementPublisher = (*AsyncPublisher)(nil)

const asyncPublishTimeout = 5 * time.Second

// AsyncPublisher hands events to a worker pool so that a grant never waits on the broker.
// Events that do not fit in the queue are dropped and logged.
type AsyncPublisher struct {
	inner  adapter.EntitlementPublisher
	pool   *worker.Pool
	logger *zerolog.Logger
}

// NewAsyncPublisher wraps inner. The pool must be started by the caller; Close stops it.
func NewAsyncPublisher(inner adapter.EntitlementPublisher, pool *worker.Pool, logger *zerolog.Logger) *AsyncPublisher {
	l := logger.With().Str("component", "AsyncPublisher").Logger()
	return &AsyncPublisher{inner: inner, pool: pool, logger: &l}
}

func (p *AsyncPublisher) Publish(_ context.Context, ev adapter.EntitlementEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	err := p.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, asyncPublishTimeout)
		defer cancel()
		return p.inner.Publish(ctx, ev)
	})
	if err != nil {
		p.logger.Warn().Err(err).
			Str("event", string(ev.Event)).
			Str("user_id", ev.UserID).
			Msg("entitlement event dropped")
	}
	return err
}

// Close flushes queued events and closes the inner publisher.
func (p *AsyncPublisher) Close() error {
	p.pool.Stop()
	return p.inner.Close()
}
