package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"filmstream/internal/infra/metrics"
	"filmstream/internal/usecase"
)

const expiryJob = "subscription_expiry"

// ExpiryWorker runs the unscoped subscription expiry sweep on a cron schedule.
type ExpiryWorker struct {
	cron     *cron.Cron
	expiryUC usecase.ExpiryUseCase
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewExpiryWorker registers the sweep under expr, a standard 5-field cron expression.
func NewExpiryWorker(expr string, loc *time.Location, expiryUC usecase.ExpiryUseCase, logger *zerolog.Logger) (*ExpiryWorker, error) {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	w := &ExpiryWorker{
		cron:     cron.New(cron.WithLocation(loc)),
		expiryUC: expiryUC,
		timeout:  5 * time.Minute,
		log:      &l,
	}
	if _, err := w.cron.AddFunc(expr, func() { w.RunNow(context.Background()) }); err != nil {
		return nil, fmt.Errorf("expiry cron %q: %w", expr, err)
	}
	return w, nil
}

func (w *ExpiryWorker) Start() {
	w.cron.Start()
	w.log.Info().Msg("Starting expiry worker")
}

// Stop prevents new runs and waits for a running sweep to finish.
func (w *ExpiryWorker) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		w.log.Info().Msg("Stopping expiry worker")
	case <-ctx.Done():
		w.log.Warn().Msg("expiry worker did not stop in time")
	}
}

// RunNow performs one sweep synchronously.
func (w *ExpiryWorker) RunNow(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	n, err := w.expiryUC.UpdateAllExpiredSubscriptions(ctx)
	metrics.ObserveJob(expiryJob, time.Since(start), err)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
		return 0, err
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired subscriptions finished")
	}
	return n, nil
}
