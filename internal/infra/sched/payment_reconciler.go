package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"filmstream/internal/infra/scheduler"
	"filmstream/internal/usecase"
)

// PaymentReconciler periodically polls the gateway for pending orders whose
// webhook never arrived, then fails orders past their deadline.
type PaymentReconciler struct {
	orderUC    usecase.OrderUseCase
	staleAfter time.Duration // how old a pending order must be before it is polled
	sched      *scheduler.Scheduler
	log        *zerolog.Logger
}

func NewPaymentReconciler(orderUC usecase.OrderUseCase, interval, staleAfter time.Duration, logger *zerolog.Logger, opts ...scheduler.Option) *PaymentReconciler {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	w := &PaymentReconciler{orderUC: orderUC, staleAfter: staleAfter, log: &l}
	opts = append([]scheduler.Option{scheduler.WithRunTimeout(2 * time.Minute)}, opts...)
	w.sched = scheduler.NewScheduler("payment_reconcile", interval, w.Tick, logger, opts...)
	return w
}

func (w *PaymentReconciler) Start(ctx context.Context) { w.sched.Start(ctx) }

func (w *PaymentReconciler) Stop() { w.sched.Stop() }

// Tick runs one reconcile pass followed by one expiry pass.
func (w *PaymentReconciler) Tick(ctx context.Context) error {
	changed, err := w.orderUC.ReconcilePending(ctx, w.staleAfter)
	if err != nil {
		return err
	}
	if changed > 0 {
		w.log.Info().Int("count", changed).Msg("pending orders reconciled")
	}

	failed, err := w.orderUC.ExpireStaleOrders(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		w.log.Info().Int("count", failed).Msg("stale orders failed")
	}
	return nil
}
