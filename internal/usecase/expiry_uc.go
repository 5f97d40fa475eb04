// File: internal/usecase/expiry_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/metrics"
)

var _ ExpiryUseCase = (*expiryUC)(nil)

// ExpiryUseCase flips subscriptions past their expiry from active to expired.
type ExpiryUseCase interface {
	// UpdateExpiredSubscriptions reconciles one user, or everybody when userID is nil.
	UpdateExpiredSubscriptions(ctx context.Context, userID *string) (int, error)
	// UpdateAllExpiredSubscriptions is the unscoped sweep; it also refreshes the status gauge.
	UpdateAllExpiredSubscriptions(ctx context.Context) (int, error)
}

type expiryUC struct {
	subs   repository.SubscriptionRepository
	now    Clock
	logger *zerolog.Logger
}

func NewExpiryUseCase(subs repository.SubscriptionRepository, clock Clock, logger *zerolog.Logger) *expiryUC {
	l := logger.With().Str("component", "ExpiryUseCase").Logger()
	return &expiryUC{subs: subs, now: orSystem(clock), logger: &l}
}

func (uc *expiryUC) UpdateExpiredSubscriptions(ctx context.Context, userID *string) (int, error) {
	n, err := uc.subs.ExpireActive(ctx, repository.NoTX, userID, uc.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		ev := uc.logger.Info().Int("count", n)
		if userID != nil {
			ev = ev.Str("user_id", *userID)
		}
		ev.Msg("subscriptions expired")
	}
	return n, nil
}

func (uc *expiryUC) UpdateAllExpiredSubscriptions(ctx context.Context) (int, error) {
	n, err := uc.UpdateExpiredSubscriptions(ctx, nil)
	if err != nil {
		return 0, err
	}
	counts, err := uc.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("count subscriptions by status failed")
		return n, nil
	}
	metrics.SetSubscriptionsTotal(counts)
	return n, nil
}
