package repository

import (
	"context"
	"time"

	"filmstream/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	// Save inserts a subscription. A second row for the same order yields domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	HasActive(ctx context.Context, tx Tx, userID string) (bool, error)
	// FindLatestByUser returns the user's subscription with the furthest expiry, any status.
	FindLatestByUser(ctx context.Context, tx Tx, userID string) (*model.SubscriptionWithPlan, error)

	// ExpireActive flips active rows past their expiry to expired; userID nil means all users.
	ExpireActive(ctx context.Context, tx Tx, userID *string, now time.Time) (int, error)
	CancelActiveByUser(ctx context.Context, tx Tx, userID string) (int, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
