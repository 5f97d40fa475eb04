package model

import (
	"time"

	"filmstream/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a time-bounded entitlement to the whole paid catalog.
// OrderID is nil only for grants made by an administrator.
type Subscription struct {
	ID        string
	UserID    string
	PlanID    string
	OrderID   *string
	Status    SubscriptionStatus
	StartedAt time.Time
	ExpiresAt time.Time
	AutoRenew bool
	CreatedAt time.Time
}

// SubscriptionWithPlan is a subscription joined with the plan it was granted from.
type SubscriptionWithPlan struct {
	Subscription
	Plan SubscriptionPlan
}

// NewSubscription creates an active subscription lasting duration from now.
func NewSubscription(id, userID, planID string, orderID *string, duration time.Duration, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || planID == "" || duration <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        id,
		UserID:    userID,
		PlanID:    planID,
		OrderID:   orderID,
		Status:    SubscriptionStatusActive,
		StartedAt: now,
		ExpiresAt: now.Add(duration),
		CreatedAt: now,
	}, nil
}

// IsActiveAt reports whether the subscription grants access at t.
func (s *Subscription) IsActiveAt(t time.Time) bool {
	return s.Status == SubscriptionStatusActive && t.Before(s.ExpiresAt)
}
