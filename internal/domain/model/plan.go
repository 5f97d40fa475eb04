package model

import (
	"time"

	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
)

// SubscriptionPlan is a purchasable plan with a fixed duration and price.
type SubscriptionPlan struct {
	ID           string
	Name         string
	Description  string
	Price        decimal.Decimal
	Currency     string
	DurationDays int
	IsActive     bool
	CreatedAt    time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// Duration is the validity period a grant of this plan confers.
func (p *SubscriptionPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// NewSubscriptionPlan validates and constructs an active plan.
func NewSubscriptionPlan(id, name string, durationDays int, price decimal.Decimal, currency string) (*SubscriptionPlan, error) {
	if id == "" || name == "" || durationDays <= 0 || !price.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &SubscriptionPlan{
		ID:           id,
		Name:         name,
		Price:        price,
		Currency:     currency,
		DurationDays: durationDays,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}

const DefaultCurrency = "RUB"
