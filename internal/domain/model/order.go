package model

import (
	"time"

	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

type OrderType string

const (
	OrderTypeSubscription OrderType = "subscription"
	OrderTypeFilm         OrderType = "film"
)

// OrderTTL is the soft deadline after which an unpaid order is considered abandoned.
const OrderTTL = 24 * time.Hour

// OrderTarget is what an order buys. It is either a SubscriptionTarget or a FilmTarget.
type OrderTarget interface {
	Type() OrderType
	isOrderTarget()
}

type SubscriptionTarget struct {
	PlanID string
}

func (SubscriptionTarget) Type() OrderType { return OrderTypeSubscription }
func (SubscriptionTarget) isOrderTarget()  {}

type FilmTarget struct {
	FilmID string
}

func (FilmTarget) Type() OrderType { return OrderTypeFilm }
func (FilmTarget) isOrderTarget()  {}

// Order is a single purchase attempt.
type Order struct {
	ID                string
	UserID            string
	Target            OrderTarget
	Amount            decimal.Decimal
	Currency          string
	Status            OrderStatus
	PaymentMethod     string
	ExternalPaymentID *string
	Metadata          map[string]any
	CreatedAt         time.Time
	PaidAt            *time.Time
	ExpiresAt         time.Time
}

// NewOrder builds a pending order that expires OrderTTL after now.
func NewOrder(id, userID string, target OrderTarget, amount decimal.Decimal, currency string, now time.Time) (*Order, error) {
	if id == "" || userID == "" || target == nil || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		ID:        id,
		UserID:    userID,
		Target:    target,
		Amount:    amount,
		Currency:  currency,
		Status:    OrderStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(OrderTTL),
	}, nil
}

func (o *Order) Type() OrderType {
	if o == nil || o.Target == nil {
		return ""
	}
	return o.Target.Type()
}

// IsStale reports whether a pending order has passed its deadline.
func (o *Order) IsStale(now time.Time) bool {
	return o.Status == OrderStatusPending && now.After(o.ExpiresAt)
}

// TargetColumns splits a target into its mutually exclusive storage columns.
func TargetColumns(t OrderTarget) (planID, filmID *string) {
	switch v := t.(type) {
	case SubscriptionTarget:
		return &v.PlanID, nil
	case FilmTarget:
		return nil, &v.FilmID
	}
	return nil, nil
}

// TargetFromColumns rebuilds a target; exactly one of planID and filmID must be set.
func TargetFromColumns(planID, filmID *string) (OrderTarget, error) {
	hasPlan := planID != nil && *planID != ""
	hasFilm := filmID != nil && *filmID != ""
	switch {
	case hasPlan && !hasFilm:
		return SubscriptionTarget{PlanID: *planID}, nil
	case hasFilm && !hasPlan:
		return FilmTarget{FilmID: *filmID}, nil
	}
	return nil, domain.ErrInvalidArgument
}

// Gateway payment statuses as reported by the provider.
const (
	GatewayStatusSucceeded         = "succeeded"
	GatewayStatusCanceled          = "canceled"
	GatewayStatusPending           = "pending"
	GatewayStatusWaitingForCapture = "waiting_for_capture"
)

// OrderStatusFromGateway maps a provider payment status onto an order status.
// Unknown statuses are treated as failures.
func OrderStatusFromGateway(status string) OrderStatus {
	switch status {
	case GatewayStatusSucceeded:
		return OrderStatusPaid
	case GatewayStatusCanceled:
		return OrderStatusCancelled
	case GatewayStatusPending, GatewayStatusWaitingForCapture:
		return OrderStatusPending
	default:
		return OrderStatusFailed
	}
}
