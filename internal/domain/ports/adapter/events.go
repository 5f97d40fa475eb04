package adapter

import (
	"context"
	"time"
)

type EntitlementEventType string

const (
	EntitlementGranted EntitlementEventType = "entitlement.granted"
	EntitlementRevoked EntitlementEventType = "entitlement.revoked"
)

// EntitlementEvent notifies downstream services that a user's access changed.
type EntitlementEvent struct {
	Event   EntitlementEventType `json:"event"`
	UserID  string               `json:"userId"`
	OrderID string               `json:"orderId,omitempty"`
	PlanID  string               `json:"planId,omitempty"`
	FilmID  string               `json:"filmId,omitempty"`
	At      time.Time            `json:"at"`
}

// EntitlementPublisher delivers entitlement events. Delivery is best effort.
type EntitlementPublisher interface {
	Publish(ctx context.Context, ev EntitlementEvent) error
	Close() error
}
