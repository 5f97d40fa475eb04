package repository

import (
	"context"
	"time"

	"filmstream/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByExternalPaymentID(ctx context.Context, tx Tx, externalID string) (*model.Order, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Order, error)
	// ListPendingOlderThan returns pending orders created before olderThan, oldest first.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
	// ListCheckableOlderThan is ListPendingOlderThan restricted to orders with a provider payment.
	ListCheckableOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)

	// AttachPayment records the provider payment created for an order.
	AttachPayment(ctx context.Context, tx Tx, id, externalID, paymentMethod string, metadata map[string]any) error
	// UpdateStatusByExternalID returns the number of orders updated (0 or 1).
	UpdateStatusByExternalID(ctx context.Context, tx Tx, externalID string, status model.OrderStatus, paidAt *time.Time) (int64, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.OrderStatus, paidAt *time.Time) error
	// UpdateStatusIfPending changes status only when the order is still pending.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.OrderStatus, paidAt *time.Time) (bool, error)
}
