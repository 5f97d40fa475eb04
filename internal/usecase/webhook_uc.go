// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/metrics"
)

var _ WebhookUseCase = (*webhookUC)(nil)

const notificationType = "notification"

// WebhookMetadata is the metadata we attached when creating the payment.
type WebhookMetadata struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	PlanID  string `json:"planId,omitempty"`
	FilmID  string `json:"filmId,omitempty"`
	Type    string `json:"type,omitempty"`
}

type WebhookObject struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Metadata WebhookMetadata `json:"metadata"`
}

// Notification is the gateway's payment status callback.
type Notification struct {
	Type   string        `json:"type"`
	Event  string        `json:"event"`
	Object WebhookObject `json:"object"`
}

type WebhookUseCase interface {
	// HandleWebhook applies a gateway notification. Malformed notifications yield
	// domain.ErrInvalidWebhook; any other error means the gateway should retry.
	HandleWebhook(ctx context.Context, n Notification) error
}

type webhookUC struct {
	orders       repository.OrderRepository
	gateway      adapter.PaymentGateway
	entitlements EntitlementUseCase
	logger       *zerolog.Logger
}

func NewWebhookUseCase(orders repository.OrderRepository, gateway adapter.PaymentGateway, entitlements EntitlementUseCase, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "WebhookUseCase").Logger()
	return &webhookUC{orders: orders, gateway: gateway, entitlements: entitlements, logger: &l}
}

func validateNotification(n Notification) error {
	if n.Type != notificationType {
		return fmt.Errorf("%w: unexpected type %q", domain.ErrInvalidWebhook, n.Type)
	}
	if n.Object.ID == "" || n.Object.Status == "" {
		return fmt.Errorf("%w: object id and status are required", domain.ErrInvalidWebhook)
	}
	if n.Object.Status != model.GatewayStatusSucceeded {
		return nil
	}
	md := n.Object.Metadata
	if md.OrderID == "" || md.UserID == "" {
		return fmt.Errorf("%w: metadata must carry orderId and userId", domain.ErrInvalidWebhook)
	}
	if (md.PlanID == "") == (md.FilmID == "") {
		return fmt.Errorf("%w: metadata must carry exactly one of planId or filmId", domain.ErrInvalidWebhook)
	}
	return nil
}

func (uc *webhookUC) HandleWebhook(ctx context.Context, n Notification) error {
	if err := validateNotification(n); err != nil {
		return err
	}
	obj := n.Object
	status := model.OrderStatusFromGateway(obj.Status)
	log := uc.logger.With().
		Str("payment_id", obj.ID).
		Str("gateway_status", obj.Status).
		Str("event", n.Event).
		Logger()

	if status != model.OrderStatusPaid {
		rows, err := uc.orders.UpdateStatusByExternalID(ctx, repository.NoTX, obj.ID, status, nil)
		if err != nil {
			return err
		}
		if rows == 0 {
			log.Warn().Msg("webhook matched no order")
			return nil
		}
		metrics.IncOrder(obj.Metadata.Type, string(status))
		log.Info().Str("status", string(status)).Msg("order status updated from webhook")
		return nil
	}

	order, err := uc.orderForGrant(ctx, obj, &log)
	if err != nil || order == nil {
		return err
	}
	res, err := uc.entitlements.Grant(ctx, order)
	if errors.Is(err, domain.ErrNotFound) {
		// nothing to attach an entitlement to; retrying will not change that
		log.Warn().Str("order_id", order.ID).Msg("paid webhook for unknown order")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("order_id", order.ID).Bool("already_granted", res.AlreadyGranted).Msg("paid webhook processed")
	return nil
}

// orderForGrant returns the order a paid notification settles, or nil when it settles none.
// A payment id we never stored is honored only for an order that has no payment yet,
// and only after the gateway confirms the payment succeeded for that very order.
func (uc *webhookUC) orderForGrant(ctx context.Context, obj WebhookObject, log *zerolog.Logger) (*model.Order, error) {
	o, err := uc.orders.FindByExternalPaymentID(ctx, repository.NoTX, obj.ID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	orderID := obj.Metadata.OrderID
	o, err = uc.orders.FindByID(ctx, repository.NoTX, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Str("order_id", orderID).Msg("paid webhook for unknown order")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if o.ExternalPaymentID != nil && *o.ExternalPaymentID != "" {
		log.Warn().Str("order_id", o.ID).Str("order_payment_id", *o.ExternalPaymentID).
			Msg("paid webhook names an order bound to another payment; ignored")
		return nil, nil
	}

	payment, err := uc.gateway.GetPayment(ctx, obj.ID)
	if err != nil {
		if errors.Is(err, domain.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if payment.Status != model.GatewayStatusSucceeded || payment.Metadata["orderId"] != o.ID {
		log.Warn().Str("order_id", o.ID).Str("confirmed_status", payment.Status).
			Msg("gateway did not confirm paid webhook; ignored")
		return nil, nil
	}
	return o, nil
}
