package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// CreatePaymentRequest describes a one-off card payment to be captured immediately.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	Description string
	Metadata    map[string]string
}

// GatewayPayment is the provider-agnostic view of a payment.
// Raw keeps the provider payload as returned, for storage alongside the order.
type GatewayPayment struct {
	ID              string
	Status          string
	ConfirmationURL string
	Metadata        map[string]string
	Raw             map[string]any
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// CreatePayment registers a payment and returns the URL the user is redirected to.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*GatewayPayment, error)
	// GetPayment fetches the current state of a payment by provider id.
	GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}
