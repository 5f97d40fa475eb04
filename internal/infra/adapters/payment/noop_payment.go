package payment

import (
	"context"
	"fmt"
	"sync"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway to use in dev mode and tests.
// Payments start pending; SetStatus moves them, the way a provider dashboard would.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	payments map[string]*adapter.GatewayPayment
	failNext error
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		payments: make(map[string]*adapter.GatewayPayment),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failNext; err != nil {
		g.failNext = nil
		return nil, err
	}
	id := g.next()
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	p := &adapter.GatewayPayment{
		ID:              id,
		Status:          model.GatewayStatusPending,
		ConfirmationURL: "https://example.test/pay/" + id,
		Metadata:        meta,
		Raw: map[string]any{
			"id":     id,
			"status": model.GatewayStatusPending,
			"amount": map[string]string{"value": req.Amount.StringFixed(2), "currency": req.Currency},
		},
	}
	g.payments[id] = p
	cp := *p
	return &cp, nil
}

func (g *NoopPaymentGateway) GetPayment(ctx context.Context, paymentID string) (*adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: noop: payment %s not found", domain.ErrGateway, paymentID)
	}
	cp := *p
	return &cp, nil
}

// SetStatus changes the provider-side status of a payment.
func (g *NoopPaymentGateway) SetStatus(paymentID, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	return nil
}

// FailNext makes the next CreatePayment call return err.
func (g *NoopPaymentGateway) FailNext(err error) {
	g.mu.Lock()
	g.failNext = err
	g.mu.Unlock()
}
