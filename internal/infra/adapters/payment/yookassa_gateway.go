// File: internal/infra/adapters/payment/yookassa_gateway.go
package payment

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"filmstream/internal/domain"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*YooKassaGateway)(nil)

// YooKassaGateway implements adapter.PaymentGateway against the YooKassa REST API v3.
type YooKassaGateway struct {
	shopID    string
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewYooKassaGateway(shopID, secretKey, apiURL string, timeout time.Duration) (*YooKassaGateway, error) {
	if shopID == "" || secretKey == "" {
		return nil, errors.New("yookassa: shop id and secret key are required")
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YooKassaGateway{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   strings.TrimRight(apiURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (y *YooKassaGateway) Name() string { return "yookassa" }

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       ykAmount          `json:"amount"`
	Metadata     map[string]string `json:"metadata"`
	Confirmation *struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment registers a card payment with immediate capture and a redirect confirmation.
func (y *YooKassaGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error) {
	currency := req.Currency
	if currency == "" {
		currency = "RUB"
	}
	payload := map[string]any{
		"amount": ykAmount{
			Value:    req.Amount.StringFixed(2),
			Currency: currency,
		},
		"payment_method_data": map[string]string{"type": "bank_card"},
		"capture":             true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"description": req.Description,
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	gp, err := y.do(ctx, http.MethodPost, "/payments", payload, newIdempotenceKey())
	metrics.IncGatewayCall(y.Name(), "create", err == nil)
	return gp, err
}

// GetPayment loads the current payment state by YooKassa payment id.
func (y *YooKassaGateway) GetPayment(ctx context.Context, paymentID string) (*adapter.GatewayPayment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: empty payment id", domain.ErrInvalidArgument)
	}
	gp, err := y.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, "")
	metrics.IncGatewayCall(y.Name(), "get", err == nil)
	return gp, err
}

func (y *YooKassaGateway) do(ctx context.Context, method, path string, body any, idemKey string) (*adapter.GatewayPayment, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(y.shopID, y.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotence-Key", idemKey)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return nil, fmt.Errorf("%w: http %d %s %s", domain.ErrGateway, resp.StatusCode, apiErr.Code, apiErr.Description)
	}
	return decodePayment(raw)
}

func decodePayment(raw []byte) (*adapter.GatewayPayment, error) {
	var p ykPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %v", domain.ErrGateway, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: payment without id", domain.ErrGateway)
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %v", domain.ErrGateway, err)
	}
	gp := &adapter.GatewayPayment{
		ID:       p.ID,
		Status:   p.Status,
		Metadata: p.Metadata,
		Raw:      full,
	}
	if p.Confirmation != nil {
		gp.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	return gp, nil
}

func newIdempotenceKey() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
