package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"filmstream/internal/domain"
	"filmstream/internal/infra/logging"
	"filmstream/internal/infra/metrics"
	"filmstream/internal/usecase"
)

type createOrderRequest struct {
	PlanID      string      `json:"planId"`
	FilmID      string      `json:"filmId"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	RedirectURL string      `json:"redirectUrl"`
}

type createOrderResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	PaymentURL string `json:"paymentUrl,omitempty"`
	OrderID    string `json:"orderId,omitempty"`
	Code       string `json:"code,omitempty"`
}

func (s *Server) handleCreateSubscriptionOrder(w http.ResponseWriter, r *http.Request) {
	s.createOrder(w, r, false)
}

func (s *Server) handleCreateFilmOrder(w http.ResponseWriter, r *http.Request) {
	s.createOrder(w, r, true)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, film bool) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	in := usecase.CreateOrderInput{
		Amount:    req.Amount.String(),
		Currency:  req.Currency,
		ReturnURL: req.RedirectURL,
	}
	// each endpoint buys exactly one kind of thing
	if film {
		in.FilmID = req.FilmID
		if in.FilmID == "" {
			s.writeOrderError(w, r, fmt.Errorf("%w: filmId is required", domain.ErrValidation))
			return
		}
	} else {
		in.PlanID = req.PlanID
		if in.PlanID == "" {
			s.writeOrderError(w, r, fmt.Errorf("%w: planId is required", domain.ErrValidation))
			return
		}
	}

	res, err := s.deps.Orders.CreateOrder(r.Context(), callerFrom(r), in)
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createOrderResponse{
		Success:    true,
		Message:    "payment created",
		PaymentURL: res.ConfirmationURL,
		OrderID:    res.Order.ID,
	})
}

// writeOrderError keeps the {success:false} envelope the checkout client expects.
func (s *Server) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("create order failed")
		msg = "internal error"
	}
	writeJSON(w, status, createOrderResponse{Success: false, Message: msg, Code: code})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.webhookAllowed(r) {
		metrics.WebhookRequests.WithLabelValues("fail", "forbidden").Inc()
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "FORBIDDEN"})
		return
	}

	var n usecase.Notification
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&n); err != nil {
		metrics.WebhookRequests.WithLabelValues("fail", "bad_json").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed notification"})
		return
	}

	err := s.deps.Webhook.HandleWebhook(r.Context(), n)
	switch {
	case err == nil:
		metrics.WebhookRequests.WithLabelValues("ok", "").Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, domain.ErrInvalidWebhook):
		metrics.WebhookRequests.WithLabelValues("fail", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		// a 5xx makes the gateway redeliver
		metrics.WebhookRequests.WithLabelValues("fail", "processing").Inc()
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("payment_id", n.Object.ID).Msg("webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
	}
}

func (s *Server) webhookAllowed(r *http.Request) bool {
	if len(s.webhookNets) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range s.webhookNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
