// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/logging"
	"filmstream/internal/infra/metrics"
)

var _ OrderUseCase = (*orderUC)(nil)

const (
	paymentMethodBankCard = "bank_card"
	reconcileBatch        = 200
)

// CreateOrderInput is a purchase request. Exactly one of PlanID and FilmID must be set.
type CreateOrderInput struct {
	PlanID    string
	FilmID    string
	Amount    string
	Currency  string
	ReturnURL string
}

type CreateOrderResult struct {
	Order           *model.Order
	ConfirmationURL string
}

type OrderUseCase interface {
	CreateOrder(ctx context.Context, caller model.Caller, in CreateOrderInput) (*CreateOrderResult, error)
	// GetOrder returns the order and, while it is pending, asks the gateway for news first.
	GetOrder(ctx context.Context, caller model.Caller, orderID string) (*model.Order, error)
	ListUserOrders(ctx context.Context, caller model.Caller, userID string) ([]*model.Order, error)
	// CheckAndProcessOrder polls the gateway and applies the reported status.
	CheckAndProcessOrder(ctx context.Context, orderID string) (*model.Order, error)
	// ReconcilePending polls pending orders older than staleAfter. Returns how many changed status.
	ReconcilePending(ctx context.Context, staleAfter time.Duration) (int, error)
	// ExpireStaleOrders fails pending orders past their deadline. Returns how many were failed.
	ExpireStaleOrders(ctx context.Context) (int, error)
}

type orderUC struct {
	orders       repository.OrderRepository
	plans        repository.SubscriptionPlanRepository
	films        repository.FilmRepository
	purchases    repository.PurchaseRepository
	gateway      adapter.PaymentGateway
	entitlements EntitlementUseCase
	redirectHost string
	now          Clock
	logger       *zerolog.Logger
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	plans repository.SubscriptionPlanRepository,
	films repository.FilmRepository,
	purchases repository.PurchaseRepository,
	gateway adapter.PaymentGateway,
	entitlements EntitlementUseCase,
	redirectHost string,
	clock Clock,
	logger *zerolog.Logger,
) *orderUC {
	l := logger.With().Str("component", "OrderUseCase").Logger()
	return &orderUC{
		orders:       orders,
		plans:        plans,
		films:        films,
		purchases:    purchases,
		gateway:      gateway,
		entitlements: entitlements,
		redirectHost: strings.TrimRight(redirectHost, "/"),
		now:          orSystem(clock),
		logger:       &l,
	}
}

func (uc *orderUC) CreateOrder(ctx context.Context, caller model.Caller, in CreateOrderInput) (*CreateOrderResult, error) {
	defer logging.TraceDuration(uc.logger, "OrderUseCase.CreateOrder")()

	if caller.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	hasPlan, hasFilm := in.PlanID != "", in.FilmID != ""
	if hasPlan == hasFilm {
		return nil, fmt.Errorf("%w: exactly one of planId or filmId is required", domain.ErrValidation)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q is not a number", domain.ErrValidation, in.Amount)
	}

	var (
		target      model.OrderTarget
		currency    string
		description string
	)
	if hasFilm {
		film, err := uc.checkFilm(ctx, caller.UserID, in.FilmID, amount)
		if err != nil {
			return nil, err
		}
		target = model.FilmTarget{FilmID: film.ID}
		currency = model.DefaultCurrency
		description = "Film purchase: " + film.Name
	} else {
		plan, err := uc.checkPlan(ctx, in.PlanID, amount)
		if err != nil {
			return nil, err
		}
		target = model.SubscriptionTarget{PlanID: plan.ID}
		currency = plan.Currency
		description = "Subscription: " + plan.Name
	}
	// the catalog sets the currency; a client may only repeat it
	if c := strings.TrimSpace(in.Currency); c != "" && !strings.EqualFold(c, currency) {
		return nil, fmt.Errorf("%w: currency %s, expected %s", domain.ErrPriceMismatch, c, currency)
	}

	order, err := model.NewOrder(uuid.NewString(), caller.UserID, target, amount, currency, uc.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := uc.orders.Create(ctx, repository.NoTX, order); err != nil {
		return nil, err
	}
	log := uc.logger.With().Str("order_id", order.ID).Str("user_id", order.UserID).Str("type", string(order.Type())).Logger()

	returnURL := in.ReturnURL
	if returnURL == "" {
		returnURL = fmt.Sprintf("%s/profile/orders/%s", uc.redirectHost, order.ID)
	}
	meta := map[string]string{
		"userId":  order.UserID,
		"orderId": order.ID,
		"type":    string(order.Type()),
	}
	switch t := target.(type) {
	case model.SubscriptionTarget:
		meta["planId"] = t.PlanID
	case model.FilmTarget:
		meta["filmId"] = t.FilmID
	}

	payment, err := uc.gateway.CreatePayment(ctx, adapter.CreatePaymentRequest{
		Amount:      amount,
		Currency:    currency,
		ReturnURL:   returnURL,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		// the order stays pending without a payment; the stale-order job fails it later
		log.Error().Err(err).Msg("payment creation failed")
		metrics.IncOrder(string(order.Type()), "payment_failed")
		return nil, domain.ErrPaymentCreation
	}

	if err := uc.orders.AttachPayment(ctx, repository.NoTX, order.ID, payment.ID, paymentMethodBankCard, payment.Raw); err != nil {
		log.Error().Err(err).Str("payment_id", payment.ID).Msg("attach payment to order failed")
		return nil, err
	}
	order.ExternalPaymentID = &payment.ID
	order.PaymentMethod = paymentMethodBankCard
	order.Metadata = payment.Raw

	metrics.IncOrder(string(order.Type()), string(model.OrderStatusPending))
	log.Info().Str("payment_id", payment.ID).Str("amount", amount.String()).Msg("order created")
	return &CreateOrderResult{Order: order, ConfirmationURL: payment.ConfirmationURL}, nil
}

func (uc *orderUC) checkFilm(ctx context.Context, userID, filmID string, amount decimal.Decimal) (*model.Film, error) {
	film, err := uc.films.FindByID(ctx, repository.NoTX, filmID)
	if err != nil {
		return nil, err
	}
	if !film.IsPaid {
		return nil, domain.ErrFilmNotForSale
	}
	if !film.HasPrice(amount) {
		return nil, domain.ErrPriceMismatch
	}
	_, err = uc.purchases.FindValid(ctx, repository.NoTX, userID, film.ID, uc.now())
	switch {
	case err == nil:
		return nil, domain.ErrAlreadyPurchased
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return film, nil
}

func (uc *orderUC) checkPlan(ctx context.Context, planID string, amount decimal.Decimal) (*model.SubscriptionPlan, error) {
	plan, err := uc.plans.FindByID(ctx, repository.NoTX, planID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanUnavailable
	}
	if !plan.Price.Equal(amount) {
		return nil, domain.ErrPriceMismatch
	}
	return plan, nil
}

func (uc *orderUC) GetOrder(ctx context.Context, caller model.Caller, orderID string) (*model.Order, error) {
	o, err := uc.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(o.UserID) {
		return nil, domain.ErrForbidden
	}
	if o.Status != model.OrderStatusPending || o.ExternalPaymentID == nil {
		return o, nil
	}
	fresh, err := uc.CheckAndProcessOrder(ctx, o.ID)
	if err != nil {
		uc.logger.Warn().Err(err).Str("order_id", o.ID).Msg("active poll failed, returning stored order")
		return o, nil
	}
	return fresh, nil
}

func (uc *orderUC) ListUserOrders(ctx context.Context, caller model.Caller, userID string) ([]*model.Order, error) {
	if !caller.CanActFor(userID) {
		return nil, domain.ErrForbidden
	}
	return uc.orders.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *orderUC) CheckAndProcessOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := uc.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if o.ExternalPaymentID == nil || *o.ExternalPaymentID == "" {
		return nil, domain.ErrNoPaymentToCheck
	}

	payment, err := uc.gateway.GetPayment(ctx, *o.ExternalPaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	status := model.OrderStatusFromGateway(payment.Status)
	if status == model.OrderStatusPaid {
		res, err := uc.entitlements.Grant(ctx, o)
		if err != nil {
			return nil, err
		}
		return res.Order, nil
	}

	if status == o.Status {
		return o, nil
	}
	if o.Status != model.OrderStatusPending {
		// only a grant moves a settled order
		uc.logger.Warn().Str("order_id", o.ID).Str("status", string(o.Status)).Str("gateway_status", payment.Status).
			Msg("settled order reported otherwise by gateway; keeping stored status")
		return o, nil
	}
	// a grant may have landed since the read
	ok, err := uc.orders.UpdateStatusIfPending(ctx, repository.NoTX, o.ID, status, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return uc.orders.FindByID(ctx, repository.NoTX, o.ID)
	}
	o.Status = status
	metrics.IncOrder(string(o.Type()), string(status))
	uc.logger.Info().Str("order_id", o.ID).Str("status", string(status)).Msg("order status updated from gateway")
	return o, nil
}

func (uc *orderUC) ReconcilePending(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := uc.now().Add(-staleAfter)
	pending, err := uc.orders.ListCheckableOlderThan(ctx, repository.NoTX, cutoff, reconcileBatch)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, o := range pending {
		fresh, err := uc.CheckAndProcessOrder(ctx, o.ID)
		if err != nil {
			uc.logger.Warn().Err(err).Str("order_id", o.ID).Msg("reconcile: poll failed")
			continue
		}
		if fresh.Status != model.OrderStatusPending {
			changed++
		}
	}
	return changed, nil
}

func (uc *orderUC) ExpireStaleOrders(ctx context.Context) (int, error) {
	now := uc.now()
	stale, err := uc.orders.ListPendingOlderThan(ctx, repository.NoTX, now.Add(-model.OrderTTL), reconcileBatch)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, o := range stale {
		if !o.IsStale(now) {
			continue
		}
		if o.ExternalPaymentID != nil {
			// last chance: the payment may have gone through without a webhook
			fresh, err := uc.CheckAndProcessOrder(ctx, o.ID)
			if err != nil {
				// the payment may still have succeeded; try again next tick
				uc.logger.Warn().Err(err).Str("order_id", o.ID).Msg("expire: poll failed, keeping order pending")
				continue
			}
			if fresh.Status != model.OrderStatusPending {
				continue
			}
		}
		ok, err := uc.orders.UpdateStatusIfPending(ctx, repository.NoTX, o.ID, model.OrderStatusFailed, nil)
		if err != nil {
			uc.logger.Warn().Err(err).Str("order_id", o.ID).Msg("expire stale order failed")
			continue
		}
		if ok {
			failed++
			metrics.IncOrder(string(o.Type()), "expired")
		}
	}
	if failed > 0 {
		uc.logger.Info().Int("count", failed).Msg("stale pending orders failed")
	}
	return failed, nil
}
