// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/metrics"
)

var _ EntitlementUseCase = (*entitlementUC)(nil)

const grantLockTTL = 30 * time.Second

func grantLockKey(orderID string) string { return "lock:grant:" + orderID }

// GrantResult reports what a Grant call did. AlreadyGranted is true when the
// order's entitlement existed before the call.
type GrantResult struct {
	AlreadyGranted bool
	Order          *model.Order
	Subscription   *model.Subscription
	Purchase       *model.UserPurchasedFilm
}

type ManualGrantInput struct {
	UserID       string
	PlanID       string
	DurationDays int // zero means the plan's duration
}

type EntitlementUseCase interface {
	// Grant creates the entitlement bought by a paid order and marks the order paid.
	// Calling it again for the same order is a successful no-op.
	Grant(ctx context.Context, order *model.Order) (*GrantResult, error)
	ManualGrant(ctx context.Context, caller model.Caller, in ManualGrantInput) (*model.Subscription, error)
	Invalidate(ctx context.Context, caller model.Caller, userID string) (int, error)
	ListPurchasedFilms(ctx context.Context, caller model.Caller, userID string) ([]*model.PurchasedFilm, error)
}

type entitlementUC struct {
	tm        repository.TransactionManager
	orders    repository.OrderRepository
	plans     repository.SubscriptionPlanRepository
	subs      repository.SubscriptionRepository
	purchases repository.PurchaseRepository
	locker    adapter.Locker
	events    adapter.EntitlementPublisher
	now       Clock
	logger    *zerolog.Logger
}

// NewEntitlementUseCase wires the grant service. locker and events may be nil.
func NewEntitlementUseCase(
	tm repository.TransactionManager,
	orders repository.OrderRepository,
	plans repository.SubscriptionPlanRepository,
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	locker adapter.Locker,
	events adapter.EntitlementPublisher,
	clock Clock,
	logger *zerolog.Logger,
) *entitlementUC {
	l := logger.With().Str("component", "EntitlementUseCase").Logger()
	return &entitlementUC{
		tm:        tm,
		orders:    orders,
		plans:     plans,
		subs:      subs,
		purchases: purchases,
		locker:    locker,
		events:    events,
		now:       orSystem(clock),
		logger:    &l,
	}
}

func (uc *entitlementUC) Grant(ctx context.Context, order *model.Order) (*GrantResult, error) {
	if order == nil || order.ID == "" || order.Target == nil {
		return nil, fmt.Errorf("%w: order to grant", domain.ErrInvalidArgument)
	}
	log := uc.logger.With().Str("order_id", order.ID).Logger()

	unlock := uc.lock(ctx, order.ID, &log)
	defer unlock()

	now := uc.now()
	var res *GrantResult
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Row lock on the order serializes concurrent grants of it.
		stored, err := uc.orders.FindByID(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		switch t := stored.Target.(type) {
		case model.SubscriptionTarget:
			res, err = uc.grantSubscription(ctx, tx, stored, t, now)
		case model.FilmTarget:
			res, err = uc.grantFilm(ctx, tx, stored, t, now)
		default:
			err = fmt.Errorf("%w: order %s has no target", domain.ErrInvalidArgument, stored.ID)
		}
		if err != nil {
			return err
		}

		if stored.Status != model.OrderStatusPaid {
			if err := uc.orders.UpdateStatus(ctx, tx, stored.ID, model.OrderStatusPaid, &now); err != nil {
				return err
			}
			stored.Status = model.OrderStatusPaid
			stored.PaidAt = &now
		}
		res.Order = stored
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// a concurrent grant committed first; the unique index on order_id caught it
		log.Info().Msg("entitlement already granted by a concurrent call")
		metrics.IncEntitlementGranted(string(order.Type()), "already_granted")
		stored, ferr := uc.orders.FindByID(ctx, repository.NoTX, order.ID)
		if ferr != nil {
			stored = order
		}
		return &GrantResult{AlreadyGranted: true, Order: stored}, nil
	}
	if err != nil {
		return nil, err
	}

	kind := string(res.Order.Type())
	if res.AlreadyGranted {
		metrics.IncEntitlementGranted(kind, "already_granted")
		log.Debug().Msg("grant is a no-op")
		return res, nil
	}

	metrics.IncEntitlementGranted(kind, "created")
	metrics.IncOrder(kind, string(model.OrderStatusPaid))
	metrics.AddOrderRevenue(res.Order.Currency, res.Order.Amount)
	log.Info().Str("user_id", res.Order.UserID).Str("kind", kind).Msg("entitlement granted")

	ev := adapter.EntitlementEvent{
		Event:   adapter.EntitlementGranted,
		UserID:  res.Order.UserID,
		OrderID: res.Order.ID,
		At:      now,
	}
	switch t := res.Order.Target.(type) {
	case model.SubscriptionTarget:
		ev.PlanID = t.PlanID
	case model.FilmTarget:
		ev.FilmID = t.FilmID
	}
	uc.publish(ctx, ev)
	return res, nil
}

func (uc *entitlementUC) grantSubscription(ctx context.Context, tx repository.Tx, o *model.Order, t model.SubscriptionTarget, now time.Time) (*GrantResult, error) {
	existing, err := uc.subs.FindByOrderID(ctx, tx, o.ID)
	if err == nil {
		return &GrantResult{AlreadyGranted: true, Subscription: existing}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	plan, err := uc.plans.FindByID(ctx, tx, t.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", t.PlanID, err)
	}
	orderID := o.ID
	sub, err := model.NewSubscription(uuid.NewString(), o.UserID, plan.ID, &orderID, plan.Duration(), now)
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	return &GrantResult{Subscription: sub}, nil
}

func (uc *entitlementUC) grantFilm(ctx context.Context, tx repository.Tx, o *model.Order, t model.FilmTarget, now time.Time) (*GrantResult, error) {
	existing, err := uc.purchases.FindByOrderID(ctx, tx, o.ID)
	if err == nil {
		return &GrantResult{AlreadyGranted: true, Purchase: existing}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	valid, err := uc.purchases.FindValid(ctx, tx, o.UserID, t.FilmID, now)
	if err == nil {
		return &GrantResult{AlreadyGranted: true, Purchase: valid}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p := &model.UserPurchasedFilm{
		ID:          uuid.NewString(),
		UserID:      o.UserID,
		FilmID:      t.FilmID,
		OrderID:     o.ID,
		PurchasedAt: now,
	}
	if err := uc.purchases.Save(ctx, tx, p); err != nil {
		return nil, err
	}
	return &GrantResult{Purchase: p}, nil
}

func (uc *entitlementUC) ManualGrant(ctx context.Context, caller model.Caller, in ManualGrantInput) (*model.Subscription, error) {
	if !caller.IsAdmin {
		return nil, domain.ErrForbidden
	}
	if in.UserID == "" || in.PlanID == "" || in.DurationDays < 0 {
		return nil, fmt.Errorf("%w: userId and planId are required", domain.ErrValidation)
	}

	plan, err := uc.plans.FindByID(ctx, repository.NoTX, in.PlanID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanUnavailable
	}
	if err != nil {
		return nil, err
	}
	duration := plan.Duration()
	if in.DurationDays > 0 {
		duration = time.Duration(in.DurationDays) * 24 * time.Hour
	}

	now := uc.now()
	sub, err := model.NewSubscription(uuid.NewString(), in.UserID, plan.ID, nil, duration, now)
	if err != nil {
		return nil, err
	}
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		n, err := uc.subs.CancelActiveByUser(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if n > 0 {
			uc.logger.Info().Str("user_id", in.UserID).Int("count", n).Msg("previous subscriptions cancelled by manual grant")
		}
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncEntitlementGranted(string(model.OrderTypeSubscription), "manual")
	uc.logger.Info().Str("admin_id", caller.UserID).Str("user_id", in.UserID).Str("plan_id", plan.ID).Msg("manual subscription granted")
	uc.publish(ctx, adapter.EntitlementEvent{
		Event:  adapter.EntitlementGranted,
		UserID: in.UserID,
		PlanID: plan.ID,
		At:     now,
	})
	return sub, nil
}

func (uc *entitlementUC) Invalidate(ctx context.Context, caller model.Caller, userID string) (int, error) {
	if !caller.IsAdmin {
		return 0, domain.ErrForbidden
	}
	if userID == "" {
		return 0, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}
	n, err := uc.subs.CancelActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	metrics.AddEntitlementsRevoked(n)
	uc.logger.Info().Str("admin_id", caller.UserID).Str("user_id", userID).Int("count", n).Msg("subscriptions invalidated")
	uc.publish(ctx, adapter.EntitlementEvent{
		Event:  adapter.EntitlementRevoked,
		UserID: userID,
		At:     uc.now(),
	})
	return n, nil
}

func (uc *entitlementUC) ListPurchasedFilms(ctx context.Context, caller model.Caller, userID string) ([]*model.PurchasedFilm, error) {
	if !caller.CanActFor(userID) {
		return nil, domain.ErrForbidden
	}
	return uc.purchases.ListValidByUser(ctx, repository.NoTX, userID, uc.now())
}

// lock takes the cross-instance grant lock when a locker is configured. Failing to
// get it is not fatal: the order row lock and the unique indexes still hold.
func (uc *entitlementUC) lock(ctx context.Context, orderID string, log *zerolog.Logger) func() {
	if uc.locker == nil {
		return func() {}
	}
	key := grantLockKey(orderID)
	token, err := uc.locker.TryLock(ctx, key, grantLockTTL)
	if err != nil {
		log.Warn().Err(err).Msg("grant lock unavailable, continuing without it")
		return func() {}
	}
	return func() {
		if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Msg("grant unlock failed")
		}
	}
}

func (uc *entitlementUC) publish(ctx context.Context, ev adapter.EntitlementEvent) {
	if uc.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.events.Publish(pctx, ev); err != nil {
		uc.logger.Warn().Err(err).Str("event", string(ev.Event)).Str("user_id", ev.UserID).Msg("entitlement event not delivered")
	}
}
