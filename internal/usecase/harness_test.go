//go:build !integration

package usecase_test

import (
	"testing"
	"time"

	"filmstream/internal/domain/model"
	"filmstream/internal/usecase"
)

const (
	planMonthly = "plan-monthly"
	planOld     = "plan-retired"
	filmPaid    = "film-paid"
	filmFree    = "film-free"
	userA       = "user-a"
	userB       = "user-b"
)

// harness wires every use case against one in-memory store and one clock.
type harness struct {
	db        *memDB
	clock     *fakeClock
	gw        *MockPaymentGateway
	pub       *MockPublisher
	locker    *MockLocker
	tokens    *MockTokenStore
	tm        *MockTxManager
	orders    *MockOrderRepo
	subs      *MockSubscriptionRepo
	purchases *MockPurchaseRepo

	expiry  usecase.ExpiryUseCase
	access  usecase.AccessUseCase
	ent     usecase.EntitlementUseCase
	orderUC usecase.OrderUseCase
	webhook usecase.WebhookUseCase
	video   usecase.VideoAccessUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:     newMemDB(),
		clock:  newFakeClock(),
		gw:     NewMockPaymentGateway(),
		pub:    &MockPublisher{},
		locker: NewMockLocker(),
		tokens: NewMockTokenStore(),
		tm:     NewMockTxManager(),
	}
	h.orders = &MockOrderRepo{db: h.db}
	h.subs = &MockSubscriptionRepo{db: h.db}
	h.purchases = &MockPurchaseRepo{db: h.db}
	plans := &MockPlanRepo{db: h.db}
	films := &MockFilmRepo{db: h.db}
	log := newTestLogger()
	clock := usecase.Clock(h.clock.Now)

	h.db.seedPlan(model.SubscriptionPlan{
		ID: planMonthly, Name: "Monthly", Price: dec("9.99"), Currency: "RUB", DurationDays: 30, IsActive: true,
	})
	h.db.seedPlan(model.SubscriptionPlan{
		ID: planOld, Name: "Retired", Price: dec("1.00"), Currency: "RUB", DurationDays: 7, IsActive: false,
	})
	h.db.seedFilm(model.Film{ID: filmPaid, Name: "Solaris", IsPaid: true, Price: decPtr("299"), FilmURL: "/uploads/solaris.mp4"})
	h.db.seedFilm(model.Film{ID: filmFree, Name: "Nosferatu", FilmURL: "/uploads/nosferatu.mp4"})

	h.expiry = usecase.NewExpiryUseCase(h.subs, clock, log)
	h.access = usecase.NewAccessUseCase(h.subs, h.purchases, films, h.expiry, clock, log)
	h.ent = usecase.NewEntitlementUseCase(h.tm, h.orders, plans, h.subs, h.purchases, h.locker, h.pub, clock, log)
	h.orderUC = usecase.NewOrderUseCase(h.orders, plans, films, h.purchases, h.gw, h.ent, "http://localhost:5173/", clock, log)
	h.webhook = usecase.NewWebhookUseCase(h.orders, h.gw, h.ent, log)
	h.video = usecase.NewVideoAccessUseCase(films, h.access, h.tokens, nil, &MockVerifier{Tokens: map[string]string{"jwt.user.a": userA}},
		usecase.VideoAccessConfig{TokenTTL: 2 * time.Hour}, clock, log)
	return h
}

func caller(id string) model.Caller { return model.Caller{UserID: id} }

func admin() model.Caller { return model.Caller{UserID: "admin-1", IsAdmin: true} }

// seedPendingOrder stores a pending order with an attached gateway payment.
func (h *harness) seedPendingOrder(t *testing.T, id, userID string, target model.OrderTarget, amount string) *model.Order {
	t.Helper()
	o, err := model.NewOrder(id, userID, target, dec(amount), "RUB", h.clock.Now())
	if err != nil {
		t.Fatalf("build order: %v", err)
	}
	paymentID := "pay-" + id
	o.ExternalPaymentID = &paymentID
	h.db.seedOrder(*o)
	h.gw.SetStatus(paymentID, model.GatewayStatusPending)
	return o
}

func succeeded(o *model.Order) usecase.Notification {
	md := usecase.WebhookMetadata{OrderID: o.ID, UserID: o.UserID, Type: string(o.Type())}
	switch t := o.Target.(type) {
	case model.SubscriptionTarget:
		md.PlanID = t.PlanID
	case model.FilmTarget:
		md.FilmID = t.FilmID
	}
	return usecase.Notification{
		Type:   "notification",
		Event:  "payment.succeeded",
		Object: usecase.WebhookObject{ID: *o.ExternalPaymentID, Status: model.GatewayStatusSucceeded, Metadata: md},
	}
}
