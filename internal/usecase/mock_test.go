//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// fakeClock is a settable clock shared by the use cases under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// In-memory store
// =============================

// memDB backs every repository mock. Unique-by-order semantics of the real
// schema are enforced so idempotency can be tested.
type memDB struct {
	mu        sync.Mutex
	orders    map[string]model.Order
	plans     map[string]model.SubscriptionPlan
	subs      map[string]model.Subscription
	purchases map[string]model.UserPurchasedFilm
	films     map[string]model.Film
}

func newMemDB() *memDB {
	return &memDB{
		orders:    map[string]model.Order{},
		plans:     map[string]model.SubscriptionPlan{},
		subs:      map[string]model.Subscription{},
		purchases: map[string]model.UserPurchasedFilm{},
		films:     map[string]model.Film{},
	}
}

func (db *memDB) seedFilm(f model.Film) {
	db.mu.Lock()
	db.films[f.ID] = f
	db.mu.Unlock()
}

func (db *memDB) seedPlan(p model.SubscriptionPlan) {
	db.mu.Lock()
	db.plans[p.ID] = p
	db.mu.Unlock()
}

func (db *memDB) seedOrder(o model.Order) {
	db.mu.Lock()
	db.orders[o.ID] = o
	db.mu.Unlock()
}

func (db *memDB) order(id string) model.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.orders[id]
}

func (db *memDB) subsByOrder(orderID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, s := range db.subs {
		if s.OrderID != nil && *s.OrderID == orderID {
			n++
		}
	}
	return n
}

func (db *memDB) purchasesByOrder(orderID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, p := range db.purchases {
		if p.OrderID == orderID {
			n++
		}
	}
	return n
}

func (db *memDB) subsOf(userID string) []model.Subscription {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.Subscription
	for _, s := range db.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// ---- Orders ----

type MockOrderRepo struct {
	db *memDB

	CreateFunc func(ctx context.Context, tx repository.Tx, o *model.Order) error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func (r *MockOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, o)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.db.orders[o.ID] = *o
	return nil
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r *MockOrderRepo) FindByExternalPaymentID(ctx context.Context, tx repository.Tx, externalID string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.ExternalPaymentID != nil && *o.ExternalPaymentID == externalID {
			cp := o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Order
	for _, o := range r.db.orders {
		if o.UserID == userID {
			cp := o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MockOrderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	return r.listPending(olderThan, limit, false)
}

func (r *MockOrderRepo) ListCheckableOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	return r.listPending(olderThan, limit, true)
}

func (r *MockOrderRepo) listPending(olderThan time.Time, limit int, withPayment bool) ([]*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Order
	for _, o := range r.db.orders {
		if withPayment && (o.ExternalPaymentID == nil || *o.ExternalPaymentID == "") {
			continue
		}
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			cp := o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockOrderRepo) AttachPayment(ctx context.Context, tx repository.Tx, id, externalID, paymentMethod string, metadata map[string]any) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.ExternalPaymentID = &externalID
	o.PaymentMethod = paymentMethod
	o.Metadata = metadata
	r.db.orders[id] = o
	return nil
}

func (r *MockOrderRepo) UpdateStatusByExternalID(ctx context.Context, tx repository.Tx, externalID string, status model.OrderStatus, paidAt *time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, o := range r.db.orders {
		if o.ExternalPaymentID == nil || *o.ExternalPaymentID != externalID {
			continue
		}
		if o.Status == model.OrderStatusPaid && status != model.OrderStatusPaid {
			return 0, nil
		}
		o.Status = status
		if o.PaidAt == nil {
			o.PaidAt = paidAt
		}
		r.db.orders[id] = o
		return 1, nil
	}
	return 0, nil
}

func (r *MockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	if o.PaidAt == nil {
		o.PaidAt = paidAt
	}
	r.db.orders[id] = o
	return nil
}

func (r *MockOrderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	if o.PaidAt == nil {
		o.PaidAt = paidAt
	}
	r.db.orders[id] = o
	return true, nil
}

// ---- Plans ----

type MockPlanRepo struct{ db *memDB }

var _ repository.SubscriptionPlanRepository = (*MockPlanRepo)(nil)

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	r.db.seedPlan(*p)
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.SubscriptionPlan
	for _, p := range r.db.plans {
		if p.IsActive {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (r *MockPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.plans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.db.plans, id)
	return nil
}

// ---- Subscriptions ----

type MockSubscriptionRepo struct {
	db *memDB

	// SaveHook runs before the uniqueness check; tests use it to widen race windows.
	SaveHook func()
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveHook != nil {
		r.SaveHook()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s.OrderID != nil {
		for _, existing := range r.db.subs {
			if existing.OrderID != nil && *existing.OrderID == *s.OrderID {
				return domain.ErrAlreadyExists
			}
		}
	}
	r.db.subs[s.ID] = *s
	return nil
}

func (r *MockSubscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.subs {
		if s.OrderID != nil && *s.OrderID == orderID {
			cp := s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) HasActive(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockSubscriptionRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionWithPlan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best *model.Subscription
	for _, s := range r.db.subs {
		if s.UserID != userID {
			continue
		}
		if best == nil || s.ExpiresAt.After(best.ExpiresAt) {
			cp := s
			best = &cp
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return &model.SubscriptionWithPlan{Subscription: *best, Plan: r.db.plans[best.PlanID]}, nil
}

func (r *MockSubscriptionRepo) ExpireActive(ctx context.Context, tx repository.Tx, userID *string, now time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, s := range r.db.subs {
		if userID != nil && s.UserID != *userID {
			continue
		}
		if s.Status == model.SubscriptionStatusActive && s.ExpiresAt.Before(now) {
			s.Status = model.SubscriptionStatusExpired
			r.db.subs[id] = s
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, s := range r.db.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCancelled
			r.db.subs[id] = s
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range r.db.subs {
		out[s.Status]++
	}
	return out, nil
}

// ---- Purchases ----

type MockPurchaseRepo struct {
	db *memDB

	SaveHook func()
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func (r *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.UserPurchasedFilm) error {
	if r.SaveHook != nil {
		r.SaveHook()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.purchases {
		if existing.OrderID == p.OrderID {
			return domain.ErrAlreadyExists
		}
	}
	r.db.purchases[p.ID] = *p
	return nil
}

func (r *MockPurchaseRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.UserPurchasedFilm, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.purchases {
		if p.OrderID == orderID {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) FindValid(ctx context.Context, tx repository.Tx, userID, filmID string, now time.Time) (*model.UserPurchasedFilm, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.purchases {
		if p.UserID == userID && p.FilmID == filmID && p.IsValidAt(now) {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) ListValidByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) ([]*model.PurchasedFilm, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.PurchasedFilm
	for _, p := range r.db.purchases {
		if p.UserID != userID || !p.IsValidAt(now) {
			continue
		}
		f := r.db.films[p.FilmID]
		out = append(out, &model.PurchasedFilm{
			ID:          p.ID,
			FilmID:      p.FilmID,
			FilmName:    f.Name,
			FilmPrice:   f.Price,
			PurchasedAt: p.PurchasedAt,
			ExpiresAt:   p.ExpiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

// ---- Films ----

type MockFilmRepo struct{ db *memDB }

var _ repository.FilmRepository = (*MockFilmRepo)(nil)

func (r *MockFilmRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Film, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.films[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

// ---- Video token store ----

type MockTokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.VideoAccessToken
}

var _ repository.VideoTokenStore = (*MockTokenStore)(nil)

func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{tokens: map[string]model.VideoAccessToken{}}
}

func (s *MockTokenStore) Put(tok model.VideoAccessToken) {
	s.mu.Lock()
	s.tokens[tok.TokenID] = tok
	s.mu.Unlock()
}

func (s *MockTokenStore) Get(id string) (model.VideoAccessToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	return t, ok
}

func (s *MockTokenStore) Extend(id string, expiresAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return false
	}
	t.ExpiresAt = expiresAt
	s.tokens[id] = t
	return true
}

func (s *MockTokenStore) Delete(id string) {
	s.mu.Lock()
	delete(s.tokens, id)
	s.mu.Unlock()
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	seq      int
	statuses map[string]string
	metadata map[string]map[string]string
	Created  []adapter.CreatePaymentRequest

	CreatePaymentFunc func(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error)
	GetPaymentFunc    func(ctx context.Context, id string) (*adapter.GatewayPayment, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{statuses: map[string]string{}, metadata: map[string]map[string]string{}}
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.GatewayPayment, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := "pay-" + uuid.NewString()[:8]
	m.statuses[id] = model.GatewayStatusPending
	m.metadata[id] = req.Metadata
	m.Created = append(m.Created, req)
	return &adapter.GatewayPayment{
		ID:              id,
		Status:          model.GatewayStatusPending,
		ConfirmationURL: "https://pay.test/" + id,
		Metadata:        req.Metadata,
		Raw:             map[string]any{"id": id, "status": model.GatewayStatusPending},
	}, nil
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, id string) (*adapter.GatewayPayment, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		return nil, errors.New("mock: unknown payment")
	}
	return &adapter.GatewayPayment{ID: id, Status: st, Metadata: m.metadata[id]}, nil
}

func (m *MockPaymentGateway) SetStatus(id, status string) {
	m.mu.Lock()
	m.statuses[id] = status
	m.mu.Unlock()
}

// SetPayment registers a payment the gateway knows about, with the metadata it was created with.
func (m *MockPaymentGateway) SetPayment(id, status string, metadata map[string]string) {
	m.mu.Lock()
	m.statuses[id] = status
	m.metadata[id] = metadata
	m.mu.Unlock()
}

// ---- Mock publisher ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []adapter.EntitlementEvent
	Err    error
}

var _ adapter.EntitlementPublisher = (*MockPublisher)(nil)

func (p *MockPublisher) Publish(ctx context.Context, ev adapter.EntitlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, ev)
	return nil
}

func (p *MockPublisher) Close() error { return nil }

func (p *MockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Events)
}

// ---- Mock rate limiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// ---- Mock user token verifier ----

type MockVerifier struct {
	Tokens map[string]string
}

func (m *MockVerifier) VerifyUserToken(token string) (string, error) {
	if uid, ok := m.Tokens[token]; ok {
		return uid, nil
	}
	return "", errors.New("bad token")
}

// ---- Transactions and locks ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
	Taken int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	l.Taken++
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

