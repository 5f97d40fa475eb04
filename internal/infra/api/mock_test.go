//go:build !integration

package api_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"filmstream/internal/domain/model"
	"filmstream/internal/infra/api"
	"filmstream/internal/usecase"
)

// Each stub embeds the interface it fakes; only the Func fields a test sets are callable.

type stubOrders struct {
	usecase.OrderUseCase
	CreateOrderFunc func(ctx context.Context, c model.Caller, in usecase.CreateOrderInput) (*usecase.CreateOrderResult, error)
	GetOrderFunc    func(ctx context.Context, c model.Caller, id string) (*model.Order, error)
}

func (s *stubOrders) CreateOrder(ctx context.Context, c model.Caller, in usecase.CreateOrderInput) (*usecase.CreateOrderResult, error) {
	return s.CreateOrderFunc(ctx, c, in)
}

func (s *stubOrders) GetOrder(ctx context.Context, c model.Caller, id string) (*model.Order, error) {
	return s.GetOrderFunc(ctx, c, id)
}

type stubWebhook struct {
	HandleFunc func(ctx context.Context, n usecase.Notification) error
}

func (s *stubWebhook) HandleWebhook(ctx context.Context, n usecase.Notification) error {
	return s.HandleFunc(ctx, n)
}

type stubEntitlements struct {
	usecase.EntitlementUseCase
	InvalidateFunc func(ctx context.Context, c model.Caller, userID string) (int, error)
}

func (s *stubEntitlements) Invalidate(ctx context.Context, c model.Caller, userID string) (int, error) {
	return s.InvalidateFunc(ctx, c, userID)
}

type stubVideo struct {
	usecase.VideoAccessUseCase
	IssueFunc     func(ctx context.Context, c model.Caller, filmID string) (*usecase.VideoToken, error)
	RefreshFunc   func(ctx context.Context, c model.Caller, filmID, tokenID string) (*usecase.RefreshedVideoToken, error)
	AuthorizeFunc func(ctx context.Context, filmID, token string) (*usecase.StreamGrant, error)
}

func (s *stubVideo) Issue(ctx context.Context, c model.Caller, filmID string) (*usecase.VideoToken, error) {
	return s.IssueFunc(ctx, c, filmID)
}

func (s *stubVideo) Refresh(ctx context.Context, c model.Caller, filmID, tokenID string) (*usecase.RefreshedVideoToken, error) {
	return s.RefreshFunc(ctx, c, filmID, tokenID)
}

func (s *stubVideo) AuthorizeStream(ctx context.Context, filmID, token string) (*usecase.StreamGrant, error) {
	return s.AuthorizeFunc(ctx, filmID, token)
}

const testSecret = "test-secret"

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newAuth() *api.AuthManager { return api.NewAuthManager(testSecret, "token", time.Hour) }

func bearer(t *testing.T, c model.Caller) string {
	t.Helper()
	tok, err := newAuth().Mint(c)
	require.NoError(t, err)
	return "Bearer " + tok
}

func newTestServer(t *testing.T, opts api.Options, deps api.Deps) *api.Server {
	t.Helper()
	if deps.Auth == nil {
		deps.Auth = newAuth()
	}
	srv, err := api.NewServer(deps, opts, newTestLogger())
	require.NoError(t, err)
	return srv
}
