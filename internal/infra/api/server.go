package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"filmstream/internal/usecase"
)

// Deps are the use cases the HTTP layer drives.
type Deps struct {
	Auth         *AuthManager
	Orders       usecase.OrderUseCase
	Webhook      usecase.WebhookUseCase
	Entitlements usecase.EntitlementUseCase
	Access       usecase.AccessUseCase
	Expiry       usecase.ExpiryUseCase
	Video        usecase.VideoAccessUseCase
	Plans        *usecase.PlanUseCase
}

type Options struct {
	RequestTimeout time.Duration
	// AllowedOrigins are Origin/Referer prefixes allowed to stream.
	AllowedOrigins []string
	// WebhookAllowedCIDRs restricts webhook callers; empty allows everyone.
	WebhookAllowedCIDRs []string
	UploadsDir          string
	Clock               func() time.Time
}

// Server exposes payments, entitlements and streaming over HTTP.
type Server struct {
	deps        Deps
	opts        Options
	webhookNets []*net.IPNet
	now         func() time.Time
	log         *zerolog.Logger
}

func NewServer(deps Deps, opts Options, logger *zerolog.Logger) (*Server, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	nets := make([]*net.IPNet, 0, len(opts.WebhookAllowedCIDRs))
	for _, c := range opts.WebhookAllowedCIDRs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("webhook cidr %q: %w", c, err)
		}
		nets = append(nets, n)
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{deps: deps, opts: opts, webhookNets: nets, now: opts.Clock, log: &l}, nil
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authed := Authenticate(s.deps.Auth, true, s.log)
	admin := RequireAdmin(s.log)

	r.Route("/api", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/payments/webhook", s.handleWebhook)
		r.Get("/subscriptions/plans", s.handleListPlans)

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/payments/subscription", s.handleCreateSubscriptionOrder)
			r.Post("/payments/film", s.handleCreateFilmOrder)
			r.Get("/orders/{id}", s.handleGetOrder)
			r.Get("/orders/user/{userId}", s.handleListUserOrders)
			r.Get("/subscriptions/my", s.handleMySubscription)
			r.Get("/subscriptions/purchased-films", s.handlePurchasedFilms)
			r.Get("/films/{filmId}/access", s.handleFilmAccess)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/subscriptions/manual", s.handleManualGrant)
				r.Put("/subscriptions/invalidate/{userId}", s.handleInvalidate)
				r.Post("/subscriptions/sweep", s.handleSweep)
			})
		})
	})

	r.Route("/videos", func(r chi.Router) {
		r.Get("/stream/{filmId}", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(authed, Timeout(s.opts.RequestTimeout))
			r.Post("/token/{filmId}", s.handleIssueToken)
			r.Post("/refresh/{filmId}", s.handleRefreshToken)
			r.With(admin).Post("/admin/token/{filmId}", s.handleIssueAdminToken)
			r.With(admin).Post("/admin/refresh/{filmId}", s.handleRefreshAdminToken)
		})
	})
	return r
}
