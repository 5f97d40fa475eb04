// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"filmstream/internal/config"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/adapters/events"
	payAdapters "filmstream/internal/infra/adapters/payment"
	"filmstream/internal/infra/api"
	pg "filmstream/internal/infra/db/postgres"
	"filmstream/internal/infra/logging"
	"filmstream/internal/infra/metrics"
	red "filmstream/internal/infra/redis"
	"filmstream/internal/infra/sched"
	"filmstream/internal/infra/tokencache"
	"filmstream/internal/infra/worker"
	"filmstream/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop payment gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Repositories ----
	var planRepo repository.SubscriptionPlanRepository = pg.NewPostgresPlanRepo(pool)
	filmRepo := pg.NewFilmRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	purchaseRepo := pg.NewPostgresPurchaseRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter adapter.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, redisClient, cfg.Redis.TTL, logger)
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set: grant locks, plan cache and token rate limits are disabled")
	}

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Payment.YooKassa.ShopID == "" {
		gateway = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("payment gateway: noop")
	} else {
		yk, err := payAdapters.NewYooKassaGateway(cfg.Payment.YooKassa.ShopID, cfg.Payment.YooKassa.SecretKey,
			cfg.Payment.YooKassa.APIURL, cfg.Payment.YooKassa.Timeout)
		if err != nil {
			log.Fatalf("yookassa gateway: %v", err)
		}
		gateway = yk
	}

	// ---- Entitlement events ----
	var publisher adapter.EntitlementPublisher = events.NewNoopPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(&cfg.Kafka, logger)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		eventPool := worker.NewPool("entitlement_events", 2, 256, logger)
		eventPool.Start(context.Background())
		publisher = events.NewAsyncPublisher(kp, eventPool, logger)
	}
	defer publisher.Close()

	// ---- Video token cache ----
	tokens := tokencache.New(cfg.Streaming.SweepInterval, logger)
	tokens.Start(ctx)
	defer tokens.Stop()

	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, 7*24*time.Hour)

	// ---- Use cases ----
	clock := usecase.SystemClock
	planUC := usecase.NewPlanUseCase(planRepo)
	expiryUC := usecase.NewExpiryUseCase(subRepo, clock, logger)
	accessUC := usecase.NewAccessUseCase(subRepo, purchaseRepo, filmRepo, expiryUC, clock, logger)
	entitlementUC := usecase.NewEntitlementUseCase(txManager, orderRepo, planRepo, subRepo, purchaseRepo, locker, publisher, clock, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, planRepo, filmRepo, purchaseRepo, gateway, entitlementUC, cfg.Payment.RedirectHost, clock, logger)
	webhookUC := usecase.NewWebhookUseCase(orderRepo, gateway, entitlementUC, logger)
	videoUC := usecase.NewVideoAccessUseCase(filmRepo, accessUC, tokens, limiter, auth, usecase.VideoAccessConfig{
		TokenTTL:    cfg.Streaming.TokenTTL,
		IssueLimit:  cfg.Streaming.IssueLimit,
		IssueWindow: cfg.Streaming.IssueWindow,
	}, clock, logger)

	// ---- HTTP API ----
	apiServer, err := api.NewServer(api.Deps{
		Auth:         auth,
		Orders:       orderUC,
		Webhook:      webhookUC,
		Entitlements: entitlementUC,
		Access:       accessUC,
		Expiry:       expiryUC,
		Video:        videoUC,
		Plans:        planUC,
	}, api.Options{
		RequestTimeout:      cfg.HTTP.RequestTimeout,
		AllowedOrigins:      cfg.HTTP.AllowedOrigins,
		WebhookAllowedCIDRs: cfg.Payment.WebhookAllowedCIDRs,
		UploadsDir:          cfg.Streaming.UploadsDir,
		Clock:               clock,
	}, logger)
	if err != nil {
		log.Fatalf("api: %v", err)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Background jobs ----
	expiryWorker, err := sched.NewExpiryWorker(cfg.Scheduler.ExpiryCheckCron, time.Local, expiryUC, logger)
	if err != nil {
		log.Fatalf("expiry worker: %v", err)
	}
	expiryWorker.Start()

	reconciler := sched.NewPaymentReconciler(orderUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter, logger)
	reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	reconciler.Stop()
	expiryWorker.Stop(shutdownCtx)
	cancel()
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
