package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/logger"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/observability"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/router"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

var version = "dev"

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Log, cfg.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, config.LoadTracingConfig("hotel-reservation"), version)
	if err != nil {
		lg.Warn("tracing disabled", zap.Error(err))
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			lg.Fatal("migrate", zap.Error(err))
		}
		lg.Info("migrations applied")
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		lg.Warn("redis unavailable; using in-process rate limiting and no response cache")
	} else {
		defer rdb.Close()
	}

	brokerCfg := config.LoadBrokerConfig()
	publisher, err := queue.NewPublisher(brokerCfg, logger.Named("publisher"))
	if err != nil {
		lg.Fatal("event publisher", zap.Error(err))
	}
	defer publisher.Close()

	payCfg := config.LoadPaymentConfig()
	inventory := repository.NewInventoryRepo(db)
	ledger := repository.NewReservationRepo(db)

	bookings := service.NewBookingService(inventory, ledger, clock.NewSystem(),
		service.WithNotifier(publisher),
		service.WithCurrency(payCfg.Currency),
		service.WithNotifyTimeout(brokerCfg.PublishTimeout),
		service.WithBookingLogger(logger.Named("booking")),
	)

	var (
		provider service.PaymentProvider
		parser   handler.WebhookParser
	)
	if payCfg.SecretKey != "" || payCfg.WebhookSecret != "" {
		stripeProvider := payment.NewStripeProvider(payCfg, "")
		if payCfg.SecretKey != "" {
			provider = stripeProvider
		}
		if payCfg.WebhookSecret != "" {
			parser = stripeProvider
		}
	}
	if provider == nil {
		lg.Warn("STRIPE_SECRET_KEY not set; payment initiation disabled")
	}
	payments := service.NewPaymentService(ledger, inventory, provider, service.RedirectConfig{
		DefaultOrigin: payCfg.PublicURL,
		SuccessPath:   payCfg.SuccessPath,
		CancelPath:    payCfg.CancelPath,
	}, logger.Named("payment"))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger.Named("http")))

	bh := handler.NewBookingHandler(bookings, logger.Named("handler"))
	ph := handler.NewPaymentHandler(payments, parser, logger.Named("handler"))
	auth := router.Auth{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Named("ratelimit"))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger.Named("cache"))

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, bh, cache)
	router.RegisterWebhooks(e, ph)
	router.RegisterCustomer(e, bh, ph, auth, limiter)
	router.RegisterOwner(e, bh, auth)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("version", version))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			lg.Error("tracing shutdown", zap.Error(err))
		}
	}
}
