// Command notifier consumes booking events, appends them to the booking
// log and emails the guest a confirmation.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/logger"
	"github.com/iliyamo/hotel-reservation/internal/notify"
	"github.com/iliyamo/hotel-reservation/internal/observability"
	"github.com/iliyamo/hotel-reservation/internal/queue"
)

var version = "dev"

func main() {
	env := os.Getenv("APP_ENV")
	if err := logger.Init(config.LoadLogConfig(), env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("notifier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, config.LoadTracingConfig("hotel-notifier"), version)
	if err != nil {
		lg.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		if shutdownTracing != nil {
			_ = shutdownTracing(context.Background())
		}
	}()

	mailCfg := config.LoadMailConfig()
	bookingLog, err := logger.RotatingFile(mailCfg.LogFile)
	if err != nil {
		lg.Fatal("open booking log", zap.String("path", mailCfg.LogFile), zap.Error(err))
	}
	defer bookingLog.Close()

	var mailer notify.Mailer
	m, err := notify.NewSMTPMailer(mailCfg)
	switch {
	case err != nil:
		lg.Fatal("smtp mailer", zap.Error(err))
	case m != nil:
		mailer = m
	default:
		lg.Warn("SMTP_HOST not set; confirmation emails disabled")
	}
	h := notify.NewBookingHandler(mailer, bookingLog, lg)

	consumer, err := queue.NewConsumer(config.LoadBrokerConfig(), h.Handle, lg)
	if err != nil {
		lg.Fatal("event consumer", zap.Error(err))
	}
	lg.Info("waiting for booking events", zap.String("version", version))
	if err := consumer.Run(ctx); err != nil {
		lg.Error("consumer stopped", zap.Error(err))
	}
	lg.Info("notifier stopped")
}
