package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/cache"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/Freeeeeet/lesson_scheduler/internal/handler"
	"github.com/Freeeeeet/lesson_scheduler/internal/notification"
	"github.com/Freeeeeet/lesson_scheduler/internal/payment"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// App собранное приложение: сервисы, уведомления и фоновые задачи
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Availability *service.AvailabilityService
	Slots        *service.SlotGenerator
	Ledger       *service.BookingLedger
	Payments     *service.PaymentGate
	Profiles     service.ProfileRepository
	Dispatcher   *notification.Dispatcher
	Scheduler    *Scheduler

	webhooks handler.WebhookParser
	closers  []func()
}

// New собирает зависимости по конфигурации
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	repos, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStorage)
	a.Profiles = repos.profiles

	slotCache := a.slotCache(ctx)

	a.Dispatcher = notification.NewDispatcher(repos.profiles, cfg.NotifyQueueSize, logger.Named("notification"))
	if err := a.registerChannels(); err != nil {
		a.Close()
		return nil, err
	}

	a.Availability = service.NewAvailabilityService(repos.availability, slotCache, logger)
	a.Slots = service.NewSlotGenerator(repos.availability, repos.bookings, repos.profiles, slotCache, cfg.SlotGranularityMinutes, logger)
	a.Ledger = service.NewBookingLedger(
		repos.bookings,
		a.Slots,
		service.NewRoomLinks(cfg.MeetingBaseURL),
		a.Dispatcher,
		cfg.EnforceAvailability,
		logger,
	)

	var provider service.PaymentProvider = payment.Disabled{}
	if cfg.PaymentsEnabled() {
		stripeProvider := payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.PaymentSuccessURL,
			CancelURL:     cfg.PaymentCancelURL,
		}, logger.Named("stripe"))
		provider = stripeProvider
		a.webhooks = stripeProvider
	} else {
		logger.Warn("STRIPE_SECRET_KEY is not set, only free lessons can be paid")
	}

	a.Payments = service.NewPaymentGate(
		a.Ledger,
		repos.profiles,
		provider,
		service.ConfirmationPolicy(cfg.ConfirmationPolicy),
		cfg.PaymentCurrency,
		logger,
	)

	var sweepPayments *service.PaymentGate
	if cfg.PaymentsEnabled() {
		sweepPayments = a.Payments
	}
	a.Scheduler = NewScheduler(a.Ledger, sweepPayments, cfg.SweepInterval, cfg.PendingPaymentTTL, logger.Named("scheduler"))

	return a, nil
}

func (a *App) slotCache(ctx context.Context) service.SlotCache {
	if !a.cfg.RedisEnabled() {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn("Redis unavailable, slot cache disabled", zap.Error(err))
		_ = rdb.Close()
		return nil
	}

	a.closers = append(a.closers, func() { _ = rdb.Close() })
	return cache.NewSlotCache(rdb, a.cfg.SlotCacheTTL, a.logger.Named("cache"))
}

func (a *App) registerChannels() error {
	if a.cfg.EmailEnabled() {
		a.Dispatcher.AddChannel(notification.NewEmailChannel(notification.SMTPConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			Username: a.cfg.SMTPUsername,
			Password: a.cfg.SMTPPassword,
			From:     a.cfg.SMTPFrom,
			UseTLS:   a.cfg.SMTPUseTLS,
		}))
	}

	if a.cfg.TelegramEnabled() {
		tg, err := notification.NewTelegramChannel(a.cfg.TelegramToken)
		if err != nil {
			return err
		}
		a.Dispatcher.AddChannel(tg)
	}

	if a.cfg.KafkaEnabled() {
		sink := notification.NewKafkaSink(a.cfg.KafkaBrokers, a.cfg.KafkaBookingTopic)
		a.Dispatcher.AddSink(sink)
		a.closers = append(a.closers, func() {
			if err := sink.Close(); err != nil {
				a.logger.Warn("Failed to close kafka writer", zap.Error(err))
			}
		})
	}
	return nil
}

// Router HTTP-обработчик со всеми маршрутами
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.Deps{
		Availability: a.Availability,
		Slots:        a.Slots,
		Ledger:       a.Ledger,
		Payments:     a.Payments,
		Profiles:     a.Profiles,
		Webhooks:     a.webhooks,
		Logger:       a.logger.Named("http"),
	})
}

// Serve запускает HTTP-сервер, планировщик и рассылку уведомлений до отмены ctx
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return a.Scheduler.Run(ctx) })
	g.Go(func() error { return a.Dispatcher.Run(ctx) })

	return g.Wait()
}

// SweepOnce один проход планировщика с доставкой порождённых уведомлений
func (a *App) SweepOnce(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return a.Dispatcher.Run(gctx) })

	a.Scheduler.Sweep(ctx)
	stop()

	return g.Wait()
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
