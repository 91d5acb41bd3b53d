package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

// Scheduler периодически обслуживает бронирования: завершает прошедшие занятия,
// сверяет ожидающие оплаты и отменяет просроченные неоплаченные заявки.
type Scheduler struct {
	ledger     *service.BookingLedger
	payments   *service.PaymentGate
	interval   time.Duration
	pendingTTL time.Duration
	logger     *zap.Logger
}

// NewScheduler создаёт новый планировщик. payments может быть nil, если оплата выключена.
func NewScheduler(ledger *service.BookingLedger, payments *service.PaymentGate, interval, pendingTTL time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		ledger:     ledger,
		payments:   payments,
		interval:   interval,
		pendingTTL: pendingTTL,
		logger:     logger,
	}
}

// Run выполняет проход сразу и затем по тикеру, пока не отменён ctx
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("Background scheduler stopped")
			return nil
		}
	}
}

// Sweep один идемпотентный проход
func (s *Scheduler) Sweep(ctx context.Context) {
	if s.payments != nil {
		paid, err := s.payments.ReconcilePending(ctx)
		if err != nil {
			s.logger.Error("Failed to reconcile pending payments", zap.Error(err))
		} else if paid > 0 {
			s.logger.Info("Pending payments reconciled", zap.Int("paid", paid))
		}
	}

	expired, err := s.ledger.ExpireUnpaid(ctx, s.pendingTTL)
	if err != nil {
		s.logger.Error("Failed to expire unpaid bookings", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("Unpaid bookings expired", zap.Int("count", expired))
	}

	completed, err := s.ledger.CompleteElapsed(ctx)
	if err != nil {
		s.logger.Error("Failed to complete elapsed bookings", zap.Error(err))
	} else if completed > 0 {
		s.logger.Info("Elapsed bookings completed", zap.Int("count", completed))
	}
}
