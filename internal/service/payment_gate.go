package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ConfirmationPolicy кто переводит оплаченное бронирование в confirmed.
type ConfirmationPolicy string

const (
	// ConfirmOnPayment подтверждение сразу после подтверждённой оплаты.
	ConfirmOnPayment ConfirmationPolicy = "payment"
	// ConfirmByTutor оплата только отмечается, подтверждает преподаватель.
	ConfirmByTutor ConfirmationPolicy = "tutor"
)

type PaymentHandle struct {
	SessionID   string `json:"session_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentGate struct {
	ledger      *BookingLedger
	profileRepo ProfileRepository
	provider    PaymentProvider
	policy      ConfirmationPolicy
	currency    string
	retryBase   time.Duration
	retryMax    uint64
	logger      *zap.Logger
}

func NewPaymentGate(
	ledger *BookingLedger,
	profileRepo ProfileRepository,
	provider PaymentProvider,
	policy ConfirmationPolicy,
	currency string,
	logger *zap.Logger,
) *PaymentGate {
	return &PaymentGate{
		ledger:      ledger,
		profileRepo: profileRepo,
		provider:    provider,
		policy:      policy,
		currency:    currency,
		retryBase:   500 * time.Millisecond,
		retryMax:    3,
		logger:      logger,
	}
}

func (g *PaymentGate) Policy() ConfirmationPolicy {
	return g.policy
}

// SetRetryBackoff настраивает повторы ReconcilePending
func (g *PaymentGate) SetRetryBackoff(base time.Duration, maxRetries uint64) {
	g.retryBase = base
	g.retryMax = maxRetries
}

// Initiate создаёт платёжную сессию на стоимость занятия по ставке преподавателя.
// Предыдущая сессия сначала сверяется: оплаченная засчитывается, открытая закрывается.
// При ошибке провайдера бронирование не меняется.
func (g *PaymentGate) Initiate(ctx context.Context, bookingID uuid.UUID) (*PaymentHandle, error) {
	booking, err := g.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking.Status != model.BookingStatusPending || booking.PaymentStatus == model.PaymentStatusPaid {
		return nil, ErrInvalidTransition
	}

	if booking.PaymentSessionID != nil && booking.PaymentStatus != model.PaymentStatusFailed {
		settled, err := g.releaseSession(ctx, booking)
		if err != nil {
			return nil, err
		}
		if settled {
			return &PaymentHandle{
				SessionID:   *booking.PaymentSessionID,
				AmountCents: booking.AmountPaidCents,
			}, nil
		}
	}

	tutor, err := g.profileRepo.Get(ctx, booking.TutorID)
	if err != nil {
		return nil, fmt.Errorf("get tutor profile: %w", err)
	}
	amount := tutor.LessonPriceCents(booking.DurationMinutes)

	// Бесплатное занятие не требует сессии у провайдера
	if amount == 0 {
		if err := g.settle(ctx, bookingID, ""); err != nil {
			return nil, err
		}
		return &PaymentHandle{}, nil
	}

	session, err := g.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		BookingID:   booking.ID,
		AmountCents: amount,
		Currency:    g.currency,
		Description: fmt.Sprintf("Lesson with %s, %d min", tutor.FullName, booking.DurationMinutes),
	})
	if err != nil {
		metrics.PaymentProviderErrors.WithLabelValues("create_session").Inc()
		g.logger.Error("Failed to create checkout session",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	if _, err := g.ledger.AttachPayment(ctx, bookingID, session.ID, amount); err != nil {
		return nil, err
	}

	g.logger.Info("Payment initiated",
		zap.String("booking_id", bookingID.String()),
		zap.String("session_id", session.ID),
		zap.Int64("amount_cents", amount),
	)

	return &PaymentHandle{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		AmountCents: amount,
	}, nil
}

// Reconcile сверяет оплату с провайдером. Идемпотентна, ErrPaymentProvider можно повторять.
func (g *PaymentGate) Reconcile(ctx context.Context, bookingID uuid.UUID) (model.PaymentStatus, error) {
	booking, err := g.ledger.Get(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("get booking: %w", err)
	}

	if booking.PaymentStatus == model.PaymentStatusPaid {
		// Догоняем подтверждение, если прошлый вызов прервался между оплатой и подтверждением
		if g.policy == ConfirmOnPayment && booking.Status == model.BookingStatusPending {
			if err := g.settle(ctx, bookingID, ""); err != nil {
				return "", err
			}
		}
		return model.PaymentStatusPaid, nil
	}

	if booking.PaymentSessionID == nil {
		return booking.PaymentStatus, nil
	}

	status, err := g.provider.GetSessionStatus(ctx, *booking.PaymentSessionID)
	if err != nil {
		metrics.PaymentProviderErrors.WithLabelValues("get_session").Inc()
		return "", fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	switch status {
	case ProviderStatusPaid:
		if err := g.settle(ctx, bookingID, ""); err != nil {
			return "", err
		}
		return model.PaymentStatusPaid, nil
	case ProviderStatusFailed:
		return g.markFailed(ctx, booking)
	default:
		return booking.PaymentStatus, nil
	}
}

func (g *PaymentGate) markFailed(ctx context.Context, booking *model.Booking) (model.PaymentStatus, error) {
	updated, err := g.ledger.MarkPaymentFailed(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return booking.PaymentStatus, nil
		}
		return "", err
	}
	return updated.PaymentStatus, nil
}

// releaseSession сверяет текущую сессию перед созданием новой. true, если она
// уже оплачена и оплата засчитана.
func (g *PaymentGate) releaseSession(ctx context.Context, booking *model.Booking) (bool, error) {
	sessionID := *booking.PaymentSessionID

	status, err := g.provider.GetSessionStatus(ctx, sessionID)
	if err != nil {
		metrics.PaymentProviderErrors.WithLabelValues("get_session").Inc()
		return false, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	switch status {
	case ProviderStatusPaid:
		if err := g.settle(ctx, booking.ID, ""); err != nil {
			return false, err
		}
		return true, nil
	case ProviderStatusUnpaid:
		if err := g.provider.ExpireSession(ctx, sessionID); err != nil {
			metrics.PaymentProviderErrors.WithLabelValues("expire_session").Inc()
			g.logger.Warn("Failed to expire previous checkout session",
				zap.String("booking_id", booking.ID.String()),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			return false, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
		}
		g.logger.Info("Previous checkout session expired",
			zap.String("booking_id", booking.ID.String()),
			zap.String("session_id", sessionID),
		)
	}
	return false, nil
}

// ReconcileSession сверка по уведомлению провайдера, путь вебхука. Сессия, которую
// уже заменила новая, находится через BookingID из метаданных.
func (g *PaymentGate) ReconcileSession(ctx context.Context, notice PaymentNotice) (model.PaymentStatus, error) {
	booking, err := g.ledger.GetByPaymentSession(ctx, notice.SessionID)
	if err == nil {
		if notice.Failed {
			return g.markFailed(ctx, booking)
		}
		return g.Reconcile(ctx, booking.ID)
	}
	if !errors.Is(err, ErrNotFound) || notice.BookingID == uuid.Nil {
		return "", fmt.Errorf("find booking by session: %w", err)
	}
	return g.reconcileReplaced(ctx, notice)
}

func (g *PaymentGate) reconcileReplaced(ctx context.Context, notice PaymentNotice) (model.PaymentStatus, error) {
	booking, err := g.ledger.Get(ctx, notice.BookingID)
	if err != nil {
		return "", fmt.Errorf("get booking: %w", err)
	}
	if booking.PaymentStatus == model.PaymentStatusPaid {
		return model.PaymentStatusPaid, nil
	}

	status, err := g.provider.GetSessionStatus(ctx, notice.SessionID)
	if err != nil {
		metrics.PaymentProviderErrors.WithLabelValues("get_session").Inc()
		return "", fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	// Неудача старой сессии не касается текущей
	if status != ProviderStatusPaid {
		return booking.PaymentStatus, nil
	}

	g.logger.Warn("Payment settled on a replaced checkout session",
		zap.String("booking_id", booking.ID.String()),
		zap.String("session_id", notice.SessionID),
	)
	if err := g.settle(ctx, booking.ID, notice.SessionID); err != nil {
		return "", err
	}
	return model.PaymentStatusPaid, nil
}

// ReconcilePending сверяет все ожидающие оплаты бронирования с сессией.
// Ошибки провайдера повторяются с экспоненциальной задержкой, остальные логируются.
func (g *PaymentGate) ReconcilePending(ctx context.Context) (int, error) {
	bookings, err := g.ledger.ListAwaitingPayment(ctx, g.ledger.now().UTC())
	if err != nil {
		return 0, err
	}

	paid := 0
	for _, b := range bookings {
		if b.PaymentSessionID == nil {
			continue
		}

		var status model.PaymentStatus
		backoff := retry.WithMaxRetries(g.retryMax, retry.NewExponential(g.retryBase))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var err error
			status, err = g.Reconcile(ctx, b.ID)
			if errors.Is(err, ErrPaymentProvider) {
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return paid, ctx.Err()
			}
			g.logger.Error("Failed to reconcile payment",
				zap.String("booking_id", b.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if status == model.PaymentStatusPaid {
			paid++
		}
	}
	return paid, nil
}

// settle отмечает оплату и, если так настроено, подтверждает бронирование.
// Пустой sessionID оставляет текущую сессию.
func (g *PaymentGate) settle(ctx context.Context, bookingID uuid.UUID, sessionID string) error {
	booking, err := g.ledger.MarkSessionPaid(ctx, bookingID, sessionID)
	if err != nil {
		return err
	}

	if g.policy != ConfirmOnPayment || booking.Status != model.BookingStatusPending {
		return nil
	}

	if _, err := g.ledger.Confirm(ctx, bookingID, ""); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			g.logger.Warn("Paid booking is no longer pending, not confirming",
				zap.String("booking_id", bookingID.String()),
			)
			return nil
		}
		return err
	}
	return nil
}
