package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errUnchanged прерывает мутацию без записи, когда бронирование уже в нужном состоянии.
var errUnchanged = errors.New("booking unchanged")

type CreateBookingInput struct {
	StudentID       uuid.UUID
	TutorID         uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	CenterID        *uuid.UUID
	Notes           string
}

// BookingLedger единственный источник изменений статуса бронирований.
type BookingLedger struct {
	bookingRepo         BookingRepository
	slots               *SlotGenerator
	links               MeetingLinkGenerator
	publisher           EventPublisher
	enforceAvailability bool
	logger              *zap.Logger
	now                 func() time.Time
}

func NewBookingLedger(
	bookingRepo BookingRepository,
	slots *SlotGenerator,
	links MeetingLinkGenerator,
	publisher EventPublisher,
	enforceAvailability bool,
	logger *zap.Logger,
) *BookingLedger {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &BookingLedger{
		bookingRepo:         bookingRepo,
		slots:               slots,
		links:               links,
		publisher:           publisher,
		enforceAvailability: enforceAvailability,
		logger:              logger,
		now:                 time.Now,
	}
}

// Create бронирует окно для студента. Проверка пересечений и вставка атомарны.
func (l *BookingLedger) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if in.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	now := l.now().UTC()
	if !in.ScheduledAt.After(now) {
		return nil, ErrInvalidTime
	}

	if l.enforceAvailability {
		ok, err := l.slots.covered(ctx, in.TutorID, in.ScheduledAt, in.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("check availability: %w", err)
		}
		if !ok {
			metrics.BookingConflicts.Inc()
			return nil, ErrOutsideAvailability
		}
	}

	booking := &model.Booking{
		ID:              uuid.New(),
		StudentID:       in.StudentID,
		TutorID:         in.TutorID,
		CenterID:        in.CenterID,
		ScheduledAt:     in.ScheduledAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		Status:          model.BookingStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.bookingRepo.Create(ctx, booking); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			metrics.BookingConflicts.Inc()
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}
	metrics.BookingsCreated.Inc()

	l.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("student_id", booking.StudentID.String()),
		zap.String("tutor_id", booking.TutorID.String()),
		zap.Time("scheduled_at", booking.ScheduledAt),
		zap.Int("duration_minutes", booking.DurationMinutes),
	)

	l.publish(ctx, model.EventBookingCreated, booking)
	return booking, nil
}

// Get возвращает бронирование по ID
func (l *BookingLedger) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return l.bookingRepo.GetByID(ctx, id)
}

// GetByPaymentSession ищет бронирование по ID платёжной сессии
func (l *BookingLedger) GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	return l.bookingRepo.GetByPaymentSession(ctx, sessionID)
}

// ListForTutor бронирования преподавателя по возрастанию времени
func (l *BookingLedger) ListForTutor(ctx context.Context, tutorID uuid.UUID, r *model.DateRange) ([]*model.Booking, error) {
	return l.bookingRepo.ListByTutor(ctx, tutorID, r)
}

// ListForStudent бронирования студента по возрастанию времени
func (l *BookingLedger) ListForStudent(ctx context.Context, studentID uuid.UUID, r *model.DateRange) ([]*model.Booking, error) {
	return l.bookingRepo.ListByStudent(ctx, studentID, r)
}

// MarkPaid отмечает оплату. Повторный вызов ничего не пишет.
func (l *BookingLedger) MarkPaid(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return l.MarkSessionPaid(ctx, id, "")
}

// MarkSessionPaid отмечает оплату по конкретной сессии и делает её текущей.
// Нужна, когда оплачена сессия, которую уже заменила более новая.
func (l *BookingLedger) MarkSessionPaid(ctx context.Context, id uuid.UUID, sessionID string) (*model.Booking, error) {
	booking, changed, err := l.mutate(ctx, id, func(b *model.Booking, now time.Time) error {
		if b.PaymentStatus == model.PaymentStatusPaid {
			return errUnchanged
		}
		b.PaymentStatus = model.PaymentStatusPaid
		if sessionID != "" {
			b.PaymentSessionID = &sessionID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark booking paid: %w", err)
	}

	if changed {
		l.logger.Info("Booking paid", zap.String("booking_id", id.String()))
	}
	return booking, nil
}

// MarkPaymentFailed отмечает неуспешную оплату ожидающего бронирования
func (l *BookingLedger) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, changed, err := l.mutate(ctx, id, func(b *model.Booking, now time.Time) error {
		switch {
		case b.PaymentStatus == model.PaymentStatusFailed:
			return errUnchanged
		case b.PaymentStatus == model.PaymentStatusPaid || b.Status != model.BookingStatusPending:
			return ErrInvalidTransition
		}
		b.PaymentStatus = model.PaymentStatusFailed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark payment failed: %w", err)
	}

	if changed {
		l.logger.Warn("Booking payment failed", zap.String("booking_id", id.String()))
	}
	return booking, nil
}

// AttachPayment сохраняет платёжную сессию и сумму. Неуспешная оплата снова становится pending.
func (l *BookingLedger) AttachPayment(ctx context.Context, id uuid.UUID, sessionID string, amountCents int64) (*model.Booking, error) {
	booking, _, err := l.mutate(ctx, id, func(b *model.Booking, now time.Time) error {
		if b.Status != model.BookingStatusPending || b.PaymentStatus == model.PaymentStatusPaid {
			return ErrInvalidTransition
		}
		b.PaymentSessionID = &sessionID
		b.AmountPaidCents = amountCents
		b.PaymentStatus = model.PaymentStatusPending
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attach payment: %w", err)
	}
	return booking, nil
}

// Confirm переводит pending в confirmed. Без оплаты всегда ErrPaymentRequired,
// в каком бы статусе ни было бронирование; оплаченное, но не pending, не подтверждается.
func (l *BookingLedger) Confirm(ctx context.Context, id uuid.UUID, meetingLink string) (*model.Booking, error) {
	booking, _, err := l.mutate(ctx, id, func(b *model.Booking, now time.Time) error {
		if b.PaymentStatus != model.PaymentStatusPaid {
			return ErrPaymentRequired
		}
		if b.Status != model.BookingStatusPending {
			return ErrInvalidTransition
		}
		link := meetingLink
		if link == "" {
			link = l.links.NewLink(b)
		}
		b.Status = model.BookingStatusConfirmed
		b.MeetingLink = &link
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusConfirmed)).Inc()

	l.logger.Info("Booking confirmed",
		zap.String("booking_id", id.String()),
		zap.String("meeting_link", *booking.MeetingLink),
	)

	l.publish(ctx, model.EventBookingConfirmed, booking)
	return booking, nil
}

// Reject отклонение бронирования преподавателем
func (l *BookingLedger) Reject(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := l.cancel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reject booking: %w", err)
	}
	return booking, nil
}

// Cancel отмена бронирования любой стороной
func (l *BookingLedger) Cancel(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := l.cancel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return booking, nil
}

func (l *BookingLedger) cancel(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, _, err := l.mutate(ctx, id, func(b *model.Booking, now time.Time) error {
		if !b.Status.Holds() {
			return ErrInvalidTransition
		}
		b.Status = model.BookingStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusCancelled)).Inc()

	l.logger.Info("Booking cancelled", zap.String("booking_id", id.String()))

	l.publish(ctx, model.EventBookingCancelled, booking)
	return booking, nil
}

// Complete отмечает проведённое занятие
func (l *BookingLedger) Complete(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, _, err := l.mutate(ctx, id, func(b *model.Booking, now time.Time) error {
		if b.Status != model.BookingStatusConfirmed {
			return ErrInvalidTransition
		}
		b.Status = model.BookingStatusCompleted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete booking: %w", err)
	}
	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusCompleted)).Inc()

	l.logger.Info("Booking completed", zap.String("booking_id", id.String()))
	return booking, nil
}

// CompleteElapsed завершает подтверждённые занятия, которые уже закончились.
// Бронирования, изменённые параллельно, пропускаются.
func (l *BookingLedger) CompleteElapsed(ctx context.Context) (int, error) {
	ended, err := l.bookingRepo.ListConfirmedEndedBefore(ctx, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list elapsed bookings: %w", err)
	}

	count := 0
	for _, b := range ended {
		if _, err := l.Complete(ctx, b.ID); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// ExpireUnpaid отменяет неоплаченные pending бронирования старше ttl
func (l *BookingLedger) ExpireUnpaid(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	stale, err := l.bookingRepo.ListAwaitingPayment(ctx, l.now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("list unpaid bookings: %w", err)
	}

	count := 0
	for _, b := range stale {
		if _, err := l.Cancel(ctx, b.ID); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return count, err
		}
		l.logger.Info("Unpaid booking expired", zap.String("booking_id", b.ID.String()))
		count++
	}
	return count, nil
}

// mutate применяет изменение под блокировкой строки. changed=false, если fn вернула errUnchanged.
func (l *BookingLedger) mutate(ctx context.Context, id uuid.UUID, fn func(b *model.Booking, now time.Time) error) (*model.Booking, bool, error) {
	var current *model.Booking
	now := l.now().UTC()

	updated, err := l.bookingRepo.Update(ctx, id, func(b *model.Booking) error {
		current = b.Clone()
		if err := fn(b, now); err != nil {
			return err
		}
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnchanged) && current != nil {
			return current, false, nil
		}
		return nil, false, err
	}
	return updated, true, nil
}

func (l *BookingLedger) publish(ctx context.Context, eventType model.EventType, b *model.Booking) {
	l.publisher.Publish(ctx, model.BookingEvent{
		Type:       eventType,
		Booking:    *b.Clone(),
		OccurredAt: l.now().UTC(),
	})
}

// ListAwaitingPayment pending бронирования с незавершённой оплатой, созданные до createdBefore
func (l *BookingLedger) ListAwaitingPayment(ctx context.Context, createdBefore time.Time) ([]*model.Booking, error) {
	return l.bookingRepo.ListAwaitingPayment(ctx, createdBefore)
}

// SetClock подменяет источник текущего времени
func (l *BookingLedger) SetClock(now func() time.Time) {
	l.now = now
}
