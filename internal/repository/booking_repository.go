package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, student_id, tutor_id, center_id, scheduled_at, duration_minutes, notes,
	status, payment_status, amount_paid_cents, payment_session_id, meeting_link, created_at, updated_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новое бронирование. Под advisory-блокировкой преподавателя проверяется
// пересечение с pending/confirmed бронированиями; exclusion constraint страхует вставку.
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, booking.TutorID.String()); err != nil {
			return fmt.Errorf("lock tutor timeline: %w", err)
		}

		var taken bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE tutor_id = $1
				  AND status IN ('pending', 'confirmed')
				  AND scheduled_at < $3
				  AND ends_at > $2
			)`,
			booking.TutorID, booking.ScheduledAt, booking.EndsAt(),
		).Scan(&taken)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if taken {
			return service.ErrSlotUnavailable
		}

		query := `
			INSERT INTO bookings (id, student_id, tutor_id, center_id, scheduled_at, ends_at, duration_minutes, notes,
				status, payment_status, amount_paid_cents, payment_session_id, meeting_link, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err = tx.Exec(ctx, query,
			booking.ID,
			booking.StudentID,
			booking.TutorID,
			booking.CenterID,
			booking.ScheduledAt,
			booking.EndsAt(),
			booking.DurationMinutes,
			booking.Notes,
			booking.Status,
			booking.PaymentStatus,
			booking.AmountPaidCents,
			booking.PaymentSessionID,
			booking.MeetingLink,
			booking.CreatedAt,
			booking.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", base.MapError(err))
		}
		return nil
	})
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get booking by id: %w", base.MapError(err))
	}
	return booking, nil
}

// GetByPaymentSession получает бронирование по ID платёжной сессии
func (r *BookingRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_session_id = $1`

	booking, err := scanBooking(r.Pool().QueryRow(ctx, query, sessionID))
	if err != nil {
		return nil, fmt.Errorf("get booking by payment session: %w", base.MapError(err))
	}
	return booking, nil
}

// Update читает строку с FOR UPDATE, применяет mutate и сохраняет результат в той же транзакции
func (r *BookingRepository) Update(ctx context.Context, id uuid.UUID, mutate service.BookingMutation) (*model.Booking, error) {
	var updated *model.Booking

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
		booking, err := scanBooking(tx.QueryRow(ctx, query, id))
		if err != nil {
			return fmt.Errorf("lock booking: %w", base.MapError(err))
		}

		if err := mutate(booking); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET status = $2, payment_status = $3, amount_paid_cents = $4,
			    payment_session_id = $5, meeting_link = $6, notes = $7, updated_at = $8
			WHERE id = $1`,
			booking.ID,
			booking.Status,
			booking.PaymentStatus,
			booking.AmountPaidCents,
			booking.PaymentSessionID,
			booking.MeetingLink,
			booking.Notes,
			booking.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update booking: %w", base.MapError(err))
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListByTutor бронирования преподавателя в диапазоне по возрастанию времени
func (r *BookingRepository) ListByTutor(ctx context.Context, tutorID uuid.UUID, dr *model.DateRange) ([]*model.Booking, error) {
	from, to := rangeBounds(dr)
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tutor_id = $1
		  AND ($2::timestamptz IS NULL OR scheduled_at >= $2)
		  AND ($3::timestamptz IS NULL OR scheduled_at < $3)
		ORDER BY scheduled_at ASC
	`
	return r.list(ctx, "list bookings by tutor", query, tutorID, from, to)
}

// ListByStudent бронирования студента в диапазоне по возрастанию времени
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, dr *model.DateRange) ([]*model.Booking, error) {
	from, to := rangeBounds(dr)
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1
		  AND ($2::timestamptz IS NULL OR scheduled_at >= $2)
		  AND ($3::timestamptz IS NULL OR scheduled_at < $3)
		ORDER BY scheduled_at ASC
	`
	return r.list(ctx, "list bookings by student", query, studentID, from, to)
}

// ListHolding pending/confirmed бронирования, пересекающие [from, to)
func (r *BookingRepository) ListHolding(ctx context.Context, tutorID uuid.UUID, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tutor_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND scheduled_at < $3
		  AND ends_at > $2
		ORDER BY scheduled_at ASC
	`
	return r.list(ctx, "list holding bookings", query, tutorID, from, to)
}

// ListConfirmedEndedBefore подтверждённые занятия, закончившиеся к моменту t
func (r *BookingRepository) ListConfirmedEndedBefore(ctx context.Context, t time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'confirmed' AND ends_at <= $1
		ORDER BY scheduled_at ASC
	`
	return r.list(ctx, "list elapsed bookings", query, t)
}

// ListAwaitingPayment pending бронирования без оплаты, созданные до createdBefore
func (r *BookingRepository) ListAwaitingPayment(ctx context.Context, createdBefore time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND payment_status <> 'paid' AND created_at < $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, "list bookings awaiting payment", query, createdBefore)
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.StudentID,
		&booking.TutorID,
		&booking.CenterID,
		&booking.ScheduledAt,
		&booking.DurationMinutes,
		&booking.Notes,
		&booking.Status,
		&booking.PaymentStatus,
		&booking.AmountPaidCents,
		&booking.PaymentSessionID,
		&booking.MeetingLink,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.ScheduledAt = booking.ScheduledAt.UTC()
	booking.CreatedAt = booking.CreatedAt.UTC()
	booking.UpdatedAt = booking.UpdatedAt.UTC()
	return &booking, nil
}

func rangeBounds(dr *model.DateRange) (from, to *time.Time) {
	if dr == nil {
		return nil, nil
	}
	if !dr.From.IsZero() {
		from = &dr.From
	}
	if !dr.To.IsZero() {
		to = &dr.To
	}
	return from, to
}
