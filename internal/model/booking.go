package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает оплаты или подтверждения
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено, есть ссылка на встречу
	BookingStatusCompleted BookingStatus = "completed" // Занятие прошло
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено или отклонено
)

// Holds сообщает, занимает ли бронирование время преподавателя.
func (s BookingStatus) Holds() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type Booking struct {
	ID               uuid.UUID     `json:"id"`
	StudentID        uuid.UUID     `json:"student_id"`
	TutorID          uuid.UUID     `json:"tutor_id"`
	CenterID         *uuid.UUID    `json:"center_id,omitempty"` // Очное занятие в учебном центре
	ScheduledAt      time.Time     `json:"scheduled_at"`
	DurationMinutes  int           `json:"duration_minutes"`
	Notes            string        `json:"notes,omitempty"`
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	AmountPaidCents  int64         `json:"amount_paid_cents"`
	PaymentSessionID *string       `json:"payment_session_id,omitempty"`
	MeetingLink      *string       `json:"meeting_link,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// EndsAt возвращает время окончания занятия.
func (b *Booking) EndsAt() time.Time {
	return b.ScheduledAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Overlaps проверяет пересечение полуоткрытых интервалов [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.ScheduledAt.Before(end) && start.Before(b.EndsAt())
}

// Clone возвращает копию, не разделяющую указатели с оригиналом.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.CenterID != nil {
		id := *b.CenterID
		c.CenterID = &id
	}
	if b.PaymentSessionID != nil {
		s := *b.PaymentSessionID
		c.PaymentSessionID = &s
	}
	if b.MeetingLink != nil {
		s := *b.MeetingLink
		c.MeetingLink = &s
	}
	return &c
}

// DateRange полуоткрытый диапазон [From, To) по ScheduledAt. Нулевая граница не ограничивает.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
