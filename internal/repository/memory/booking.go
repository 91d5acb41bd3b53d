package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
)

// BookingRepository хранит бронирования под одним мьютексом, поэтому проверка
// пересечений и вставка в Create выполняются одним шагом.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*model.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{bookings: make(map[uuid.UUID]*model.Booking)}
}

func (r *BookingRepository) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if b.TutorID == booking.TutorID && b.Status.Holds() && b.Overlaps(booking.ScheduledAt, booking.EndsAt()) {
			return service.ErrSlotUnavailable
		}
	}
	if booking.PaymentSessionID != nil && r.bySession(*booking.PaymentSessionID) != nil {
		return service.ErrDuplicate
	}

	r.bookings[booking.ID] = booking.Clone()
	return nil
}

func (r *BookingRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) GetByPaymentSession(_ context.Context, sessionID string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b := r.bySession(sessionID)
	if b == nil {
		return nil, service.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) Update(_ context.Context, id uuid.UUID, mutate service.BookingMutation) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[id]
	if !ok {
		return nil, service.ErrNotFound
	}

	working := stored.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	r.bookings[id] = working.Clone()
	return working, nil
}

func (r *BookingRepository) ListByTutor(_ context.Context, tutorID uuid.UUID, dr *model.DateRange) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.TutorID == tutorID && dr.Contains(b.ScheduledAt)
	}), nil
}

func (r *BookingRepository) ListByStudent(_ context.Context, studentID uuid.UUID, dr *model.DateRange) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.StudentID == studentID && dr.Contains(b.ScheduledAt)
	}), nil
}

func (r *BookingRepository) ListHolding(_ context.Context, tutorID uuid.UUID, from, to time.Time) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.TutorID == tutorID && b.Status.Holds() && b.Overlaps(from, to)
	}), nil
}

func (r *BookingRepository) ListConfirmedEndedBefore(_ context.Context, t time.Time) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusConfirmed && !b.EndsAt().After(t)
	}), nil
}

func (r *BookingRepository) ListAwaitingPayment(_ context.Context, createdBefore time.Time) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending &&
			b.PaymentStatus != model.PaymentStatusPaid &&
			b.CreatedAt.Before(createdBefore)
	}), nil
}

func (r *BookingRepository) filter(keep func(b *model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func (r *BookingRepository) bySession(sessionID string) *model.Booking {
	for _, b := range r.bookings {
		if b.PaymentSessionID != nil && *b.PaymentSessionID == sessionID {
			return b
		}
	}
	return nil
}
