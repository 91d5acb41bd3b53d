package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "11:00")
	studentID := uuid.New()

	b, err := f.ledger.Create(ctx, service.CreateBookingInput{
		StudentID:       studentID,
		TutorID:         f.tutorID,
		ScheduledAt:     at(9, 0),
		DurationMinutes: 60,
		Notes:           "algebra",
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Equal(t, model.PaymentStatusPending, b.PaymentStatus)
	assert.Nil(t, b.MeetingLink)
	assert.Equal(t, at(10, 0), b.EndsAt())

	stored, err := f.ledger.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, studentID, stored.StudentID)
	assert.Equal(t, "algebra", stored.Notes)

	assert.Equal(t, []model.EventType{model.EventBookingCreated}, f.events.types())
}

func TestCreateBookingValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	tests := []struct {
		name     string
		at       time.Time
		duration int
		wantErr  error
	}{
		{name: "zero duration", at: at(9, 0), duration: 0, wantErr: service.ErrInvalidDuration},
		{name: "negative duration", at: at(9, 0), duration: -30, wantErr: service.ErrInvalidDuration},
		{name: "in the past", at: monday.Add(-48 * time.Hour), duration: 30, wantErr: service.ErrInvalidTime},
		{name: "exactly now", at: f.clock.Now(), duration: 30, wantErr: service.ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(ctx, service.CreateBookingInput{
				StudentID:       uuid.New(),
				TutorID:         f.tutorID,
				ScheduledAt:     tt.at,
				DurationMinutes: tt.duration,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.events.types())
}

func TestCreateBookingOverlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.book(t, at(10, 0), 60)

	tests := []struct {
		name     string
		at       time.Time
		duration int
		wantErr  error
	}{
		{name: "same window", at: at(10, 0), duration: 60, wantErr: service.ErrSlotUnavailable},
		{name: "starts inside", at: at(10, 30), duration: 60, wantErr: service.ErrSlotUnavailable},
		{name: "ends inside", at: at(9, 30), duration: 60, wantErr: service.ErrSlotUnavailable},
		{name: "covers", at: at(9, 0), duration: 180, wantErr: service.ErrSlotUnavailable},
		{name: "adjacent before", at: at(9, 0), duration: 60},
		{name: "adjacent after", at: at(11, 0), duration: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(ctx, service.CreateBookingInput{
				StudentID:       uuid.New(),
				TutorID:         f.tutorID,
				ScheduledAt:     tt.at,
				DurationMinutes: tt.duration,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	// Другой преподаватель в то же время свободен
	_, err := f.ledger.Create(ctx, service.CreateBookingInput{
		StudentID:       uuid.New(),
		TutorID:         uuid.New(),
		ScheduledAt:     at(10, 0),
		DurationMinutes: 60,
	})
	assert.NoError(t, err)
}

func TestCreateBookingOutsideAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "11:00")

	tests := []struct {
		name     string
		at       time.Time
		duration int
	}{
		{name: "before window", at: at(8, 30), duration: 30},
		{name: "runs past window", at: at(10, 30), duration: 60},
		{name: "other day", at: at(9, 0).Add(24 * time.Hour), duration: 30},
		{name: "off the minute", at: at(9, 0).Add(15 * time.Second), duration: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(ctx, service.CreateBookingInput{
				StudentID:       uuid.New(),
				TutorID:         f.tutorID,
				ScheduledAt:     tt.at,
				DurationMinutes: tt.duration,
			})
			assert.ErrorIs(t, err, service.ErrOutsideAvailability)
			assert.ErrorIs(t, err, service.ErrSlotUnavailable)
		})
	}

	// Любая длительность внутри окна, не только кратная шагу слотов
	_, err := f.ledger.Create(ctx, service.CreateBookingInput{
		StudentID:       uuid.New(),
		TutorID:         f.tutorID,
		ScheduledAt:     at(9, 15),
		DurationMinutes: 45,
	})
	assert.NoError(t, err)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Create(ctx, service.CreateBookingInput{
				StudentID:       uuid.New(),
				TutorID:         f.tutorID,
				ScheduledAt:     at(14, 0),
				DurationMinutes: 60,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, service.ErrSlotUnavailable):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	holding, err := f.bookings.ListHolding(ctx, f.tutorID, at(14, 0), at(15, 0))
	require.NoError(t, err)
	assert.Len(t, holding, 1)
}

func TestConfirmRequiresPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.Confirm(ctx, b.ID, "")
	assert.ErrorIs(t, err, service.ErrPaymentRequired)

	stored, err := f.ledger.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, stored.Status)
	assert.Nil(t, stored.MeetingLink)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	first, err := f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, first.PaymentStatus)

	f.clock.Set(f.clock.Now().Add(time.Minute))
	second, err := f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, second.PaymentStatus)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	assert.Equal(t, []model.EventType{model.EventBookingCreated}, f.events.types())
}

func TestConfirmPaidBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)

	confirmed, err := f.ledger.Confirm(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.MeetingLink)
	assert.Equal(t, "https://meet.example.com/"+b.ID.String(), *confirmed.MeetingLink)

	_, err = f.ledger.Confirm(ctx, b.ID, "")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	assert.Equal(t, []model.EventType{
		model.EventBookingCreated,
		model.EventBookingConfirmed,
	}, f.events.types())
}

func TestConfirmKeepsGivenLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)

	confirmed, err := f.ledger.Confirm(ctx, b.ID, "https://video.example.org/room/42")
	require.NoError(t, err)
	assert.Equal(t, "https://video.example.org/room/42", *confirmed.MeetingLink)
}

func TestCancelledBookingIsNeverConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.Cancel(ctx, b.ID)
	require.NoError(t, err)

	// Оплата может прийти после отмены
	paid, err := f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, paid.Status)

	_, err = f.ledger.Confirm(ctx, b.ID, "")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.ledger.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestConfirmUnpaidRequiresPaymentInAnyStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	rejected := f.book(t, at(9, 0), 30)
	_, err := f.ledger.Reject(ctx, rejected.ID)
	require.NoError(t, err)

	failed := f.book(t, at(10, 0), 30)
	_, err = f.ledger.MarkPaymentFailed(ctx, failed.ID)
	require.NoError(t, err)
	_, err = f.ledger.Cancel(ctx, failed.ID)
	require.NoError(t, err)

	for _, id := range []uuid.UUID{rejected.ID, failed.ID} {
		_, err := f.ledger.Confirm(ctx, id, "")
		assert.ErrorIs(t, err, service.ErrPaymentRequired)

		stored, err := f.ledger.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, stored.Status)
		assert.Nil(t, stored.MeetingLink)
	}
}

func TestRejectFreesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 60)

	rejected, err := f.ledger.Reject(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, rejected.Status)

	again := f.book(t, at(9, 0), 60)
	assert.NotEqual(t, b.ID, again.ID)

	assert.Equal(t, []model.EventType{
		model.EventBookingCreated,
		model.EventBookingCancelled,
		model.EventBookingCreated,
	}, f.events.types())
}

func TestCancelConfirmedKeepsLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.ledger.Confirm(ctx, b.ID, "")
	require.NoError(t, err)

	cancelled, err := f.ledger.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.MeetingLink)
}

func TestCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.Complete(ctx, b.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.ledger.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.ledger.Confirm(ctx, b.ID, "")
	require.NoError(t, err)

	done, err := f.ledger.Complete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, done.Status)

	_, err = f.ledger.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	// Завершённое занятие больше не держит окно
	f.book(t, at(9, 0), 30)
}

func TestCompleteElapsed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	early := f.book(t, at(9, 0), 60)
	late := f.book(t, at(15, 0), 60)
	pending := f.book(t, at(8, 0), 30)
	for _, b := range []*model.Booking{early, late} {
		_, err := f.ledger.MarkPaid(ctx, b.ID)
		require.NoError(t, err)
		_, err = f.ledger.Confirm(ctx, b.ID, "")
		require.NoError(t, err)
	}

	f.clock.Set(at(10, 0))
	n, err := f.ledger.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.ledger.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, got.Status)

	got, err = f.ledger.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)

	got, err = f.ledger.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, got.Status)
}

func TestExpireUnpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	unpaid := f.book(t, at(9, 0), 30)
	paid := f.book(t, at(10, 0), 30)
	_, err := f.ledger.MarkPaid(ctx, paid.ID)
	require.NoError(t, err)

	n, err := f.ledger.ExpireUnpaid(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(f.clock.Now().Add(20 * time.Minute))
	n, err = f.ledger.ExpireUnpaid(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(f.clock.Now().Add(20 * time.Minute))
	n, err = f.ledger.ExpireUnpaid(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.ledger.Get(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)

	got, err = f.ledger.Get(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, got.Status)
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	studentID := uuid.New()

	for _, hh := range []int{15, 9, 12} {
		_, err := f.ledger.Create(ctx, service.CreateBookingInput{
			StudentID:       studentID,
			TutorID:         f.tutorID,
			ScheduledAt:     at(hh, 0),
			DurationMinutes: 30,
		})
		require.NoError(t, err)
	}

	all, err := f.ledger.ListForTutor(ctx, f.tutorID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, at(9, 0), all[0].ScheduledAt)
	assert.Equal(t, at(12, 0), all[1].ScheduledAt)
	assert.Equal(t, at(15, 0), all[2].ScheduledAt)

	window, err := f.ledger.ListForStudent(ctx, studentID, &model.DateRange{From: at(10, 0), To: at(15, 0)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, at(12, 0), window[0].ScheduledAt)

	none, err := f.ledger.ListForStudent(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnknownBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	id := uuid.New()

	_, err := f.ledger.Get(ctx, id)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = f.ledger.Confirm(ctx, id, "")
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = f.ledger.Cancel(ctx, id)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = f.ledger.MarkPaid(ctx, id)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
