package app

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	now := time.Date(2030, time.March, 3, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	rules := memory.NewAvailabilityRepository()
	bookings := memory.NewBookingRepository()
	profiles := memory.NewProfileRepository()

	slots := service.NewSlotGenerator(rules, bookings, profiles, nil, 30, logger)
	slots.SetClock(clock)
	ledger := service.NewBookingLedger(bookings, slots, service.NewRoomLinks("https://meet.example.com"), nil, false, logger)
	ledger.SetClock(clock)

	create := func(at time.Time) *model.Booking {
		b, err := ledger.Create(ctx, service.CreateBookingInput{
			StudentID:       uuid.New(),
			TutorID:         uuid.New(),
			ScheduledAt:     at,
			DurationMinutes: 60,
		})
		require.NoError(t, err)
		return b
	}

	lesson := create(now.Add(2 * time.Hour))
	_, err := ledger.MarkPaid(ctx, lesson.ID)
	require.NoError(t, err)
	_, err = ledger.Confirm(ctx, lesson.ID, "")
	require.NoError(t, err)

	unpaid := create(now.Add(6 * time.Hour))

	now = now.Add(4 * time.Hour)
	s := NewScheduler(ledger, nil, time.Minute, 2*time.Hour, logger)
	s.Sweep(ctx)

	got, err := ledger.Get(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, got.Status)

	got, err = ledger.Get(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)

	// Повторный проход ничего не меняет
	s.Sweep(ctx)
	got, err = ledger.Get(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, got.Status)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	logger := zap.NewNop()
	bookings := memory.NewBookingRepository()
	slots := service.NewSlotGenerator(memory.NewAvailabilityRepository(), bookings, memory.NewProfileRepository(), nil, 30, logger)
	ledger := service.NewBookingLedger(bookings, slots, service.NewRoomLinks("https://meet.example.com"), nil, false, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewScheduler(ledger, nil, 10*time.Millisecond, 0, logger).Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
