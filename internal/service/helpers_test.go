package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Понедельник, 4 марта 2030.
var monday = time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []model.BookingEvent
}

func (r *recorder) Publish(_ context.Context, e model.BookingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixedLinks struct{}

func (fixedLinks) NewLink(b *model.Booking) string {
	return "https://meet.example.com/" + b.ID.String()
}

type fixture struct {
	rules    *memory.AvailabilityRepository
	bookings *memory.BookingRepository
	profiles *memory.ProfileRepository

	availability *service.AvailabilityService
	slots        *service.SlotGenerator
	ledger       *service.BookingLedger

	events  *recorder
	clock   *clock
	tutorID uuid.UUID
}

func newFixture(t *testing.T, enforceAvailability bool) *fixture {
	t.Helper()

	f := &fixture{
		rules:    memory.NewAvailabilityRepository(),
		bookings: memory.NewBookingRepository(),
		profiles: memory.NewProfileRepository(),
		events:   &recorder{},
		clock:    &clock{now: monday.Add(-24 * time.Hour)},
		tutorID:  uuid.New(),
	}

	logger := zap.NewNop()
	f.availability = service.NewAvailabilityService(f.rules, nil, logger)
	f.slots = service.NewSlotGenerator(f.rules, f.bookings, f.profiles, nil, 30, logger)
	f.slots.SetClock(f.clock.Now)
	f.ledger = service.NewBookingLedger(f.bookings, f.slots, fixedLinks{}, f.events, enforceAvailability, logger)
	f.ledger.SetClock(f.clock.Now)

	require.NoError(t, f.profiles.Upsert(context.Background(), &model.Profile{
		UserID:          f.tutorID,
		FullName:        "Nadia Haddad",
		HourlyRateCents: 2500,
		Timezone:        "UTC",
	}))
	return f
}

func (f *fixture) addRule(t *testing.T, day int, start, end string) *model.AvailabilityRule {
	t.Helper()
	rule, err := f.availability.AddRule(context.Background(), f.tutorID, day, model.MustTimeOfDay(start), model.MustTimeOfDay(end))
	require.NoError(t, err)
	return rule
}

func (f *fixture) book(t *testing.T, at time.Time, minutes int) *model.Booking {
	t.Helper()
	b, err := f.ledger.Create(context.Background(), service.CreateBookingInput{
		StudentID:       uuid.New(),
		TutorID:         f.tutorID,
		ScheduledAt:     at,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return b
}

func at(hh, mm int) time.Time {
	return monday.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func starts(slots []model.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartAt.Format("15:04"))
	}
	return out
}
