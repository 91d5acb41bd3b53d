package service_test

import (
	"context"
	"fmt"
	"sync"
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

// versionedCache повторяет схему ключей Redis-кэша: версия преподавателя входит в ключ.
type versionedCache struct {
	mu       sync.Mutex
	versions map[uuid.UUID]int64
	entries  map[string][]model.Slot
}

func newVersionedCache() *versionedCache {
	return &versionedCache{
		versions: make(map[uuid.UUID]int64),
		entries:  make(map[string][]model.Slot),
	}
}

func cacheKey(tutorID uuid.UUID, version int64, date string) string {
	return fmt.Sprintf("%s:%d:%s", tutorID, version, date)
}

func (c *versionedCache) Get(_ context.Context, tutorID uuid.UUID, date string) ([]model.Slot, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.versions[tutorID]
	slots, ok := c.entries[cacheKey(tutorID, v, date)]
	return slots, v, ok
}

func (c *versionedCache) Set(_ context.Context, tutorID uuid.UUID, version int64, date string, slots []model.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(tutorID, version, date)] = slots
}

func (c *versionedCache) InvalidateTutor(_ context.Context, tutorID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[tutorID]++
}

// hookedRules вызывает afterList один раз, после того как правила уже прочитаны.
type hookedRules struct {
	*memory.AvailabilityRepository
	afterList func()
}

func (r *hookedRules) ListByTutor(ctx context.Context, tutorID uuid.UUID, activeOnly bool) ([]*model.AvailabilityRule, error) {
	rules, err := r.AvailabilityRepository.ListByTutor(ctx, tutorID, activeOnly)
	if hook := r.afterList; hook != nil {
		r.afterList = nil
		hook()
	}
	return rules, err
}

func TestGenerateSlotsFromRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "11:00")

	slots, err := f.slots.Available(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, starts(slots))
	for _, s := range slots {
		assert.Equal(t, 30, s.DurationMinutes)
		assert.True(t, s.Available)
		assert.Equal(t, f.tutorID, s.TutorID)
	}
}

func TestGenerateSlotsPartialTail(t *testing.T) {
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "10:15")

	slots, err := f.slots.Generate(context.Background(), f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, starts(slots))
}

func TestGenerateSlotsWithoutRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	slots, err := f.slots.Available(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// Правило на другой день недели
	f.addRule(t, 2, "09:00", "11:00")
	slots, err = f.slots.Available(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBookedSlotIsExcluded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "11:00")
	f.book(t, at(9, 30), 30)

	free, err := f.slots.Available(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "10:30"}, starts(free))

	all, err := f.slots.Generate(ctx, f.tutorID, monday)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].Available)
	assert.False(t, all[1].Available)
}

func TestLongBookingBlocksSeveralSlots(t *testing.T) {
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "11:00")
	f.book(t, at(9, 15), 60)

	free, err := f.slots.Available(context.Background(), f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30"}, starts(free))
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "10:00")
	b := f.book(t, at(9, 0), 30)

	_, err := f.ledger.Cancel(ctx, b.ID)
	require.NoError(t, err)

	free, err := f.slots.Available(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, starts(free))
}

func TestPastSlotsAreDropped(t *testing.T) {
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "11:00")
	f.clock.Set(at(9, 30))

	slots, err := f.slots.Generate(context.Background(), f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30"}, starts(slots))

	f.clock.Set(at(12, 0))
	slots, err = f.slots.Generate(context.Background(), f.tutorID, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestInactiveRuleProducesNoSlots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	rule := f.addRule(t, 1, "09:00", "11:00")

	_, err := f.availability.SetActive(ctx, rule.ID, false)
	require.NoError(t, err)

	slots, err := f.slots.Generate(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestOverlappingRulesKeepDuplicates(t *testing.T) {
	f := newFixture(t, true)
	f.addRule(t, 1, "09:00", "10:00")
	f.addRule(t, 1, "09:30", "10:30")

	slots, err := f.slots.Generate(context.Background(), f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "09:30", "10:00"}, starts(slots))
}

func TestSlotsFollowTutorTimezone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.profiles.Upsert(ctx, &model.Profile{
		UserID:          f.tutorID,
		FullName:        "Nadia Haddad",
		HourlyRateCents: 2500,
		Timezone:        "Europe/Berlin",
	}))
	f.addRule(t, 1, "09:00", "10:00")

	slots, err := f.slots.Generate(ctx, f.tutorID, monday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC), slots[0].StartAt)
	assert.Equal(t, time.Date(2030, time.March, 4, 8, 30, 0, 0, time.UTC), slots[1].StartAt)
}

func TestGranularityFromConfiguration(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, 30, f.slots.Granularity())
}

func TestSlotCacheDropsCandidatesComputedBeforeInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	cache := newVersionedCache()
	rules := &hookedRules{AvailabilityRepository: f.rules}

	availability := service.NewAvailabilityService(f.rules, cache, zap.NewNop())
	slots := service.NewSlotGenerator(rules, f.bookings, f.profiles, cache, 30, zap.NewNop())
	slots.SetClock(f.clock.Now)

	rule, err := availability.AddRule(ctx, f.tutorID, 1, model.MustTimeOfDay("09:00"), model.MustTimeOfDay("10:00"))
	require.NoError(t, err)

	// Правило выключают между чтением правил и записью кандидатов в кэш
	rules.afterList = func() {
		_, err := availability.SetActive(ctx, rule.ID, false)
		require.NoError(t, err)
	}

	first, err := slots.Generate(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, starts(first))

	second, err := slots.Generate(ctx, f.tutorID, monday)
	require.NoError(t, err)
	assert.Empty(t, second)

	// После пересчёта кэш снова работает
	cached, _, ok := cache.Get(ctx, f.tutorID, monday.Format("2006-01-02"))
	require.True(t, ok)
	assert.Empty(t, cached)
}
