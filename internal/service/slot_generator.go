package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// SlotGenerator строит слоты на дату из правил доступности и текущих бронирований.
type SlotGenerator struct {
	ruleRepo    AvailabilityRepository
	bookingRepo BookingRepository
	profileRepo ProfileRepository
	cache       SlotCache
	granularity int
	logger      *zap.Logger
	now         func() time.Time
}

func NewSlotGenerator(
	ruleRepo AvailabilityRepository,
	bookingRepo BookingRepository,
	profileRepo ProfileRepository,
	cache SlotCache,
	granularityMinutes int,
	logger *zap.Logger,
) *SlotGenerator {
	if cache == nil {
		cache = noopCache{}
	}
	return &SlotGenerator{
		ruleRepo:    ruleRepo,
		bookingRepo: bookingRepo,
		profileRepo: profileRepo,
		cache:       cache,
		granularity: granularityMinutes,
		logger:      logger,
		now:         time.Now,
	}
}

// Granularity длина слота в минутах
func (g *SlotGenerator) Granularity() int {
	return g.granularity
}

// Generate возвращает все будущие слоты на дату с отметкой доступности,
// отсортированные по времени начала. Используется год, месяц и день date.
func (g *SlotGenerator) Generate(ctx context.Context, tutorID uuid.UUID, date time.Time) ([]model.Slot, error) {
	started := time.Now()
	defer func() {
		metrics.SlotGenerationSeconds.Observe(time.Since(started).Seconds())
	}()

	candidates, err := g.candidates(ctx, tutorID, date)
	if err != nil {
		return nil, err
	}

	now := g.now()
	slots := make([]model.Slot, 0, len(candidates))
	for _, c := range candidates {
		if !c.StartAt.After(now) {
			continue
		}
		slots = append(slots, c)
	}
	if len(slots) == 0 {
		return slots, nil
	}

	from, to := slots[0].StartAt, slots[0].EndAt()
	for _, s := range slots[1:] {
		if s.EndAt().After(to) {
			to = s.EndAt()
		}
	}

	holding, err := g.bookingRepo.ListHolding(ctx, tutorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tutor bookings: %w", err)
	}

	for i := range slots {
		slots[i].Available = true
		for _, b := range holding {
			if b.Overlaps(slots[i].StartAt, slots[i].EndAt()) {
				slots[i].Available = false
				break
			}
		}
	}

	return slots, nil
}

// Available возвращает только свободные слоты на дату
func (g *SlotGenerator) Available(ctx context.Context, tutorID uuid.UUID, date time.Time) ([]model.Slot, error) {
	slots, err := g.Generate(ctx, tutorID, date)
	if err != nil {
		return nil, err
	}

	free := slots[:0]
	for _, s := range slots {
		if s.Available {
			free = append(free, s)
		}
	}
	return free, nil
}

// candidates строит слоты из правил без учёта текущего времени и бронирований.
func (g *SlotGenerator) candidates(ctx context.Context, tutorID uuid.UUID, date time.Time) ([]model.Slot, error) {
	key := date.Format(dateLayout)
	cached, version, ok := g.cache.Get(ctx, tutorID, key)
	if ok {
		metrics.SlotCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SlotCacheLookups.WithLabelValues("miss").Inc()

	loc, err := g.tutorLocation(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	rules, err := g.ruleRepo.ListByTutor(ctx, tutorID, true)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}

	year, month, day := date.Date()
	weekday := int(time.Date(year, month, day, 12, 0, 0, 0, loc).Weekday())

	var slots []model.Slot
	for _, rule := range rules {
		if rule.DayOfWeek != weekday {
			continue
		}
		for t := int(rule.StartTime); t+g.granularity <= int(rule.EndTime); t += g.granularity {
			slots = append(slots, model.Slot{
				TutorID:         tutorID,
				StartAt:         model.TimeOfDay(t).On(year, month, day, loc).UTC(),
				DurationMinutes: g.granularity,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})

	g.cache.Set(ctx, tutorID, version, key, slots)
	return slots, nil
}

func (g *SlotGenerator) tutorLocation(ctx context.Context, tutorID uuid.UUID) (*time.Location, error) {
	profile, err := g.profileRepo.Get(ctx, tutorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.UTC, nil
		}
		return nil, fmt.Errorf("get tutor profile: %w", err)
	}
	return profile.Location(), nil
}

// covered проверяет, что окно бронирования целиком лежит в одном активном правиле.
func (g *SlotGenerator) covered(ctx context.Context, tutorID uuid.UUID, start time.Time, durationMinutes int) (bool, error) {
	loc, err := g.tutorLocation(ctx, tutorID)
	if err != nil {
		return false, err
	}

	rules, err := g.ruleRepo.ListByTutor(ctx, tutorID, true)
	if err != nil {
		return false, fmt.Errorf("list availability rules: %w", err)
	}

	local := start.In(loc)
	from := local.Hour()*60 + local.Minute()
	to := from + durationMinutes
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false, nil
	}

	for _, rule := range rules {
		if rule.DayOfWeek == int(local.Weekday()) && rule.Covers(from, to) {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate сбрасывает кэш кандидатов преподавателя, например после смены часового пояса.
func (g *SlotGenerator) Invalidate(ctx context.Context, tutorID uuid.UUID) {
	g.cache.InvalidateTutor(ctx, tutorID)
}

// SetClock подменяет источник текущего времени
func (g *SlotGenerator) SetClock(now func() time.Time) {
	g.now = now
}
