package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AvailabilityService struct {
	ruleRepo AvailabilityRepository
	cache    SlotCache
	logger   *zap.Logger
	now      func() time.Time
}

func NewAvailabilityService(ruleRepo AvailabilityRepository, cache SlotCache, logger *zap.Logger) *AvailabilityService {
	if cache == nil {
		cache = noopCache{}
	}
	return &AvailabilityService{
		ruleRepo: ruleRepo,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// AddRule добавляет еженедельное окно доступности преподавателя
func (s *AvailabilityService) AddRule(ctx context.Context, tutorID uuid.UUID, dayOfWeek int, start, end model.TimeOfDay) (*model.AvailabilityRule, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return nil, fmt.Errorf("day of week %d: %w", dayOfWeek, ErrInvalidRange)
	}
	if start < 0 || end > model.MinutesPerDay || start >= end {
		return nil, fmt.Errorf("window %s-%s: %w", start, end, ErrInvalidRange)
	}

	now := s.now().UTC()
	rule := &model.AvailabilityRule{
		ID:        uuid.New(),
		TutorID:   tutorID,
		DayOfWeek: dayOfWeek,
		StartTime: start,
		EndTime:   end,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create availability rule: %w", err)
	}
	s.cache.InvalidateTutor(ctx, tutorID)

	s.logger.Info("Availability rule added",
		zap.String("rule_id", rule.ID.String()),
		zap.String("tutor_id", tutorID.String()),
		zap.Int("day_of_week", dayOfWeek),
		zap.Stringer("start", start),
		zap.Stringer("end", end),
	)

	return rule, nil
}

// SetActive включает или выключает правило. Повторный вызов с тем же значением ничего не меняет.
func (s *AvailabilityService) SetActive(ctx context.Context, ruleID uuid.UUID, active bool) (*model.AvailabilityRule, error) {
	rule, err := s.ruleRepo.SetActive(ctx, ruleID, active)
	if err != nil {
		return nil, fmt.Errorf("set rule active: %w", err)
	}
	s.cache.InvalidateTutor(ctx, rule.TutorID)

	s.logger.Info("Availability rule toggled",
		zap.String("rule_id", ruleID.String()),
		zap.Bool("active", active),
	)

	return rule, nil
}

// Remove удаляет правило. Существующие бронирования не затрагиваются.
func (s *AvailabilityService) Remove(ctx context.Context, ruleID uuid.UUID) error {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("get availability rule: %w", err)
	}

	if err := s.ruleRepo.Delete(ctx, ruleID); err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	s.cache.InvalidateTutor(ctx, rule.TutorID)

	s.logger.Info("Availability rule removed", zap.String("rule_id", ruleID.String()))
	return nil
}

// Get возвращает правило по ID
func (s *AvailabilityService) Get(ctx context.Context, ruleID uuid.UUID) (*model.AvailabilityRule, error) {
	return s.ruleRepo.GetByID(ctx, ruleID)
}

// ListActive возвращает активные правила, упорядоченные по (день, начало)
func (s *AvailabilityService) ListActive(ctx context.Context, tutorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	return s.ruleRepo.ListByTutor(ctx, tutorID, true)
}

// ListRules возвращает все правила преподавателя, включая выключенные
func (s *AvailabilityService) ListRules(ctx context.Context, tutorID uuid.UUID) ([]*model.AvailabilityRule, error) {
	return s.ruleRepo.ListByTutor(ctx, tutorID, false)
}
