// Package memory репозитории в памяти процесса для STORAGE=memory и тестов.
// Все репозитории безопасны для конкурентного использования.
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

type AvailabilityRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]*model.AvailabilityRule
}

func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{rules: make(map[uuid.UUID]*model.AvailabilityRule)}
}

func (r *AvailabilityRepository) Create(_ context.Context, rule *model.AvailabilityRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.Active && r.hasActiveTwin(rule) {
		return service.ErrDuplicate
	}
	c := *rule
	r.rules[rule.ID] = &c
	return nil
}

func (r *AvailabilityRepository) GetByID(_ context.Context, id uuid.UUID) (*model.AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	c := *rule
	return &c, nil
}

func (r *AvailabilityRepository) SetActive(_ context.Context, id uuid.UUID, active bool) (*model.AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	if rule.Active != active {
		if active && r.hasActiveTwin(rule) {
			return nil, service.ErrDuplicate
		}
		rule.Active = active
		rule.UpdatedAt = time.Now().UTC()
	}
	c := *rule
	return &c, nil
}

func (r *AvailabilityRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return service.ErrNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *AvailabilityRepository) ListByTutor(_ context.Context, tutorID uuid.UUID, activeOnly bool) ([]*model.AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []*model.AvailabilityRule
	for _, rule := range r.rules {
		if rule.TutorID != tutorID || (activeOnly && !rule.Active) {
			continue
		}
		c := *rule
		rules = append(rules, &c)
	}

	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.EndTime != b.EndTime {
			return a.EndTime < b.EndTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return rules, nil
}

func (r *AvailabilityRepository) hasActiveTwin(rule *model.AvailabilityRule) bool {
	for _, other := range r.rules {
		if other.ID != rule.ID && other.Active && other.SameWindow(rule) {
			return true
		}
	}
	return false
}
