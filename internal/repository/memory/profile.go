package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
)

type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]model.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[uuid.UUID]model.Profile)}
}

func (r *ProfileRepository) Upsert(_ context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.UpdatedAt = time.Now().UTC()
	r.profiles[p.UserID] = *p
	return nil
}

func (r *ProfileRepository) Get(_ context.Context, userID uuid.UUID) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &p, nil
}
