package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetActiveTouchesUpdatedAtOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	repo := NewAvailabilityRepository()
	created := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	rule := &model.AvailabilityRule{
		ID:        uuid.New(),
		TutorID:   uuid.New(),
		DayOfWeek: 1,
		StartTime: model.MustTimeOfDay("09:00"),
		EndTime:   model.MustTimeOfDay("11:00"),
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, repo.Create(ctx, rule))

	same, err := repo.SetActive(ctx, rule.ID, true)
	require.NoError(t, err)
	assert.Equal(t, created, same.UpdatedAt)

	off, err := repo.SetActive(ctx, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, off.Active)
	assert.True(t, off.UpdatedAt.After(created))

	stored, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, off.UpdatedAt, stored.UpdatedAt)

	_, err = repo.SetActive(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
