package model

import (
	"time"

	"github.com/google/uuid"
)

// Slot кандидат на бронирование, вычисляется из правил доступности.
type Slot struct {
	TutorID         uuid.UUID `json:"tutor_id"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`
}

func (s Slot) EndAt() time.Time {
	return s.StartAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
