package model

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityRule представляет еженедельное окно доступности преподавателя.
// Время указано в часовом поясе преподавателя.
type AvailabilityRule struct {
	ID        uuid.UUID `json:"id"`
	TutorID   uuid.UUID `json:"tutor_id"`
	DayOfWeek int       `json:"day_of_week"` // 0 = воскресенье, 6 = суббота
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SameWindow сообщает, совпадают ли день и границы окна.
func (r *AvailabilityRule) SameWindow(other *AvailabilityRule) bool {
	return r.TutorID == other.TutorID &&
		r.DayOfWeek == other.DayOfWeek &&
		r.StartTime == other.StartTime &&
		r.EndTime == other.EndTime
}

// Covers сообщает, лежит ли интервал [start, end) (в минутах от полуночи) внутри окна.
func (r *AvailabilityRule) Covers(start, end int) bool {
	return start >= int(r.StartTime) && end <= int(r.EndTime)
}
