package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile данные пользователя, которыми владеет сервис профилей.
// Ядро только читает их: ставку, контакты и часовой пояс.
type Profile struct {
	UserID          uuid.UUID `json:"user_id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email,omitempty"`
	TelegramChatID  *int64    `json:"telegram_chat_id,omitempty"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	Timezone        string    `json:"timezone"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Location возвращает часовой пояс профиля, UTC если он не задан или неизвестен.
func (p *Profile) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LessonPriceCents стоимость занятия в центах, округление до ближайшего цента.
func (p *Profile) LessonPriceCents(durationMinutes int) int64 {
	return (p.HourlyRateCents*int64(durationMinutes) + 30) / 60
}
