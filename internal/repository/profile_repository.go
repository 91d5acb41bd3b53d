package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository копия данных профилей, нужных для расписания и уведомлений
type ProfileRepository struct {
	*base.Repository
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{Repository: base.NewRepository(pool)}
}

// Upsert создаёт или обновляет профиль
func (r *ProfileRepository) Upsert(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (user_id, full_name, email, telegram_chat_id, hourly_rate_cents, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    email = EXCLUDED.email,
		    telegram_chat_id = EXCLUDED.telegram_chat_id,
		    hourly_rate_cents = EXCLUDED.hourly_rate_cents,
		    timezone = EXCLUDED.timezone,
		    updated_at = now()
		RETURNING updated_at
	`

	err := r.Pool().QueryRow(ctx, query,
		p.UserID,
		p.FullName,
		p.Email,
		p.TelegramChatID,
		p.HourlyRateCents,
		p.Timezone,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Get получает профиль по ID пользователя
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	query := `
		SELECT user_id, full_name, email, telegram_chat_id, hourly_rate_cents, timezone, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var p model.Profile
	err := r.Pool().QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.FullName,
		&p.Email,
		&p.TelegramChatID,
		&p.HourlyRateCents,
		&p.Timezone,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", base.MapError(err))
	}
	return &p, nil
}
