package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const availabilityColumns = `id, tutor_id, day_of_week, to_char(start_time, 'HH24:MI'),
	CASE WHEN end_time = '24:00'::time THEN '24:00' ELSE to_char(end_time, 'HH24:MI') END,
	is_active, created_at, updated_at`

// AvailabilityRepository хранит правила доступности в таблице tutor_availability
type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет правило. Совпадающее активное правило нарушает уникальный индекс.
func (r *AvailabilityRepository) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	query := `
		INSERT INTO tutor_availability (id, tutor_id, day_of_week, start_time, end_time, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4::time, $5::time, $6, $7, $8)
	`

	_, err := r.Pool().Exec(ctx, query,
		rule.ID,
		rule.TutorID,
		rule.DayOfWeek,
		rule.StartTime.String(),
		rule.EndTime.String(),
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert availability rule: %w", base.MapError(err))
	}
	return nil
}

// GetByID получает правило по ID
func (r *AvailabilityRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityRule, error) {
	query := `SELECT ` + availabilityColumns + ` FROM tutor_availability WHERE id = $1`

	rule, err := scanRule(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get availability rule: %w", base.MapError(err))
	}
	return rule, nil
}

// SetActive меняет флаг активности и возвращает правило
func (r *AvailabilityRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.AvailabilityRule, error) {
	query := `
		UPDATE tutor_availability
		SET is_active = $2,
		    updated_at = CASE WHEN is_active = $2 THEN updated_at ELSE now() END
		WHERE id = $1
		RETURNING ` + availabilityColumns

	rule, err := scanRule(r.Pool().QueryRow(ctx, query, id, active))
	if err != nil {
		return nil, fmt.Errorf("set availability rule active: %w", base.MapError(err))
	}
	return rule, nil
}

// Delete удаляет правило
func (r *AvailabilityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.Pool().Exec(ctx, `DELETE FROM tutor_availability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

// ListByTutor правила преподавателя по (день, начало)
func (r *AvailabilityRepository) ListByTutor(ctx context.Context, tutorID uuid.UUID, activeOnly bool) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + availabilityColumns + `
		FROM tutor_availability
		WHERE tutor_id = $1 AND (is_active OR NOT $2)
		ORDER BY day_of_week, start_time, end_time, created_at
	`

	rows, err := r.Pool().Query(ctx, query, tutorID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	defer rows.Close()

	var rules []*model.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanRule(row pgx.Row) (*model.AvailabilityRule, error) {
	var (
		rule       model.AvailabilityRule
		start, end string
	)
	err := row.Scan(
		&rule.ID,
		&rule.TutorID,
		&rule.DayOfWeek,
		&start,
		&end,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rule.StartTime, err = model.ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if rule.EndTime, err = model.ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	return &rule, nil
}
