package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool возвращает пул соединений
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// WithTx выполняет fn в транзакции: commit при успехе, rollback при ошибке
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// MapError переводит ошибки Postgres в доменные
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return service.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", service.ErrDuplicate, pgErr.ConstraintName)
		case codeExclusionViolation:
			return fmt.Errorf("%w: %s", service.ErrSlotUnavailable, pgErr.ConstraintName)
		}
	}
	return err
}
