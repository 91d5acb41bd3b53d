package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SlotCache хранит кандидатов слотов в Redis. Ключи преподавателя содержат счётчик
// версии, поэтому инвалидация это один INCR.
type SlotCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSlotCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SlotCache {
	return &SlotCache{rdb: rdb, ttl: ttl, logger: logger}
}

func versionKey(tutorID uuid.UUID) string {
	return fmt.Sprintf("slots:%s:version", tutorID)
}

func slotsKey(tutorID uuid.UUID, version int64, date string) string {
	return fmt.Sprintf("slots:%s:%d:%s", tutorID, version, date)
}

func (c *SlotCache) version(ctx context.Context, tutorID uuid.UUID) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(tutorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Get читает версию один раз; при промахе её нужно передать в Set.
// Отрицательная версия значит, что Redis недоступен и писать не нужно.
func (c *SlotCache) Get(ctx context.Context, tutorID uuid.UUID, date string) ([]model.Slot, int64, bool) {
	v, err := c.version(ctx, tutorID)
	if err != nil {
		c.logger.Warn("slot cache version lookup failed", zap.Error(err))
		return nil, -1, false
	}

	data, err := c.rdb.Get(ctx, slotsKey(tutorID, v, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("slot cache get failed", zap.Error(err))
		}
		return nil, v, false
	}

	var slots []model.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Warn("slot cache entry is corrupt", zap.Error(err))
		return nil, v, false
	}
	return slots, v, true
}

// Set пишет под версией из Get. Если между ними была инвалидация, запись
// попадает в устаревшее пространство ключей и просто истекает по TTL.
func (c *SlotCache) Set(ctx context.Context, tutorID uuid.UUID, version int64, date string, slots []model.Slot) {
	if version < 0 {
		return
	}

	data, err := json.Marshal(slots)
	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, slotsKey(tutorID, version, date), data, c.ttl).Err(); err != nil {
		c.logger.Warn("slot cache set failed", zap.Error(err))
	}
}

func (c *SlotCache) InvalidateTutor(ctx context.Context, tutorID uuid.UUID) {
	if err := c.rdb.Incr(ctx, versionKey(tutorID)).Err(); err != nil {
		c.logger.Warn("slot cache invalidation failed",
			zap.String("tutor_id", tutorID.String()),
			zap.Error(err),
		)
	}
}
