package redis

import (
	"context"
	"errors"
	"fmt"
	"property-listings-puller/internal/core/domain"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "listings-puller:checkpoint"

// RedisCheckpointStore хранит отметки в хешах Redis: page, run_id, updated_at
type RedisCheckpointStore struct {
	rdb goredis.Cmdable
	ttl time.Duration // 0 - без срока жизни
}

func NewRedisCheckpointStore(rdb goredis.Cmdable, ttl time.Duration) (*RedisCheckpointStore, error) {
	if rdb == nil {
		return nil, errors.New("redis checkpoint store: client cannot be nil")
	}
	return &RedisCheckpointStore{rdb: rdb, ttl: ttl}, nil
}

func checkpointKey(key domain.CheckpointKey) string {
	if key.Category == "" {
		return fmt.Sprintf("%s:%s", keyPrefix, key.Site)
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, key.Site, key.Category)
}

func (s *RedisCheckpointStore) LastPage(ctx context.Context, key domain.CheckpointKey) (int, error) {
	val, err := s.rdb.HGet(ctx, checkpointKey(key), "page").Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis checkpoint store: get: %w", err)
	}
	page, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("redis checkpoint store: corrupted page value %q: %w", val, err)
	}
	return page, nil
}

func (s *RedisCheckpointStore) SavePage(ctx context.Context, key domain.CheckpointKey, page int, runID uuid.UUID) error {
	k := checkpointKey(key)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, k,
			"page", page,
			"run_id", runID.String(),
			"updated_at", time.Now().UTC().Format(time.RFC3339),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis checkpoint store: save: %w", err)
	}
	return nil
}
