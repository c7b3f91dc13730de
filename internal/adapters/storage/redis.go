package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/Presence/internal/domain"
)

const defaultRedisProgressKey = "presence:progress"

// RedisProgressStore keeps the progress record in one hash so several
// deployments can share it.
type RedisProgressStore struct {
	rdb *redis.Client
	key string
}

func NewRedisProgressStore(rdb *redis.Client, key string) *RedisProgressStore {
	if key == "" {
		key = defaultRedisProgressKey
	}
	return &RedisProgressStore{rdb: rdb, key: key}
}

// DialRedis connects and pings addr.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisProgressStore) Load(ctx context.Context) (domain.ProgressRecord, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ProgressRecord{}, false, nil
	}
	if err != nil {
		return domain.ProgressRecord{}, false, fmt.Errorf("hgetall %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return domain.ProgressRecord{}, false, nil
	}
	progress, err := strconv.Atoi(fields["progress"])
	if err != nil {
		return domain.ProgressRecord{}, false, fmt.Errorf("progress field: %w", err)
	}
	stage, err := strconv.Atoi(fields["stage_index"])
	if err != nil {
		return domain.ProgressRecord{}, false, fmt.Errorf("stage_index field: %w", err)
	}
	return domain.ProgressRecord{
		Progress:          progress,
		ContributionsJSON: fields["contributions"],
		StageIndex:        stage,
	}, true, nil
}

func (s *RedisProgressStore) Save(ctx context.Context, rec domain.ProgressRecord) error {
	err := s.rdb.HSet(ctx, s.key,
		"progress", rec.Progress,
		"contributions", rec.ContributionsJSON,
		"stage_index", rec.StageIndex,
	).Err()
	if err != nil {
		return fmt.Errorf("hset %s: %w", s.key, err)
	}
	return nil
}
