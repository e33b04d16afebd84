package deadline

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisAnchorStore keeps anchors as Unix-millisecond strings. Writes use
// SET NX so the first observation wins.
type RedisAnchorStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAnchorStore creates a RedisAnchorStore. ttl bounds how long an
// abandoned anchor lingers; zero keeps it forever.
func NewRedisAnchorStore(rdb *redis.Client, ttl time.Duration) *RedisAnchorStore {
	return &RedisAnchorStore{rdb: rdb, ttl: ttl}
}

func (s *RedisAnchorStore) SetIfAbsent(ctx context.Context, examinationID string, phase model.Phase, at time.Time) (time.Time, error) {
	key := config.CacheKey.PhaseAnchorKey(examinationID, int(phase))

	// A second round only happens when the anchor expires between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, key, at.UnixMilli(), s.ttl).Result()
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return time.UnixMilli(at.UnixMilli()), nil
		}

		existing, found, err := s.get(ctx, key)
		if err != nil {
			return time.Time{}, err
		}
		if found {
			return existing, nil
		}
	}
	return time.Time{}, errors.New("anchor vanished while claiming it")
}

func (s *RedisAnchorStore) Get(ctx context.Context, examinationID string, phase model.Phase) (time.Time, bool, error) {
	return s.get(ctx, config.CacheKey.PhaseAnchorKey(examinationID, int(phase)))
}

func (s *RedisAnchorStore) Delete(ctx context.Context, examinationID string, phase model.Phase) error {
	return s.rdb.Del(ctx, config.CacheKey.PhaseAnchorKey(examinationID, int(phase))).Err()
}

func (s *RedisAnchorStore) get(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
