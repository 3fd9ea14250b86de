// Package idempotency keeps the first response to a keyed request so repeats can be replayed.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is a cached response.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"ct"`
	Body        []byte `json:"body"`
	// BodyHash is the sha256 of the request body the response belongs to.
	BodyHash string `json:"hash,omitempty"`
	StoredAt int64  `json:"at"`
}

type RedisStore struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, lockTTL: 30 * time.Second}
}

func respKey(scope, k string) string { return fmt.Sprintf("idem:%s:resp:%s", scope, k) }
func lockKey(scope, k string) string { return fmt.Sprintf("idem:%s:lock:%s", scope, k) }

// Load returns the cached record, or nil when none exists.
func (s *RedisStore) Load(ctx context.Context, scope, k string) (*Record, error) {
	b, err := s.rdb.Get(ctx, respKey(scope, k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Reserve claims k for one in-flight request; false means someone else holds it.
func (s *RedisStore) Reserve(ctx context.Context, scope, k string) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(scope, k), "1", s.lockTTL).Result()
}

// Save stores rec unless a response for k already exists, and drops the reservation, in one MULTI.
func (s *RedisStore) Save(ctx context.Context, scope, k string, rec Record) error {
	if rec.StoredAt == 0 {
		rec.StoredAt = time.Now().Unix()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	// 首次结果不可被覆盖
	pipe.SetNX(ctx, respKey(scope, k), b, s.ttl)
	pipe.Del(ctx, lockKey(scope, k))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Release(ctx context.Context, scope, k string) error {
	return s.rdb.Del(ctx, lockKey(scope, k)).Err()
}
