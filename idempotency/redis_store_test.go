package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("LIBRARY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LIBRARY_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func Test_RedisStore_ReserveSaveLoad(t *testing.T) {
	s := NewRedisStore(openTestRedis(t), time.Minute)
	ctx := context.Background()
	k := uuid.NewString()

	rec, err := s.Load(ctx, "loans", k)
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := s.Reserve(ctx, "loans", k)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "loans", k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "loans", k, Record{Status: 200, ContentType: "application/json", Body: []byte(`{"id":1}`)}))

	rec, err = s.Load(ctx, "loans", k)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 200, rec.Status)
	assert.JSONEq(t, `{"id":1}`, string(rec.Body))

	// the reservation is gone once the response is saved
	ok, err = s.Reserve(ctx, "loans", k)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Release(ctx, "loans", k))
}

func Test_RedisStore_SaveNeverOverwritesFirstResponse(t *testing.T) {
	s := NewRedisStore(openTestRedis(t), time.Minute)
	ctx := context.Background()
	k := uuid.NewString()

	require.NoError(t, s.Save(ctx, "loans", k, Record{Status: 200, Body: []byte(`{"id":1}`)}))
	require.NoError(t, s.Save(ctx, "loans", k, Record{Status: 400, Body: []byte(`{"error":"x"}`)}))

	rec, err := s.Load(ctx, "loans", k)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 200, rec.Status)
}
