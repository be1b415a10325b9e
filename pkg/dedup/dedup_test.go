package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := New(time.Minute, 100)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess(ctx, "a"))
	assert.False(t, d.ShouldProcess(ctx, "a"))
	assert.True(t, d.ShouldProcess(ctx, "b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess(ctx, "a"))
}

func TestMemoryEmptyID(t *testing.T) {
	d := New(0, 0)
	assert.True(t, d.ShouldProcess(context.Background(), ""))
	assert.True(t, d.ShouldProcess(context.Background(), ""))
	assert.Equal(t, 0, d.Len())
}

func TestMemoryEvictsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := New(time.Second, 3)
	d.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, d.ShouldProcess(ctx, fmt.Sprintf("id-%d", i)))
	}
	now = now.Add(time.Minute)
	require.True(t, d.ShouldProcess(ctx, "fresh"))
	assert.LessOrEqual(t, d.Len(), 3)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key([]byte("abc")), Key([]byte("abc")))
	assert.NotEqual(t, Key([]byte("abc")), Key([]byte("abd")))
	assert.Len(t, Key(nil), 64)
}

func TestRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	d := NewRedisWithClient(client, time.Minute)
	defer d.Close()

	ctx := context.Background()
	assert.True(t, d.ShouldProcess(ctx, "a"))
	assert.True(t, d.ShouldProcess(ctx, "a"))
	assert.Error(t, d.Ping(ctx))
}

func TestNewRedisInvalidURL(t *testing.T) {
	_, err := NewRedis("not a url", time.Minute)
	assert.Error(t, err)
}
