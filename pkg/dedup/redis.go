package dedup

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "decoder:dedup:"

// Redis shares the dedup state between replicas with a SETNX lock per id.
// Redis errors fail open: the message is processed.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis parses a redis:// URL and returns a Redis deduper.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "redis url error")
	}
	return NewRedisWithClient(redis.NewClient(opt), ttl), nil
}

func NewRedisWithClient(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (d *Redis) ShouldProcess(ctx context.Context, id string) bool {
	if id == "" {
		return true
	}
	set, err := d.client.SetNX(ctx, keyPrefix+id, "lock", d.ttl).Result()
	if err != nil {
		log.WithError(err).WithField("id", id).Warning("dedup: acquire deduplication lock error")
		return true
	}
	return set
}

// Ping checks the connection.
func (d *Redis) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping error")
	}
	return nil
}

func (d *Redis) Close() error {
	return d.client.Close()
}
