package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"sentinelshop/internal/logger"
)

const redisKeyPrefix = "sentinelshop:snapshot:"

// RedisStore keeps one JSON value per session. Expiry is left to Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore accepts either a redis:// URL or a plain host:port.
func NewRedisStore(redisAddr string, ttl time.Duration) (*RedisStore, error) {
	if redisAddr == "" {
		return nil, errors.New("redis address is empty")
	}

	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	return &RedisStore{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Initialize pings Redis with backoff until it answers or ctx ends.
func (r *RedisStore) Initialize(ctx context.Context) error {
	const attempts = 5

	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := r.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.LogInfo("Redis snapshot store ready (attempt %d/%d)", i+1, attempts)
			return nil
		}
		logger.LogWarn("Redis ping attempt %d/%d failed: %v", i+1, attempts, err)

		backoff := time.Duration(250*(1<<uint(i))) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return errors.Errorf("failed to connect to Redis after %d attempts", attempts)
}

func (r *RedisStore) Save(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}
	if err := r.client.Set(ctx, redisKeyPrefix+rec.SessionID, payload, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis SET snapshot %s", rec.SessionID)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (Record, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "redis GET snapshot %s", sessionID)
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, errors.Wrapf(err, "failed to decode snapshot %s", sessionID)
	}
	return rec, nil
}

// Purge is a no-op; keys carry their own TTL.
func (r *RedisStore) Purge(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
