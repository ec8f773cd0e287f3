package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"prioritizer/internal/task"
)

// rateLimitScript evaluates a sliding window in one atomic server-side step:
// prune entries older than the window, count the survivors, record the
// current attempt, refresh the key TTL. Atomicity here is what prevents the
// check/increment race under concurrent requests for the same identifier.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, math.ceil(window))
return count
`)

// Redis implements Store on a shared go-redis client. The client lifecycle
// is owned by the caller (platform redis package).
type Redis struct {
	client *redis.Client
	logger *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) SetPriorityResult(ctx context.Context, id string, res task.PriorityResult, ttl time.Duration) error {
	return r.set(ctx, PrefixPriorityResult+id, res, ttl)
}

func (r *Redis) GetPriorityResult(ctx context.Context, id string) (*task.PriorityResult, error) {
	var res task.PriorityResult
	if err := r.get(ctx, PrefixPriorityResult+id, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Redis) DeletePriorityResult(ctx context.Context, id string) error {
	return r.client.Del(ctx, PrefixPriorityResult+id).Err()
}

func (r *Redis) SetSuggestions(ctx context.Context, contentHash string, s []task.Suggestion, ttl time.Duration) error {
	return r.set(ctx, PrefixSuggestion+contentHash, s, ttl)
}

func (r *Redis) GetSuggestions(ctx context.Context, contentHash string) ([]task.Suggestion, error) {
	var s []task.Suggestion
	if err := r.get(ctx, PrefixSuggestion+contentHash, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckRateLimit never fails open into an error: on backend trouble it logs
// and answers permissively so the pipeline keeps moving.
func (r *Redis) CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) (RateLimitResult, error) {
	key := PrefixRateLimit + identifier
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	member := strconv.FormatFloat(now, 'f', 9, 64) + ":" + uuid.NewString()

	count, err := rateLimitScript.Run(ctx, r.client,
		[]string{key}, now, window.Seconds(), member).Int()
	if err != nil {
		r.logger.Error("rate limit check failed, allowing request",
			"identifier", identifier,
			"error", err,
		)
		return RateLimitResult{
			Allowed:       true,
			Remaining:     limit,
			Limit:         limit,
			WindowSeconds: int(window.Seconds()),
		}, nil
	}

	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:       count < limit,
		Remaining:     remaining,
		Limit:         limit,
		WindowSeconds: int(window.Seconds()),
		CurrentCount:  count + 1,
	}, nil
}

func (r *Redis) SetStats(ctx context.Context, stats Stats, ttl time.Duration) error {
	return r.set(ctx, PrefixStats+"pipeline", stats, ttl)
}

func (r *Redis) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := r.get(ctx, PrefixStats+"pipeline", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// PurgePrefix walks the keyspace with SCAN and deletes in batches, so large
// purges do not block the server the way KEYS would.
func (r *Redis) PurgePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete %q batch: %w", prefix, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (r *Redis) Health(ctx context.Context) Health {
	start := time.Now()
	err := r.client.Ping(ctx).Err()
	h := Health{
		Healthy: err == nil,
		Latency: time.Since(start),
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
	}
	if err != nil {
		h.LastError = err.Error()
	}
	return h
}

// Close is a no-op; the underlying client is shared and closed by its owner.
func (r *Redis) Close() error { return nil }

func (r *Redis) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := marshalEntry(v, ttl)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry %q: %w", key, err)
	}
	return nil
}

func (r *Redis) get(ctx context.Context, key string, out any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return ErrNotFound
	}
	if err != nil {
		r.misses.Add(1)
		return fmt.Errorf("get cache entry %q: %w", key, err)
	}
	if err := unmarshalEntry(raw, out); err != nil {
		r.misses.Add(1)
		return fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	r.hits.Add(1)
	return nil
}
