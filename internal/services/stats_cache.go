package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache stores computed course statistics under a per-course
// generation. Invalidate bumps the generation instead of deleting the
// entry, so a snapshot computed before a mutation and written after it
// lands under a generation nobody reads anymore.
//
// Implementations must treat a miss as (nil, false, nil); errors are
// logged by the caller and never fail the request.
type StatsCache interface {
	Generation(ctx context.Context, courseID string) (int64, error)
	Get(ctx context.Context, courseID string, gen int64) (*CourseStats, bool, error)
	Set(ctx context.Context, courseID string, gen int64, stats *CourseStats) error
	Invalidate(ctx context.Context, courseID string) error
}

const defaultStatsKeyPrefix = "discussions:stats:"

// RedisStatsCache is a StatsCache backed by Redis. A nil Client turns every
// call into a no-op so the service runs without Redis.
//
// Layout: <prefix>gen:<course> holds an INCR counter without expiry;
// <prefix><course>:<gen> holds the JSON snapshot for TTL.
type RedisStatsCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

// NewRedisStatsCache parses a redis:// URL and returns a cache with the
// given TTL. An empty URL yields a disabled cache.
func NewRedisStatsCache(url string, ttl time.Duration) (*RedisStatsCache, error) {
	if url == "" {
		return &RedisStatsCache{TTL: ttl}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStatsCache{Client: redis.NewClient(opts), TTL: ttl}, nil
}

func (r *RedisStatsCache) prefix() string {
	if r.Prefix == "" {
		return defaultStatsKeyPrefix
	}
	return r.Prefix
}

// Key returns the snapshot key of a course at generation gen.
func (r *RedisStatsCache) Key(courseID string, gen int64) string {
	return r.prefix() + courseID + ":" + strconv.FormatInt(gen, 10)
}

// GenerationKey returns the counter key of a course.
func (r *RedisStatsCache) GenerationKey(courseID string) string {
	return r.prefix() + "gen:" + courseID
}

// Enabled reports whether a Redis client is configured.
func (r *RedisStatsCache) Enabled() bool { return r != nil && r.Client != nil }

// Generation reads the course counter; a missing counter is generation 0.
func (r *RedisStatsCache) Generation(ctx context.Context, courseID string) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	gen, err := r.Client.Get(ctx, r.GenerationKey(courseID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisStatsCache) Get(ctx context.Context, courseID string, gen int64) (*CourseStats, bool, error) {
	if !r.Enabled() {
		return nil, false, nil
	}
	raw, err := r.Client.Get(ctx, r.Key(courseID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var st CourseStats
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, err
	}
	return &st, true, nil
}

func (r *RedisStatsCache) Set(ctx context.Context, courseID string, gen int64, stats *CourseStats) error {
	if !r.Enabled() || stats == nil {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, r.Key(courseID, gen), raw, r.TTL).Err()
}

// Invalidate moves the course to a new generation. Older snapshots are
// left to expire.
func (r *RedisStatsCache) Invalidate(ctx context.Context, courseID string) error {
	if !r.Enabled() {
		return nil
	}
	return r.Client.Incr(ctx, r.GenerationKey(courseID)).Err()
}

// Ping checks connectivity; a disabled cache always succeeds.
func (r *RedisStatsCache) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	return r.Client.Ping(ctx).Err()
}

// Close releases the client, if any.
func (r *RedisStatsCache) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.Client.Close()
}
