package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ScheduleCachePrefix is the key prefix for per-user upcoming dose caches
	ScheduleCachePrefix = "schedule:user:"

	// ScheduleCacheCap is the maximum number of dose entries per user
	ScheduleCacheCap = 200

	// ScheduleCacheTTL is the TTL for schedule caches (48 hours)
	ScheduleCacheTTL = 48 * time.Hour
)

// DoseEntry is a dose instant held in a user's schedule cache.
type DoseEntry struct {
	DoseID    uuid.UUID
	Timestamp int64 // Unix timestamp of the scheduled instant
}

// ScheduleCache holds each user's upcoming dose instants in a sorted set so
// the dashboard and the reminder tick can read the next instants without
// walking the treatment table.
type ScheduleCache interface {
	// AddDose adds a dose instant to a user's schedule cache.
	// Pipeline: ZADD + ZREMRANGEBYRANK (maintain cap) + EXPIRE (refresh TTL)
	AddDose(ctx context.Context, userID int64, doseID uuid.UUID, timestamp int64) error

	// RemoveDose removes a dose from a user's schedule cache.
	RemoveDose(ctx context.Context, userID int64, doseID uuid.UUID) error

	// Upcoming returns up to limit dose IDs with scores >= from, oldest first.
	Upcoming(ctx context.Context, userID int64, from time.Time, limit int) (doseIDs []uuid.UUID, scores []float64, err error)

	// Rebuild replaces a user's schedule cache with the given entries.
	Rebuild(ctx context.Context, userID int64, entries []DoseEntry) error

	// Clear drops a user's schedule cache entirely.
	Clear(ctx context.Context, userID int64) error

	// Size returns the number of entries in a user's schedule cache.
	Size(ctx context.Context, userID int64) (int64, error)

	// Exists reports whether the user has a schedule cache entry. False means
	// the cache expired or was never built; callers rebuild from the database.
	Exists(ctx context.Context, userID int64) (bool, error)
}

// RedisScheduleCache implements ScheduleCache using Redis Sorted Sets.
type RedisScheduleCache struct {
	client *redis.Client
}

// NewScheduleCache creates a ScheduleCache backed by Redis.
func NewScheduleCache(client *redis.Client) ScheduleCache {
	return &RedisScheduleCache{client: client}
}

func scheduleKey(userID int64) string {
	return fmt.Sprintf("%s%d", ScheduleCachePrefix, userID)
}

// AddDose adds a dose instant using a pipeline.
// Pipeline: ZADD + ZREMRANGEBYRANK (trim to cap) + EXPIRE (refresh TTL)
func (c *RedisScheduleCache) AddDose(ctx context.Context, userID int64, doseID uuid.UUID, timestamp int64) error {
	key := scheduleKey(userID)
	startTime := time.Now()

	pipe := c.client.Pipeline()

	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: doseID.String(),
	})

	// Maintain cap: keep the ScheduleCacheCap nearest instants, drop the
	// furthest-future tail
	pipe.ZRemRangeByRank(ctx, key, int64(ScheduleCacheCap), -1)

	pipe.Expire(ctx, key, ScheduleCacheTTL)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[ScheduleCache] AddDose FAILED: user=%d dose=%s err=%v", userID, doseID, err)
		return fmt.Errorf("add dose to schedule cache: %w", err)
	}

	log.Printf("[ScheduleCache] AddDose OK: user=%d dose=%s timestamp=%d duration=%v",
		userID, doseID, timestamp, time.Since(startTime))
	return nil
}

// RemoveDose removes a dose from a user's schedule cache.
func (c *RedisScheduleCache) RemoveDose(ctx context.Context, userID int64, doseID uuid.UUID) error {
	key := scheduleKey(userID)

	removed, err := c.client.ZRem(ctx, key, doseID.String()).Result()
	if err != nil {
		log.Printf("[ScheduleCache] RemoveDose FAILED: user=%d dose=%s err=%v", userID, doseID, err)
		return fmt.Errorf("remove dose from schedule cache: %w", err)
	}

	log.Printf("[ScheduleCache] RemoveDose OK: user=%d dose=%s removed=%d", userID, doseID, removed)
	return nil
}

// Upcoming returns dose IDs with scheduled instants at or after from, oldest
// first, via ZRANGEBYSCORE.
func (c *RedisScheduleCache) Upcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]uuid.UUID, []float64, error) {
	key := scheduleKey(userID)
	startTime := time.Now()

	results, err := c.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:    fmt.Sprintf("%d", from.Unix()),
		Max:    "+inf",
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		log.Printf("[ScheduleCache] Upcoming FAILED: user=%d err=%v", userID, err)
		return nil, nil, fmt.Errorf("get upcoming doses: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, ScheduleCacheTTL)

	doseIDs := make([]uuid.UUID, 0, len(results))
	scores := make([]float64, 0, len(results))
	for _, z := range results {
		id, err := uuid.Parse(z.Member.(string))
		if err != nil {
			log.Printf("[ScheduleCache] Upcoming parse error: member=%v err=%v", z.Member, err)
			return nil, nil, fmt.Errorf("parse dose id: %w", err)
		}
		doseIDs = append(doseIDs, id)
		scores = append(scores, z.Score)
	}

	log.Printf("[ScheduleCache] Upcoming OK: user=%d returned=%d duration=%v",
		userID, len(doseIDs), time.Since(startTime))
	return doseIDs, scores, nil
}

// Rebuild replaces the user's cache contents with the given entries using a
// pipeline. DEL first so entries removed upstream do not linger.
func (c *RedisScheduleCache) Rebuild(ctx context.Context, userID int64, entries []DoseEntry) error {
	key := scheduleKey(userID)
	startTime := time.Now()

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)

	if len(entries) > 0 {
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{
				Score:  float64(e.Timestamp),
				Member: e.DoseID.String(),
			}
		}
		pipe.ZAdd(ctx, key, members...)
		pipe.ZRemRangeByRank(ctx, key, int64(ScheduleCacheCap), -1)
		pipe.Expire(ctx, key, ScheduleCacheTTL)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[ScheduleCache] Rebuild FAILED: user=%d entries=%d err=%v", userID, len(entries), err)
		return fmt.Errorf("rebuild schedule cache: %w", err)
	}

	log.Printf("[ScheduleCache] Rebuild OK: user=%d entries=%d duration=%v",
		userID, len(entries), time.Since(startTime))
	return nil
}

// Clear drops a user's schedule cache.
func (c *RedisScheduleCache) Clear(ctx context.Context, userID int64) error {
	key := scheduleKey(userID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("[ScheduleCache] Clear FAILED: user=%d err=%v", userID, err)
		return fmt.Errorf("clear schedule cache: %w", err)
	}

	log.Printf("[ScheduleCache] Clear OK: user=%d", userID)
	return nil
}

// Size returns the number of entries in a user's schedule cache.
func (c *RedisScheduleCache) Size(ctx context.Context, userID int64) (int64, error) {
	size, err := c.client.ZCard(ctx, scheduleKey(userID)).Result()
	if err != nil {
		log.Printf("[ScheduleCache] Size FAILED: user=%d err=%v", userID, err)
		return 0, fmt.Errorf("get schedule cache size: %w", err)
	}
	return size, nil
}

// Exists checks if a user has a schedule cache entry.
func (c *RedisScheduleCache) Exists(ctx context.Context, userID int64) (bool, error) {
	exists, err := c.client.Exists(ctx, scheduleKey(userID)).Result()
	if err != nil {
		log.Printf("[ScheduleCache] Exists FAILED: user=%d err=%v", userID, err)
		return false, fmt.Errorf("check schedule cache exists: %w", err)
	}
	return exists > 0, nil
}
