package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// DefaultActiveSetTTL bounds how long a stale active set can survive a
// missed invalidation.
const DefaultActiveSetTTL = 5 * time.Minute

// versionTTL keeps invalidation counters far longer than any read can take.
const versionTTL = 24 * time.Hour

// CacheService is a Redis cache-aside layer for per-video active sets.
type CacheService struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCacheService creates a new CacheService. If redisURL is empty or the
// connection fails, it returns a CacheService with a nil client (cache
// operations become no-ops).
func NewCacheService(redisURL string, ttl time.Duration, logger zerolog.Logger) *CacheService {
	logger = logger.With().Str("component", "cache").Logger()
	if ttl <= 0 {
		ttl = DefaultActiveSetTTL
	}

	if redisURL == "" {
		logger.Info().Msg("redis: no URL configured, caching disabled")
		return &CacheService{ttl: ttl, logger: logger}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &CacheService{ttl: ttl, logger: logger}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		_ = rdb.Close()
		return &CacheService{ttl: ttl, logger: logger}
	}

	logger.Info().Dur("ttl", ttl).Msg("redis: connected, caching enabled")
	return &CacheService{rdb: rdb, ttl: ttl, logger: logger}
}

// NewCacheServiceWithClient wraps an existing client.
func NewCacheServiceWithClient(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *CacheService {
	if ttl <= 0 {
		ttl = DefaultActiveSetTTL
	}
	return &CacheService{rdb: rdb, ttl: ttl, logger: logger}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// GetActiveSet returns the cached active set of a video. The boolean is
// false on a miss or when caching is disabled.
func (c *CacheService) GetActiveSet(ctx context.Context, key model.VideoKey) ([]model.Segment, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, activeSetKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var segs []model.Segment
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, false, fmt.Errorf("decode cached active set: %w", err)
	}
	// Only wire fields survive the round trip.
	for i := range segs {
		segs[i].Video = key
		segs[i].SetStatus(model.StatusActive)
	}
	return segs, true, nil
}

// ActiveSetVersion returns the invalidation counter of a video. Read it
// before loading the active set from the store and pass it to SetActiveSet.
func (c *CacheService) ActiveSetVersion(ctx context.Context, key model.VideoKey) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, versionKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// setIfVersion writes the active set only while the version key still holds
// the value the reader saw. A missing version counts as 0.
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[1]) or '0'
if v ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// SetActiveSet stores a video's active set loaded at version. It reports
// false, without writing, when the video was invalidated since then.
func (c *CacheService) SetActiveSet(ctx context.Context, key model.VideoKey, version int64, segs []model.Segment) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	b, err := json.Marshal(segs)
	if err != nil {
		return false, err
	}
	stored, err := setIfVersion.Run(ctx, c.rdb,
		[]string{versionKey(key), activeSetKey(key)},
		strconv.FormatInt(version, 10), b, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateVideo bumps the video's version and drops its cached active
// set. Called after every committed write.
func (c *CacheService) InvalidateVideo(ctx context.Context, key model.VideoKey) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(key))
		pipe.Expire(ctx, versionKey(key), versionTTL)
		pipe.Del(ctx, activeSetKey(key))
		return nil
	})
	return err
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func activeSetKey(key model.VideoKey) string {
	return fmt.Sprintf("segments:active:%s:%s", key.ContentID, key.PartID)
}

func versionKey(key model.VideoKey) string {
	return fmt.Sprintf("segments:version:%s:%s", key.ContentID, key.PartID)
}
