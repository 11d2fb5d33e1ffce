package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileCache memoizes interest profiles between ranking calls. The engine
// never requires a cache; implementations are strictly best-effort and every
// failure degrades to a rebuild.
type ProfileCache interface {
	// Get returns the cached profile for the viewer, if present.
	Get(ctx context.Context, viewerID string) (InterestProfile, bool)

	// Set stores the profile for the viewer. Errors are swallowed.
	Set(ctx context.Context, viewerID string, profile InterestProfile)
}

// NoopProfileCache is a ProfileCache that caches nothing.
type NoopProfileCache struct{}

// Get always misses.
func (NoopProfileCache) Get(ctx context.Context, viewerID string) (InterestProfile, bool) {
	return nil, false
}

// Set discards the profile.
func (NoopProfileCache) Set(ctx context.Context, viewerID string, profile InterestProfile) {}

// DefaultProfileCacheTTL bounds staleness of memoized interest profiles.
// A profile only shifts meaningfully as new interactions accumulate, so a
// short TTL keeps personalization fresh without rebuilding on every call.
const DefaultProfileCacheTTL = 5 * time.Minute

// RedisProfileCache memoizes interest profiles in Redis with a TTL.
// All cache errors are logged at debug level and treated as misses.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisProfileCache creates a Redis-backed profile cache.
// ttl <= 0 falls back to DefaultProfileCacheTTL.
func NewRedisProfileCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisProfileCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// cacheKey namespaces profile keys in the shared Redis instance.
func cacheKey(viewerID string) string {
	return "feed:profile:" + viewerID
}

// Get returns the cached profile for the viewer, treating any Redis or
// decode error as a miss.
func (c *RedisProfileCache) Get(ctx context.Context, viewerID string) (InterestProfile, bool) {
	data, err := c.client.Get(ctx, cacheKey(viewerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("profile cache read failed",
				"viewer_id", viewerID,
				"error", err)
		}
		return nil, false
	}

	var profile InterestProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		c.logger.Debug("profile cache entry corrupt, ignoring",
			"viewer_id", viewerID,
			"error", err)
		return nil, false
	}
	return profile, true
}

// Set stores the profile with the configured TTL. Errors are logged and
// swallowed; the next call simply rebuilds.
func (c *RedisProfileCache) Set(ctx context.Context, viewerID string, profile InterestProfile) {
	data, err := json.Marshal(profile)
	if err != nil {
		c.logger.Debug("profile cache encode failed",
			"viewer_id", viewerID,
			"error", err)
		return
	}

	if err := c.client.Set(ctx, cacheKey(viewerID), data, c.ttl).Err(); err != nil {
		c.logger.Debug("profile cache write failed",
			"viewer_id", viewerID,
			"error", err)
	}
}
