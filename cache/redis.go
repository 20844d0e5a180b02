package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"schls/config"
	"schls/logger"
	"schls/model"
)

const trackKeyPrefix = "track:"

// ConnectRedis opens a client from cfg and checks it with PING.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// TrackCache stores resolved track metadata so repeated lookups of the same
// URL skip the resolve call. Failures are logged and treated as misses.
type TrackCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTrackCache wraps client. A non-positive ttl means no expiry.
func NewTrackCache(client *redis.Client, ttl time.Duration) *TrackCache {
	if ttl < 0 {
		ttl = 0
	}
	return &TrackCache{client: client, ttl: ttl}
}

// TrackKey is the Redis key for a track URL.
func TrackKey(trackURL string) string {
	return trackKeyPrefix + trackURL
}

// GetTrack returns the cached track for trackURL, if any.
func (c *TrackCache) GetTrack(ctx context.Context, trackURL string) (*model.Track, bool) {
	data, err := c.client.Get(ctx, TrackKey(trackURL)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("track cache read failed", logger.String("url", trackURL), logger.ErrorField(err))
		}
		return nil, false
	}

	var track model.Track
	if err := json.Unmarshal(data, &track); err != nil {
		logger.Warn("dropping corrupt cache entry", logger.String("url", trackURL), logger.ErrorField(err))
		c.client.Del(ctx, TrackKey(trackURL))
		return nil, false
	}
	return &track, true
}

// SetTrack caches track under trackURL.
func (c *TrackCache) SetTrack(ctx context.Context, trackURL string, track *model.Track) {
	data, err := json.Marshal(track)
	if err != nil {
		logger.Warn("track cache encode failed", logger.String("url", trackURL), logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, TrackKey(trackURL), data, c.ttl).Err(); err != nil {
		logger.Warn("track cache write failed", logger.String("url", trackURL), logger.ErrorField(err))
	}
}

// Invalidate drops the entry for trackURL.
func (c *TrackCache) Invalidate(ctx context.Context, trackURL string) error {
	return c.client.Del(ctx, TrackKey(trackURL)).Err()
}
