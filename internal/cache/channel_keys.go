package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

const channelKeyPrefix = "konsul:channel-key:"

// ChannelKeyCache memoizes (channel type, correlation key) -> channel id.
// A nil *ChannelKeyCache is valid and always misses. Redis errors are logged
// and treated as misses; the database stays the source of truth.
type ChannelKeyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChannelKeyCache returns nil when client is nil.
func NewChannelKeyCache(client *redis.Client, ttl time.Duration) *ChannelKeyCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ChannelKeyCache{client: client, ttl: ttl}
}

func channelKey(t domain.ChannelType, key string) string {
	return channelKeyPrefix + string(t) + ":" + key
}

// Get returns the cached channel id.
func (c *ChannelKeyCache) Get(ctx context.Context, t domain.ChannelType, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	id, err := c.client.Get(ctx, channelKey(t, key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zerolog.Ctx(ctx).Debug().Err(err).Str("channel_type", string(t)).Msg("channel key cache get failed")
		}
		return "", false
	}
	return id, id != ""
}

// Set stores channelID for ttl.
func (c *ChannelKeyCache) Set(ctx context.Context, t domain.ChannelType, key, channelID string) {
	if c == nil || key == "" || channelID == "" {
		return
	}
	if err := c.client.Set(ctx, channelKey(t, key), channelID, c.ttl).Err(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("channel_type", string(t)).Msg("channel key cache set failed")
	}
}

// Invalidate drops a mapping after the channel's credentials change.
func (c *ChannelKeyCache) Invalidate(ctx context.Context, t domain.ChannelType, key string) {
	if c == nil || key == "" {
		return
	}
	if err := c.client.Del(ctx, channelKey(t, key)).Err(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("channel_type", string(t)).Msg("channel key cache delete failed")
	}
}
