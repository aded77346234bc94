package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()

	c, err := Connect(ctx, "  ")
	if err != nil || c != nil {
		t.Fatalf("empty address should disable redis, got %v,%v", c, err)
	}

	c, err = Connect(ctx, "redis://:secret@cache.local:6380/2")
	if err != nil {
		t.Fatalf("Connect url: %v", err)
	}
	if o := c.Options(); o.Addr != "cache.local:6380" || o.DB != 2 || o.Password != "secret" {
		t.Fatalf("parsed options unexpected: %+v", o)
	}
	_ = c.Close()

	c, err = Connect(ctx, "localhost:6379")
	if err != nil || c.Options().Addr != "localhost:6379" {
		t.Fatalf("Connect addr = %v,%v", c, err)
	}
	_ = c.Close()

	if _, err := Connect(ctx, "redis://host:notaport/x"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestChannelKeyCache_NilIsMiss(t *testing.T) {
	var c *ChannelKeyCache
	if NewChannelKeyCache(nil, time.Minute) != nil {
		t.Fatalf("nil client should yield nil cache")
	}
	ctx := context.Background()
	c.Set(ctx, domain.ChannelWhatsApp, "123", "ch")
	c.Invalidate(ctx, domain.ChannelWhatsApp, "123")
	if _, ok := c.Get(ctx, domain.ChannelWhatsApp, "123"); ok {
		t.Fatalf("nil cache should miss")
	}
}

func TestChannelKeyCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewChannelKeyCache(client, 0)
	if c.ttl != 5*time.Minute {
		t.Fatalf("default ttl = %v", c.ttl)
	}
	ctx := context.Background()
	c.Set(ctx, domain.ChannelMessenger, "page", "ch")
	if _, ok := c.Get(ctx, domain.ChannelMessenger, "page"); ok {
		t.Fatalf("unreachable redis should miss")
	}
	c.Invalidate(ctx, domain.ChannelMessenger, "page")
}

func TestChannelKeyFormat(t *testing.T) {
	if got := channelKey(domain.ChannelInstagram, "17841"); got != "konsul:channel-key:INSTAGRAM:17841" {
		t.Fatalf("channelKey = %q", got)
	}
}
