package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestManager_DisabledFallsBack(t *testing.T) {
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{RedisEnabled: false}
	}, nil, nil)

	_, ok := manager.Allow(context.Background(), "k", 5, time.Minute, time.Now())
	if ok {
		t.Fatal("expected fallback when redis is disabled")
	}
}

func TestManager_MissingAddrTripsBreaker(t *testing.T) {
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true}
	}, nil, nil)

	now := time.Now()
	if _, ok := manager.Allow(context.Background(), "k", 5, time.Minute, now); ok {
		t.Fatal("expected fallback without a redis address")
	}
	if !manager.isBreakerActive(now.Add(time.Second)) {
		t.Fatal("expected breaker to be tripped")
	}
	if manager.isBreakerActive(now.Add(redisBreakerDuration + time.Second)) {
		t.Fatal("expected breaker to clear after its duration")
	}
}

func TestManager_UnreachableRedisFallsBack(t *testing.T) {
	factory := func(options *redis.Options) *redis.Client {
		options.Addr = "127.0.0.1:1"
		options.DialTimeout = 50 * time.Millisecond
		return redis.NewClient(options)
	}
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true, RedisAddr: "127.0.0.1:1"}
	}, nil, factory)

	now := time.Now()
	if _, ok := manager.Allow(context.Background(), "k", 5, time.Minute, now); ok {
		t.Fatal("expected fallback when redis is unreachable")
	}
	if !manager.isBreakerActive(now.Add(time.Second)) {
		t.Fatal("expected breaker to be tripped")
	}
}

func TestManager_NilAndEmptyInputs(t *testing.T) {
	var manager *Manager
	if _, ok := manager.Allow(context.Background(), "k", 5, time.Minute, time.Now()); ok {
		t.Fatal("expected nil manager to fall back")
	}

	manager = NewManager(func() SettingsConfig {
		return SettingsConfig{RedisEnabled: true, RedisAddr: "127.0.0.1:6379"}
	}, nil, nil)
	if _, ok := manager.Allow(context.Background(), "", 5, time.Minute, time.Now()); ok {
		t.Fatal("expected empty key to fall back")
	}
	if _, ok := manager.Allow(context.Background(), "k", 0, time.Minute, time.Now()); ok {
		t.Fatal("expected non-positive limit to fall back")
	}
}

func TestLimiter_RemoteFallbackKeepsLocalSemantics(t *testing.T) {
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{RedisEnabled: false}
	}, nil, nil)

	limiter, _ := newTestLimiter(t, Options{
		Window:      time.Minute,
		MaxRequests: 2,
		Remote:      manager,
	})
	ctx := context.Background()

	limiter.CheckKey(ctx, "k")
	limiter.CheckKey(ctx, "k")
	if result := limiter.CheckKey(ctx, "k"); result.Allowed {
		t.Fatal("expected local quota to apply when remote falls back")
	}
}
