package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRateLimiter
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisRateLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisRateLimiter{
			client: mock,
			window: 2 * time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if !l.Allow(" User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "reset:rl:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisRateLimiter{
			client: &mockRedisEvaler{result: 4},
			window: time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if l.Allow("user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisRateLimiter{
			client: &mockRedisEvaler{err: errors.New("redis down")},
			window: time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestMemoryRateLimiterAllow(t *testing.T) {
	l := NewMemoryRateLimiter(50*time.Millisecond, 2)
	if !l.Allow("Root") || !l.Allow(" root ") {
		t.Fatalf("expected first two hits allowed")
	}
	if l.Allow("root") {
		t.Fatalf("expected third hit denied")
	}
	if !l.Allow("other") {
		t.Fatalf("keys must be independent")
	}
	if l.Allow("  ") {
		t.Fatalf("empty key must be rejected")
	}
	time.Sleep(70 * time.Millisecond)
	if !l.Allow("root") {
		t.Fatalf("expected window to slide")
	}
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRateLimiterMiniredis(t *testing.T) {
	mr, client := newMiniredisClient(t)
	l := NewRedisRateLimiter(client, "auth:reset:rl:", time.Hour, 2)

	if !l.Allow("Ana") || !l.Allow("ana") {
		t.Fatalf("expected first two requests allowed")
	}
	if l.Allow(" ANA ") {
		t.Fatalf("expected third request denied")
	}
	if ttl := mr.TTL("auth:reset:rl:ana"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected window ttl, got %v", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if !l.Allow("ana") {
		t.Fatalf("expected window reset after expiry")
	}
	if NewRedisRateLimiter(nil, "x:", time.Minute, 1) != nil {
		t.Fatalf("expected nil limiter without client")
	}
}
