package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	lastSetKey string
	lastSetVal interface{}
	lastSetTTL time.Duration
	lastExists []string

	setErr    error
	existsErr error
	existsN   int64
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetVal = value
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	m.lastExists = keys
	cmd := redis.NewIntCmd(ctx)
	if m.existsErr != nil {
		cmd.SetErr(m.existsErr)
		return cmd
	}
	cmd.SetVal(m.existsN)
	return cmd
}

func TestMemoryRevocationStore_Basics(t *testing.T) {
	store := NewMemoryRevocationStore()

	ok, err := store.IsRevoked("missing")
	if err != nil || ok {
		t.Fatalf("expected missing sid false,nil; got %v,%v", ok, err)
	}

	if err := store.Revoke("sid-1", 50*time.Millisecond); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	ok, err = store.IsRevoked("sid-1")
	if err != nil || !ok {
		t.Fatalf("expected sid revoked, got %v,%v", ok, err)
	}

	time.Sleep(70 * time.Millisecond)
	ok, err = store.IsRevoked("sid-1")
	if err != nil || ok {
		t.Fatalf("expected revocation to expire, got %v,%v", ok, err)
	}

	if err := store.Revoke("", time.Minute); err != nil {
		t.Fatalf("empty sid revoke should be no-op, got %v", err)
	}
}

func TestRedisRevocationStore_Basics(t *testing.T) {
	mock := &mockRedisKVClient{existsN: 1}
	store := &redisRevocationStore{
		client: mock,
		prefix: "auth:revoked:",
	}

	if err := store.Revoke(" s1 ", 0); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if mock.lastSetKey != "auth:revoked:s1" {
		t.Fatalf("unexpected key, got %q", mock.lastSetKey)
	}
	if mock.lastSetTTL <= 0 {
		t.Fatalf("expected positive TTL fallback, got %v", mock.lastSetTTL)
	}

	ok, err := store.IsRevoked(" s1 ")
	if err != nil || !ok {
		t.Fatalf("expected revoked true,nil; got %v,%v", ok, err)
	}
	if len(mock.lastExists) != 1 || mock.lastExists[0] != "auth:revoked:s1" {
		t.Fatalf("unexpected exists key: %+v", mock.lastExists)
	}
}

func TestRedisRevocationStore_ErrorPaths(t *testing.T) {
	mock := &mockRedisKVClient{
		setErr:    errors.New("set failed"),
		existsErr: errors.New("exists failed"),
	}
	store := &redisRevocationStore{client: mock, prefix: "auth:revoked:"}

	ok, err := store.IsRevoked("")
	if err != nil || ok {
		t.Fatalf("empty sid should be false,nil; got %v,%v", ok, err)
	}
	if err := store.Revoke("s2", time.Minute); err == nil {
		t.Fatalf("expected revoke error")
	}
	if _, err := store.IsRevoked("s2"); err == nil {
		t.Fatalf("expected exists error")
	}
}

func TestRedisRevocationStoreMiniredis(t *testing.T) {
	mr, client := newMiniredisClient(t)
	store := NewRedisRevocationStore(client)

	if err := store.Revoke("sid-1", 30*time.Second); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err := store.IsRevoked("sid-1")
	if err != nil || !ok {
		t.Fatalf("expected revoked, got %v,%v", ok, err)
	}
	if ttl := mr.TTL("auth:revoked:sid-1"); ttl != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	ok, err = store.IsRevoked("sid-1")
	if err != nil || ok {
		t.Fatalf("expected revocation to expire, got %v,%v", ok, err)
	}
}
