package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetNXHoldsUntilDeleted(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	// First acquire wins, the second caller is refused until release. This
	// is the contract the cron worker lock is built on.
	ok, err := client.SetNX(ctx, "lock:payment-expiry", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if !ok {
		t.Fatal("first setnx should win")
	}

	ok, err = client.SetNX(ctx, "lock:payment-expiry", "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("second setnx failed: %v", err)
	}
	if ok {
		t.Fatal("held key must refuse a second setnx")
	}

	owner, err := client.Get(ctx, "lock:payment-expiry")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if owner != "owner-1" {
		t.Fatalf("expected owner-1, got %q", owner)
	}

	if err := client.Del(ctx, "lock:payment-expiry"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	ok, err = client.SetNX(ctx, "lock:payment-expiry", "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("setnx after del failed: %v", err)
	}
	if !ok {
		t.Fatal("released key should be acquirable again")
	}
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if _, err := client.Get(ctx, "missing"); err == nil || err != redis.Nil {
		t.Fatalf("expected redis.Nil for a missing key, got %v", err)
	}
}

func TestSetOverwritesValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if err := client.Set(ctx, "key", "first", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := client.Set(ctx, "key", "second", time.Minute); err != nil {
		t.Fatalf("second set failed: %v", err)
	}
	value, err := client.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "second" {
		t.Fatalf("expected overwrite, got %q", value)
	}
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "kirana:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	// Empty parts are skipped rather than producing double separators.
	if got := client.IdempotencyKey("", "id"); got != "kirana:idempotency:id" {
		t.Fatalf("unexpected key for empty scope %s", got)
	}
}

func TestUninitializedClientRefusesCommands(t *testing.T) {
	ctx := context.Background()
	client := &Client{}

	if err := client.Set(ctx, "key", "value", 0); err == nil {
		t.Fatal("set on an uninitialized client should fail")
	}
	if _, err := client.Get(ctx, "key"); err == nil {
		t.Fatal("get on an uninitialized client should fail")
	}
	if _, err := client.SetNX(ctx, "key", "value", 0); err == nil {
		t.Fatal("setnx on an uninitialized client should fail")
	}
	if err := client.Del(ctx, "key"); err == nil {
		t.Fatal("del on an uninitialized client should fail")
	}
	if err := client.Ping(ctx); err == nil {
		t.Fatal("ping on an uninitialized client should fail")
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
