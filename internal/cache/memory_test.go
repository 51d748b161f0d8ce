package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("Get missing: err = %v, want not found", err)
	}
}

func TestMemoryPrefix(t *testing.T) {
	ctx := context.Background()
	a := NewMemory("a")
	if err := a.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := a.Get(ctx, "k"); err != nil {
		t.Fatalf("Get with prefix: %v", err)
	}
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Fatalf("Incr = %d, want %d", n, want)
		}
	}

	// El contador se lee como string, igual que en Redis.
	got, err := c.Get(ctx, "counter")
	if err != nil {
		t.Fatalf("Get counter: %v", err)
	}
	if got != "3" {
		t.Fatalf("Get counter = %q, want %q", got, "3")
	}
}

func TestMemoryIncrPreservesTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if _, err := c.Incr(ctx, "counter"); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if err := c.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}

	before, err := c.TTL(ctx, "counter")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}

	if _, err := c.Incr(ctx, "counter"); err != nil {
		t.Fatalf("Incr: %v", err)
	}

	after, err := c.TTL(ctx, "counter")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if after > before {
		t.Fatalf("Incr extendió el TTL: before=%v after=%v", before, after)
	}
	if after <= 0 {
		t.Fatalf("TTL perdido tras Incr: %v", after)
	}
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if _, err := c.TTL(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("TTL missing: err = %v, want not found", err)
	}

	if err := c.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl, err := c.TTL(ctx, "forever")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl != NoTTL {
		t.Fatalf("TTL sin expiración = %v, want NoTTL", ttl)
	}

	if err := c.Set(ctx, "bounded", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl, err = c.TTL(ctx, "bounded")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("TTL = %v, want (0, 1m]", ttl)
	}
}

func TestMemoryExpire(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if err := c.Expire(ctx, "missing", time.Minute); !IsNotFound(err) {
		t.Fatalf("Expire missing: err = %v, want not found", err)
	}

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Expire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	ttl, err := c.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("TTL tras Expire = %v, want (0, 1m]", ttl)
	}
}

func TestMemoryDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := c.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Exists = (%v, %v), want (true, nil)", ok, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = c.Exists(ctx, "k")
	if err != nil || ok {
		t.Fatalf("Exists tras Delete = (%v, %v), want (false, nil)", ok, err)
	}

	// Delete es idempotente.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete repetido: %v", err)
	}
}
