package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/linkpool/internal/observability"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	r := NewRedis(client, time.Minute)
	t.Cleanup(func() { _ = r.Close() })
	return r, s
}

func TestRedis_SetGet(t *testing.T) {
	ctx := context.Background()
	r, s := setupTestRedis(t)

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	_, gen, ok, err := r.Get(ctx, "page=1")
	if err != nil || ok {
		t.Fatalf("Get() on empty cache = ok %v, err %v", ok, err)
	}
	if gen != 0 {
		t.Errorf("generation of a fresh cache = %d, want 0", gen)
	}

	if err := r.Set(ctx, gen, "page=1", []byte("payload")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _, ok, err := r.Get(ctx, "page=1")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if string(got) != "payload" {
		t.Errorf("Get() = %q, want payload", got)
	}
	if ttl := s.TTL(pageKey(0, "page=1")); ttl != time.Minute {
		t.Errorf("page TTL = %v, want 1m", ttl)
	}
}

func TestRedis_InvalidateBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	r, _ := setupTestRedis(t)

	_ = r.Set(ctx, 0, "page=1", []byte("old"))

	if err := r.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	gen, err := r.generation(ctx)
	if err != nil {
		t.Fatalf("generation() error = %v", err)
	}
	if gen != 1 {
		t.Errorf("generation() = %d, want 1", gen)
	}

	_, seen, ok, _ := r.Get(ctx, "page=1")
	if ok {
		t.Error("Get() hit after Invalidate")
	}
	if seen != 1 {
		t.Errorf("Get() generation = %d, want 1", seen)
	}
}

func TestRedis_DropsPageReadBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	r, s := setupTestRedis(t)

	_, gen, _, err := r.Get(ctx, "page=1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	// Another replica writes and invalidates while this one reads the store.
	if err := r.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	before := testutil.ToFloat64(observability.CacheOperations.WithLabelValues(BackendRedis, resultStale))
	if err := r.Set(ctx, gen, "page=1", []byte(`{"total":1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got, _, ok, _ := r.Get(ctx, "page=1"); ok {
		t.Errorf("Get() = %s; a page read before Invalidate must not be served", got)
	}
	if s.Exists(pageKey(gen, "page=1")) {
		t.Error("stale page should not be written at all")
	}
	if delta := testutil.ToFloat64(observability.CacheOperations.WithLabelValues(BackendRedis, resultStale)) - before; delta != 1 {
		t.Errorf("stale delta = %v, want 1", delta)
	}
}

func TestRedis_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	r, s := setupTestRedis(t)

	_ = r.Set(ctx, 0, "page=1", []byte("v"))
	s.FastForward(2 * time.Minute)

	if _, _, ok, _ := r.Get(ctx, "page=1"); ok {
		t.Error("Get() hit after TTL elapsed")
	}
}

func TestRedis_ErrorWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	r, s := setupTestRedis(t)
	s.Close()

	if _, _, _, err := r.Get(ctx, "page=1"); err == nil {
		t.Error("Get() with redis down should fail")
	}
	if err := r.Set(ctx, 0, "page=1", []byte("v")); err == nil {
		t.Error("Set() with redis down should fail")
	}
}
