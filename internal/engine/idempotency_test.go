package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/greenlight/model"
)

func testCachedResponse() CachedResponse {
	return CachedResponse{
		StatusCode: 200,
		Body:       json.RawMessage(`{"id":"wf-1","status":"in_progress"}`),
	}
}

func runIdempotencyStoreTests(t *testing.T, store IdempotencyStore) {
	ctx := context.Background()
	key := FormatIdempotencyKey("action:wf-1", "client-key-1")
	hash := HashInput([]byte(`{"action":"approved"}`))

	// Miss on unknown key.
	result, found, err := store.Check(ctx, key, hash)
	if err != nil || found || result != nil {
		t.Fatalf("Check() on empty store = (%v, %v, %v)", result, found, err)
	}

	if err := store.Store(ctx, key, hash, testCachedResponse(), time.Minute); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// Hit with matching hash replays the cached response.
	result, found, err = store.Check(ctx, key, hash)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !found || result == nil {
		t.Fatal("Check() should find the stored entry")
	}
	if result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}

	// Same key, different input: conflict.
	otherHash := HashInput([]byte(`{"action":"rejected"}`))
	_, found, err = store.Check(ctx, key, otherHash)
	if !found {
		t.Error("Check() with mismatched hash should still report found")
	}
	if !model.IsCode(err, model.ErrConflict) {
		t.Errorf("Check() with mismatched hash = %v, want CONFLICT", err)
	}
}

func TestMemoryIdempotencyStore(t *testing.T) {
	runIdempotencyStoreTests(t, NewMemoryIdempotencyStore())
}

func TestMemoryIdempotencyStore_expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore()
	key := FormatIdempotencyKey("action:wf-1", "client-key-1")
	hash := HashInput([]byte(`{}`))

	if err := store.Store(ctx, key, hash, testCachedResponse(), -time.Second); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	_, found, err := store.Check(ctx, key, hash)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if found {
		t.Error("Check() should miss on an expired entry")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, expired entry should be evicted", store.Len())
	}
}

func TestRedisIdempotencyStore(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runIdempotencyStoreTests(t, NewRedisIdempotencyStore(client))
}

func TestRedisIdempotencyStore_expiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisIdempotencyStore(client)
	key := FormatIdempotencyKey("action:wf-1", "client-key-1")
	hash := HashInput([]byte(`{}`))

	if err := store.Store(ctx, key, hash, testCachedResponse(), time.Minute); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	srv.FastForward(2 * time.Minute)

	_, found, err := store.Check(ctx, key, hash)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if found {
		t.Error("Check() should miss after the TTL elapses")
	}
}
