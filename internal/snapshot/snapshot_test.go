package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"sentinelshop/internal/cart"
)

func sampleRecord(sessionID string, at time.Time) Record {
	store := cart.NewStore()
	store.Add(cart.Line{
		ID:         "gabinete-sentinel-pro-black",
		Name:       "Gabinete Sentinel Pro (Negro)",
		Price:      4000,
		Image:      "/frames/0350.webp",
		Attributes: map[string]interface{}{"color": "Negro"},
	})
	store.Add(cart.Line{ID: "gabinete-sentinel-pro-black"})
	return NewRecord(sessionID, store.View(), at)
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.Get(ctx, "cs_missing"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	rec := sampleRecord("cs_test_1", now)
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "cs_test_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Count != 2 || got.Total != 8000 {
		t.Errorf("Expected count 2 total 8000, got %d/%v", got.Count, got.Total)
	}
	line := got.Items["gabinete-sentinel-pro-black"]
	if line.Quantity != 2 || line.Attribute("color") != "Negro" {
		t.Errorf("Unexpected line %+v", line)
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("Expected timestamp %v, got %v", rec.Timestamp, got.Timestamp)
	}

	// Saving again under the same session replaces the record
	rec.Count = 5
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	if got, _ := store.Get(ctx, "cs_test_1"); got.Count != 5 {
		t.Errorf("Expected replaced count 5, got %d", got.Count)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshots.db")
	store, err := NewSQLiteStore(path, 0)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected database file at %s: %v", path, err)
	}
}

func TestSQLiteStorePurge(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"), 0)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	store.Save(ctx, sampleRecord("old", now.Add(-72*time.Hour)))
	store.Save(ctx, sampleRecord("new", now))

	removed, err := store.Purge(ctx, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 purged record, got %d", removed)
	}
	if _, err := store.Get(ctx, "old"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected old record to be gone, got %v", err)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Errorf("Expected new record to survive, got %v", err)
	}
}

func TestSQLiteStoreInMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", 0)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestTTLHidesExpiredRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	memory := NewMemoryStore(time.Hour)
	memory.now = func() time.Time { return now }

	ctx := context.Background()
	memory.Save(ctx, sampleRecord("stale", now.Add(-2*time.Hour)))
	memory.Save(ctx, sampleRecord("fresh", now.Add(-time.Minute)))

	if _, err := memory.Get(ctx, "stale"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected stale record to be hidden, got %v", err)
	}
	if _, err := memory.Get(ctx, "fresh"); err != nil {
		t.Errorf("Expected fresh record, got %v", err)
	}

	removed, _ := memory.Purge(ctx, now.Add(-time.Hour))
	if removed != 1 {
		t.Errorf("Expected 1 purged record, got %d", removed)
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Failed to open memory store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", store)
	}

	store, err = Open(ctx, Options{DBPath: filepath.Join(t.TempDir(), "s.db")})
	if err != nil {
		t.Fatalf("Failed to open default store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("Expected default *SQLiteStore, got %T", store)
	}

	if _, err := Open(ctx, Options{Backend: "mongo"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
	if _, err := Open(ctx, Options{Backend: "redis"}); err == nil {
		t.Error("Expected error for redis without address")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, Options{Backend: "redis", RedisAddr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("Failed to open redis store: %v", err)
	}
	defer store.Close()

	id := "cs_test_" + uuid.NewString()
	rec := sampleRecord(id, time.Now())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Count != rec.Count || got.Total != rec.Total {
		t.Errorf("Expected %d/%v, got %d/%v", rec.Count, rec.Total, got.Count, got.Total)
	}
	if _, err := store.Get(ctx, "cs_missing_"+uuid.NewString()); errors.Cause(err) != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
