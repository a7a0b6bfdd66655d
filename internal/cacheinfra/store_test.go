package cacheinfra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestOpenDB_UnsupportedDriver(t *testing.T) {
	_, err := OpenDB("oracle", "")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}

func TestStore_PutAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	token := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	got, err := store.Lookup(ctx, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no record, got %+v", got)
	}

	if err := store.Put(ctx, 1, 1, token, "<a/>"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err = store.Lookup(ctx, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Payload != "<a/>" {
		t.Fatalf("expected stored payload, got %+v", got)
	}
	if !got.FreshnessToken.Equal(token) {
		t.Errorf("expected token %v, got %v", token, got.FreshnessToken)
	}
}

func TestStore_PutUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	if err := store.Put(ctx, 1, 1, t1, "<a/>"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	first, _ := store.Lookup(ctx, 1, 1)

	// same token keeps the stored payload
	if err := store.Put(ctx, 1, 1, t1, "<ignored/>"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, _ := store.Lookup(ctx, 1, 1)
	if got.Payload != "<a/>" {
		t.Errorf("expected payload to stay <a/>, got %s", got.Payload)
	}

	if err := store.Put(ctx, 1, 1, t2, "<b/>"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, _ = store.Lookup(ctx, 1, 1)
	if got.Payload != "<b/>" || !got.FreshnessToken.Equal(t2) {
		t.Errorf("expected replaced entry, got %+v", got)
	}
	if got.ID != first.ID {
		t.Errorf("expected row id to be kept, got %s and %s", first.ID, got.ID)
	}

	records, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly one row, got %d", len(records))
	}
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	token := time.Now().UTC()

	removed, err := store.Remove(ctx, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed {
		t.Error("expected false for missing entry")
	}

	_ = store.Put(ctx, 1, 1, token, "<a/>")
	removed, err = store.Remove(ctx, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed {
		t.Error("expected true for existing entry")
	}
	if got, _ := store.Lookup(ctx, 1, 1); got != nil {
		t.Errorf("expected entry to be gone, got %+v", got)
	}
}

func TestStore_RemoveEntityAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	token := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_ = store.Put(ctx, 2, 1, token, "<a/>")
	_ = store.Put(ctx, 1, 1, token, "<a/>")
	_ = store.Put(ctx, 1, 2, token, "<a/>")

	records, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 || records[0].EntityID != 1 || records[1].EntityID != 2 {
		t.Fatalf("expected entities 1 and 2 in order, got %+v", records)
	}
	if records[0].Payload != "" {
		t.Error("expected list to skip payloads")
	}

	n, err := store.RemoveEntity(ctx, 1)
	if err != nil {
		t.Fatalf("remove entity failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows removed, got %d", n)
	}
	if got, _ := store.Lookup(ctx, 2, 1); got == nil {
		t.Error("expected other entity to survive")
	}
}
