package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *BoltStore {
	t.Helper()
	store, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt(%s): %v", path, err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "timers.db"))

	if _, ok, err := store.Load(ctx, "room-a"); err != nil || ok {
		t.Fatalf("Load(absent) = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if err := store.Save(ctx, "room-a", 1724968800000); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := store.Load(ctx, "room-a")
	if err != nil || !ok || got != 1724968800000 {
		t.Fatalf("Load = (%d, %v, %v), want (1724968800000, true, nil)", got, ok, err)
	}

	// Rooms are isolated keys.
	if _, ok, _ := store.Load(ctx, "room-b"); ok {
		t.Error("Load(room-b) found a value saved under room-a")
	}

	if err := store.Delete(ctx, "room-a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "room-a"); ok {
		t.Error("Load found a value after Delete")
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "room-a"); err != nil {
		t.Errorf("Delete(absent): %v", err)
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timers.db")

	store, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	if err := store.Save(ctx, "room-a", 99); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestStore(t, path)
	got, ok, err := reopened.Load(ctx, "room-a")
	if err != nil || !ok || got != 99 {
		t.Fatalf("Load after reopen = (%d, %v, %v), want (99, true, nil)", got, ok, err)
	}
}

func TestBoltStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "timers.db"))

	if err := store.Save(ctx, "room-a", 1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "room-a", 2); err != nil {
		t.Fatalf("Save(overwrite): %v", err)
	}
	got, _, _ := store.Load(ctx, "room-a")
	if got != 2 {
		t.Errorf("Load = %d, want 2", got)
	}
}
