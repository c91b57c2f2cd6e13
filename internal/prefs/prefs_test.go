package prefs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupStore(t *testing.T) *Store {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestViewModeDefaultsToCards(t *testing.T) {
	store := setupStore(t)

	mode, err := store.ViewMode(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ViewMode() error = %v", err)
	}
	if mode != ViewModeCards {
		t.Errorf("ViewMode() = %q, want %q", mode, ViewModeCards)
	}
}

func TestSetAndGetViewMode(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.SetViewMode(ctx, "user-1", ViewModeTable); err != nil {
		t.Fatalf("SetViewMode() error = %v", err)
	}
	mode, err := store.ViewMode(ctx, "user-1")
	if err != nil {
		t.Fatalf("ViewMode() error = %v", err)
	}
	if mode != ViewModeTable {
		t.Errorf("ViewMode() = %q, want %q", mode, ViewModeTable)
	}

	// the preference is per user
	other, err := store.ViewMode(ctx, "user-2")
	if err != nil {
		t.Fatalf("ViewMode() error = %v", err)
	}
	if other != ViewModeCards {
		t.Errorf("ViewMode() for other user = %q, want %q", other, ViewModeCards)
	}
}

func TestSetViewModeRejectsUnknown(t *testing.T) {
	store := setupStore(t)

	if err := store.SetViewMode(context.Background(), "user-1", "grid"); err == nil {
		t.Fatal("expected error for unknown view mode")
	}
}
