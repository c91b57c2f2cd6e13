// Package prefs stores lightweight per-user UI preferences.
package prefs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	ViewModeCards = "cards"
	ViewModeTable = "table"
)

func ValidViewMode(mode string) bool {
	return mode == ViewModeCards || mode == ViewModeTable
}

// Store persists preferences in Redis. Preferences are best-effort state;
// a missing entry just falls back to the default.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func NewStoreFromURL(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewStore(redis.NewClient(opts)), nil
}

func (s *Store) key(userID string) string {
	return "prefs:viewmode:" + userID
}

// ViewMode returns the user's board view mode, defaulting to cards.
func (s *Store) ViewMode(ctx context.Context, userID string) (string, error) {
	mode, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return ViewModeCards, nil
	}
	if err != nil {
		return "", fmt.Errorf("get view mode: %w", err)
	}
	if !ValidViewMode(mode) {
		return ViewModeCards, nil
	}
	return mode, nil
}

func (s *Store) SetViewMode(ctx context.Context, userID, mode string) error {
	if !ValidViewMode(mode) {
		return fmt.Errorf("invalid view mode %q", mode)
	}
	if err := s.client.Set(ctx, s.key(userID), mode, 0).Err(); err != nil {
		return fmt.Errorf("set view mode: %w", err)
	}
	return nil
}
