package store

import (
	"context"
	"time"
)

// Key schema used across the backend. Game and room runtime state live in
// opaque blobs; the active set drives the timer pump.
const (
	GameKeyPrefix = "gamert:"
	RoomKeyPrefix = "roomrt:"
	ActiveGames   = "games:active"
)

func GameKey(gameID string) string { return GameKeyPrefix + gameID }
func RoomKey(roomID string) string { return RoomKeyPrefix + roomID }

// SnapshotStore is the key-value + set port backing game and room runtime
// snapshots. The engine never reaches a concrete client directly; tests
// substitute the in-memory implementation.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil when missing
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	SAdd(ctx context.Context, set, member string) error
	SRem(ctx context.Context, set, member string) error
	SMembers(ctx context.Context, set string) ([]string, error)

	// Keys enumerates keys under prefix; used by expiry sweeps, so an
	// approximate view is acceptable.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
