package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonvale/werewolf/backend/internal/models"
)

// Store is the append-only archive of finished games. One row per game,
// written exactly once when the winner is decided.
type Store interface {
	Save(ctx context.Context, r *models.Replay) error
	Get(ctx context.Context, id string) (*models.Replay, error)
	ListByUser(ctx context.Context, userID string) ([]models.Replay, error)
}

// PGStore persists replays in the replays table, events as JSONB.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Save(ctx context.Context, r *models.Replay) error {
	eventsJSON, err := json.Marshal(r.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal replay events: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO replays (id, game_id, room_id, room_name, owner_user_ids,
			created_at, duration_ms, result_summary, events)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.GameID, r.RoomID, r.RoomName, r.OwnerUserIDs,
		r.CreatedAt, r.DurationMs, r.ResultSummary, eventsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert replay: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*models.Replay, error) {
	var r models.Replay
	var eventsJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, game_id, room_id, room_name, owner_user_ids,
		       created_at, duration_ms, result_summary, events
		FROM replays WHERE id = $1
	`, id).Scan(&r.ID, &r.GameID, &r.RoomID, &r.RoomName, &r.OwnerUserIDs,
		&r.CreatedAt, &r.DurationMs, &r.ResultSummary, &eventsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load replay %s: %w", id, err)
	}
	if err := json.Unmarshal(eventsJSON, &r.Events); err != nil {
		return nil, fmt.Errorf("failed to parse replay events: %w", err)
	}
	return &r, nil
}

// ListByUser returns replay summaries (no events) for games the user sat in,
// newest first.
func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]models.Replay, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, game_id, room_id, room_name, owner_user_ids,
		       created_at, duration_ms, result_summary
		FROM replays
		WHERE $1 = ANY(owner_user_ids)
		ORDER BY created_at DESC
		LIMIT 100
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query replays: %w", err)
	}
	defer rows.Close()

	var out []models.Replay
	for rows.Next() {
		var r models.Replay
		if err := rows.Scan(&r.ID, &r.GameID, &r.RoomID, &r.RoomName, &r.OwnerUserIDs,
			&r.CreatedAt, &r.DurationMs, &r.ResultSummary); err != nil {
			return nil, fmt.Errorf("failed to scan replay: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MemoryStore keeps replays in memory; used by tests.
type MemoryStore struct {
	Replays []models.Replay
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(_ context.Context, r *models.Replay) error {
	cp := *r
	s.Replays = append(s.Replays, cp)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Replay, error) {
	for i := range s.Replays {
		if s.Replays[i].ID == id {
			return &s.Replays[i], nil
		}
	}
	return nil, fmt.Errorf("replay %s not found", id)
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.Replay, error) {
	var out []models.Replay
	for _, r := range s.Replays {
		for _, uid := range r.OwnerUserIDs {
			if uid == userID {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// Summary is the list-view projection sent to clients.
type Summary struct {
	ID            string    `json:"id"`
	GameID        string    `json:"game_id"`
	RoomName      string    `json:"room_name"`
	CreatedAt     time.Time `json:"created_at"`
	DurationMs    int64     `json:"duration_ms"`
	ResultSummary string    `json:"result_summary"`
}

// Summarize strips the event payloads for listing.
func Summarize(rs []models.Replay) []Summary {
	out := make([]Summary, 0, len(rs))
	for _, r := range rs {
		out = append(out, Summary{
			ID:            r.ID,
			GameID:        r.GameID,
			RoomName:      r.RoomName,
			CreatedAt:     r.CreatedAt,
			DurationMs:    r.DurationMs,
			ResultSummary: r.ResultSummary,
		})
	}
	return out
}
