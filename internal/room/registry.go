package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonvale/werewolf/backend/internal/game"
	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/store"
)

const (
	// Waiting rooms are dissolved after this much inactivity.
	WaitingExpiry = 120 * time.Second
	SweepInterval = 30 * time.Second

	MinPlayers = 4
	MaxPlayers = 18
)

// Broadcaster is the fan-out surface the registry needs for room updates.
type Broadcaster interface {
	EmitRoom(roomID, event string, payload any)
	EmitUser(userID, event string, payload any)
}

// Registry owns room membership, seating, ready flags, and configuration.
// Runtime state lives in the snapshot store under roomrt:<roomId>; a durable
// metadata row is kept in Postgres. All mutations to one room are serialized
// by a per-room lock spanning the whole read-modify-write.
type Registry struct {
	db    *pgxpool.Pool // optional; nil skips durable rows (tests)
	store store.SnapshotStore
	bc    Broadcaster
	locks *store.KeyedMutex
	now   func() time.Time
	rng   *rand.Rand
}

func NewRegistry(db *pgxpool.Pool, ss store.SnapshotStore, bc Broadcaster) *Registry {
	return &Registry{
		db:    db,
		store: ss,
		bc:    bc,
		locks: store.NewKeyedMutex(),
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock overrides the registry clock; tests only.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func defaultTimers() models.Timers {
	return models.Timers{
		NightSeconds:      30,
		DaySpeechSeconds:  60,
		DayVoteSeconds:    30,
		SettlementSeconds: 20,
	}
}

func clampTimers(t models.Timers) models.Timers {
	clamp := func(v, def, min, max int) int {
		if v == 0 {
			return def
		}
		if v < min {
			return min
		}
		if v > max {
			return max
		}
		return v
	}
	d := defaultTimers()
	return models.Timers{
		NightSeconds:      clamp(t.NightSeconds, d.NightSeconds, 10, 300),
		DaySpeechSeconds:  clamp(t.DaySpeechSeconds, d.DaySpeechSeconds, 10, 600),
		DayVoteSeconds:    clamp(t.DayVoteSeconds, d.DayVoteSeconds, 10, 300),
		SettlementSeconds: clamp(t.SettlementSeconds, d.SettlementSeconds, 10, 120),
	}
}

// Create opens a room owned by ownerID and seats the owner at seat 1.
func (r *Registry) Create(ctx context.Context, ownerID, nickname string, req models.CreateRoomRequest) (*models.Room, error) {
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = 8
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, game.ErrInvalidRoleConfig
	}

	roles := req.Roles
	if roles.Werewolf == 0 {
		roles = defaultRoles(maxPlayers)
	}
	if err := game.ValidateRoleConfig(maxPlayers, roles); err != nil {
		return nil, err
	}

	now := r.now()
	room := &models.Room{
		ID:             uuid.NewString(),
		RoomNumber:     fmt.Sprintf("%04d", 1000+r.rng.Intn(9000)),
		Name:           req.Name,
		OwnerUserID:    ownerID,
		Status:         models.RoomStatusWaiting,
		MaxPlayers:     maxPlayers,
		CreatedAt:      now,
		LastActivityAt: now,
		Roles:          roles,
		Timers:         clampTimers(req.Timers),
	}
	room.Members = make([]models.RoomMember, maxPlayers)
	for i := range room.Members {
		room.Members[i] = models.RoomMember{Seat: i + 1}
	}
	room.Members[0].UserID = ownerID
	room.Members[0].Nickname = nickname

	if r.db != nil {
		_, err := r.db.Exec(ctx, `
			INSERT INTO rooms (id, name, owner_user_id, status, max_players, room_number, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, room.ID, room.Name, room.OwnerUserID, room.Status, room.MaxPlayers, room.RoomNumber, room.CreatedAt)
		if err != nil {
			return nil, game.DBErr(err)
		}
	}

	if err := r.save(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// defaultRoles picks a standard composition for the table size.
func defaultRoles(maxPlayers int) models.RoleConfig {
	switch {
	case maxPlayers <= 6:
		return models.RoleConfig{Werewolf: 1, Seer: 1, Witch: 1}
	case maxPlayers <= 9:
		return models.RoleConfig{Werewolf: 2, Seer: 1, Witch: 1, Hunter: 1}
	case maxPlayers < 12:
		return models.RoleConfig{Werewolf: 3, Seer: 1, Witch: 1, Hunter: 1}
	default:
		return models.RoleConfig{Werewolf: 4, Seer: 1, Witch: 1, Hunter: 1, Guard: 1}
	}
}

// Get loads the runtime room state.
func (r *Registry) Get(ctx context.Context, roomID string) (*models.Room, error) {
	return r.load(ctx, roomID)
}

// GetByNumber resolves a room by its 4-digit display number.
func (r *Registry) GetByNumber(ctx context.Context, number string) (*models.Room, error) {
	keys, err := r.store.Keys(ctx, store.RoomKeyPrefix)
	if err != nil {
		return nil, game.SnapshotErr(err)
	}
	for _, key := range keys {
		room, err := r.loadKey(ctx, key)
		if err != nil {
			continue
		}
		if room.RoomNumber == number {
			return room, nil
		}
	}
	return nil, game.ErrRoomNotFound
}

// List returns all rooms still in waiting state.
func (r *Registry) List(ctx context.Context) ([]*models.Room, error) {
	keys, err := r.store.Keys(ctx, store.RoomKeyPrefix)
	if err != nil {
		return nil, game.SnapshotErr(err)
	}
	var out []*models.Room
	for _, key := range keys {
		room, err := r.loadKey(ctx, key)
		if err != nil {
			continue
		}
		if room.Status == models.RoomStatusWaiting {
			out = append(out, room)
		}
	}
	return out, nil
}

// Join seats userID at the first open seat.
func (r *Registry) Join(ctx context.Context, roomID, userID, nickname string) (*models.Room, error) {
	return r.update(ctx, roomID, func(room *models.Room) error {
		if room.Status != models.RoomStatusWaiting {
			return game.ErrNotPlaying
		}
		if room.MemberByUserID(userID) != nil {
			return nil // already seated, idempotent
		}
		for i := range room.Members {
			if room.Members[i].UserID == "" {
				room.Members[i] = models.RoomMember{
					Seat:     room.Members[i].Seat,
					UserID:   userID,
					Nickname: nickname,
				}
				return nil
			}
		}
		return game.ErrRoomFull
	})
}

// Leave vacates the user's seat. The room dissolves when the last human
// leaves; ownership moves to the next human otherwise.
func (r *Registry) Leave(ctx context.Context, roomID, userID string) error {
	room, err := r.update(ctx, roomID, func(room *models.Room) error {
		m := room.MemberByUserID(userID)
		if m == nil {
			return game.ErrNotInGame
		}
		*m = models.RoomMember{Seat: m.Seat}

		if room.OwnerUserID == userID {
			for _, cand := range room.Members {
				if cand.UserID != "" && !cand.IsBot {
					room.OwnerUserID = cand.UserID
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !hasHuman(room) {
		return r.Dissolve(ctx, roomID, "empty")
	}
	return nil
}

func hasHuman(room *models.Room) bool {
	for _, m := range room.Members {
		if m.UserID != "" && !m.IsBot {
			return true
		}
	}
	return false
}

// SetReady flips the ready flag on the user's seat.
func (r *Registry) SetReady(ctx context.Context, roomID, userID string, ready bool) (*models.Room, error) {
	return r.update(ctx, roomID, func(room *models.Room) error {
		m := room.MemberByUserID(userID)
		if m == nil {
			return game.ErrNotInGame
		}
		m.IsReady = ready
		return nil
	})
}

// AddBot seats a ready bot at the first open seat; owner only.
func (r *Registry) AddBot(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return r.update(ctx, roomID, func(room *models.Room) error {
		if room.OwnerUserID != requesterID {
			return game.ErrOnlyOwnerMayConfig
		}
		if room.Status != models.RoomStatusWaiting {
			return game.ErrNotPlaying
		}
		for i := range room.Members {
			if room.Members[i].UserID == "" {
				seat := room.Members[i].Seat
				room.Members[i] = models.RoomMember{
					Seat:     seat,
					UserID:   "bot:" + uuid.NewString(),
					Nickname: fmt.Sprintf("机器人%d号", seat),
					IsReady:  true,
					IsBot:    true,
				}
				return nil
			}
		}
		return game.ErrRoomFull
	})
}

// Kick vacates a seat; owner only.
func (r *Registry) Kick(ctx context.Context, roomID, requesterID string, seat int) (*models.Room, error) {
	return r.update(ctx, roomID, func(room *models.Room) error {
		if room.OwnerUserID != requesterID {
			return game.ErrOnlyOwnerMayConfig
		}
		if seat < 1 || seat > len(room.Members) {
			return game.ErrTargetInvalid
		}
		m := &room.Members[seat-1]
		if m.UserID == "" || m.UserID == requesterID {
			return game.ErrTargetInvalid
		}
		kicked := m.UserID
		*m = models.RoomMember{Seat: seat}
		r.bc.EmitUser(kicked, models.WSEventToast, map[string]any{"code": "KICKED"})
		return nil
	})
}

// Configure replaces role composition and timers; owner only, waiting only.
func (r *Registry) Configure(ctx context.Context, roomID, requesterID string, req models.RoomConfigRequest) (*models.Room, error) {
	return r.update(ctx, roomID, func(room *models.Room) error {
		if room.OwnerUserID != requesterID {
			return game.ErrOnlyOwnerMayConfig
		}
		if room.Status != models.RoomStatusWaiting {
			return game.ErrNotPlaying
		}
		if req.Roles != nil {
			if err := game.ValidateRoleConfig(room.MaxPlayers, *req.Roles); err != nil {
				return err
			}
			room.Roles = *req.Roles
		}
		if req.Timers != nil {
			room.Timers = clampTimers(*req.Timers)
		}
		return nil
	})
}

// SetPlaying transitions the room into a running game. Called by the engine
// once the game snapshot exists.
func (r *Registry) SetPlaying(ctx context.Context, roomID, gameID string) (*models.Room, error) {
	room, err := r.update(ctx, roomID, func(room *models.Room) error {
		if room.Status != models.RoomStatusWaiting {
			return game.ErrNotPlaying
		}
		room.Status = models.RoomStatusPlaying
		room.GameID = gameID
		for i := range room.Members {
			if room.Members[i].UserID != "" {
				room.Members[i].IsAlive = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.updateStatus(ctx, roomID, models.RoomStatusPlaying)
	return room, nil
}

// MarkEnded is called by the engine at game completion.
func (r *Registry) MarkEnded(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := r.update(ctx, roomID, func(room *models.Room) error {
		room.Status = models.RoomStatusEnded
		room.GameID = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.updateStatus(ctx, roomID, models.RoomStatusEnded)
	return room, nil
}

// Dissolve removes the room entirely and tells subscribers.
func (r *Registry) Dissolve(ctx context.Context, roomID, reason string) error {
	r.locks.Lock(roomID)
	defer r.locks.Unlock(roomID)

	if err := r.store.Del(ctx, store.RoomKey(roomID)); err != nil {
		return game.SnapshotErr(err)
	}
	r.updateStatus(ctx, roomID, models.RoomStatusEnded)
	r.bc.EmitRoom(roomID, models.WSEventRoomDissolved, map[string]any{
		"room_id": roomID,
		"reason":  reason,
	})
	return nil
}

// Start runs the waiting-expiry sweep until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	log.Printf("[Rooms] expiry sweep started (every %v, expiry %v)", SweepInterval, WaitingExpiry)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Rooms] expiry sweep stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep dissolves waiting rooms idle past the expiry window.
func (r *Registry) Sweep(ctx context.Context) {
	keys, err := r.store.Keys(ctx, store.RoomKeyPrefix)
	if err != nil {
		log.Printf("[Rooms] sweep: failed to enumerate rooms: %v", err)
		return
	}
	cutoff := r.now().Add(-WaitingExpiry)
	for _, key := range keys {
		room, err := r.loadKey(ctx, key)
		if err != nil {
			continue
		}
		if room.Status == models.RoomStatusWaiting && room.LastActivityAt.Before(cutoff) {
			log.Printf("[Rooms] dissolving idle room %s (%s)", room.RoomNumber, room.ID)
			if err := r.Dissolve(ctx, room.ID, "expired"); err != nil {
				log.Printf("[Rooms] failed to dissolve room %s: %v", room.ID, err)
			}
		}
	}
}

// ============================================================================
// Snapshot plumbing
// ============================================================================

func (r *Registry) load(ctx context.Context, roomID string) (*models.Room, error) {
	return r.loadKey(ctx, store.RoomKey(roomID))
}

func (r *Registry) loadKey(ctx context.Context, key string) (*models.Room, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, game.SnapshotErr(err)
	}
	if data == nil {
		return nil, game.ErrRoomNotFound
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to parse room snapshot: %w", err)
	}
	return &room, nil
}

func (r *Registry) save(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room snapshot: %w", err)
	}
	if err := r.store.Set(ctx, store.RoomKey(room.ID), data, 0); err != nil {
		return game.SnapshotErr(err)
	}
	return nil
}

// update runs mutate inside the per-room lock and broadcasts the new state.
func (r *Registry) update(ctx context.Context, roomID string, mutate func(*models.Room) error) (*models.Room, error) {
	r.locks.Lock(roomID)
	defer r.locks.Unlock(roomID)

	room, err := r.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := mutate(room); err != nil {
		return nil, err
	}
	room.LastActivityAt = r.now()
	if err := r.save(ctx, room); err != nil {
		return nil, err
	}
	r.bc.EmitRoom(roomID, models.WSEventRoomState, room)
	return room, nil
}

func (r *Registry) updateStatus(ctx context.Context, roomID string, status models.RoomStatus) {
	if r.db == nil {
		return
	}
	if _, err := r.db.Exec(ctx, `UPDATE rooms SET status = $1 WHERE id = $2`, status, roomID); err != nil {
		log.Printf("[Rooms] failed to persist status for %s: %v", roomID, err)
	}
}
