package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/replay"
	"github.com/moonvale/werewolf/backend/internal/store"
)

// testClock is a hand-cranked time source.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// emission is one recorded broadcast.
type emission struct {
	Channel string
	Event   string
	Payload any
}

// recorderBC captures every emit for assertions.
type recorderBC struct {
	mu   sync.Mutex
	Room []emission
	User []emission
}

func (b *recorderBC) EmitRoom(roomID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Room = append(b.Room, emission{roomID, event, payload})
}

func (b *recorderBC) EmitUser(userID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.User = append(b.User, emission{userID, event, payload})
}

func (b *recorderBC) UserEvents(userID, event string) []emission {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []emission
	for _, e := range b.User {
		if e.Channel == userID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeRooms is an in-memory RoomRegistry stub. The engine only needs the
// lookup and the two status flips; seeding happens through put.
type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]*models.Room)}
}

func (f *fakeRooms) put(r *models.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[r.ID] = r
}

func (f *fakeRooms) Get(_ context.Context, roomID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (f *fakeRooms) SetPlaying(_ context.Context, roomID, gameID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomStatusWaiting {
		return nil, ErrNotPlaying
	}
	r.Status = models.RoomStatusPlaying
	r.GameID = gameID
	return r, nil
}

func (f *fakeRooms) MarkEnded(_ context.Context, roomID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	r.Status = models.RoomStatusEnded
	r.GameID = ""
	return r, nil
}

type testEnv struct {
	engine  *Engine
	rooms   *fakeRooms
	ss      *store.MemoryStore
	replays *replay.MemoryStore
	bc      *recorderBC
	clock   *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ss := store.NewMemoryStore()
	bc := &recorderBC{}
	replays := replay.NewMemoryStore()
	clock := newTestClock()
	rooms := newFakeRooms()

	engine := NewEngine(ss, rooms, replays, bc)
	engine.SetClock(clock.Now)
	engine.SetRand(rand.New(rand.NewSource(1)))

	return &testEnv{engine: engine, rooms: rooms, ss: ss, replays: replays, bc: bc, clock: clock}
}

func defaultTestTimers() models.Timers {
	return models.Timers{NightSeconds: 30, DaySpeechSeconds: 60, DayVoteSeconds: 30, SettlementSeconds: 20}
}

// seedGame plants a running game with the given seat roles (seat 1 first) and
// a matching room in playing state. Seat n is user "u<n>".
func (env *testEnv) seedGame(t *testing.T, roles []models.Role) *models.Game {
	t.Helper()
	ctx := context.Background()

	g := &models.Game{
		ID:        "game-1",
		RoomID:    "room-1",
		RoomName:  "测试房间",
		StartedAt: env.clock.Now().UnixMilli(),
		Phase:     models.PhaseNight,
		Timers:    defaultTestTimers(),
		Hints:     make(map[string][]models.LogEntry),
	}
	r := &models.Room{
		ID:         "room-1",
		RoomNumber: "1234",
		Name:       "测试房间",
		Status:     models.RoomStatusPlaying,
		MaxPlayers: len(roles),
		GameID:     g.ID,
		Timers:     g.Timers,
	}
	for i, role := range roles {
		seat := i + 1
		g.Players = append(g.Players, models.GamePlayer{
			Seat:     seat,
			UserID:   fmt.Sprintf("u%d", seat),
			Nickname: fmt.Sprintf("玩家%d", seat),
			Role:     role,
			IsAlive:  true,
		})
		r.Members = append(r.Members, models.RoomMember{
			Seat:     seat,
			UserID:   fmt.Sprintf("u%d", seat),
			Nickname: fmt.Sprintf("玩家%d", seat),
			IsReady:  true,
			IsAlive:  true,
		})
	}
	r.OwnerUserID = "u1"
	env.engine.startNightRole(g, models.RoleWerewolf)

	require.NoError(t, env.engine.saveGame(ctx, g))
	require.NoError(t, env.ss.SAdd(ctx, store.ActiveGames, g.ID))
	env.rooms.put(r)

	return g
}

func (env *testEnv) game(t *testing.T, gameID string) *models.Game {
	t.Helper()
	g, err := env.engine.loadGame(context.Background(), gameID)
	require.NoError(t, err)
	return g
}

// markBot flips a seat to bot in the stored snapshot.
func (env *testEnv) markBot(t *testing.T, gameID string, seats ...int) {
	t.Helper()
	ctx := context.Background()
	g := env.game(t, gameID)
	for _, seat := range seats {
		g.PlayerBySeat(seat).IsBot = true
	}
	require.NoError(t, env.engine.saveGame(ctx, g))
}

func (env *testEnv) act(roomID, userID string, typ models.ActionType, target *int) error {
	_, err := env.engine.SubmitAction(context.Background(), roomID, userID, models.ActionRequest{
		Type:       typ,
		TargetSeat: target,
	})
	return err
}

func (env *testEnv) actUse(roomID, userID string, typ models.ActionType, use bool) error {
	_, err := env.engine.SubmitAction(context.Background(), roomID, userID, models.ActionRequest{
		Type: typ,
		Use:  &use,
	})
	return err
}

// expire moves the clock past the current deadline and ticks the game once.
func (env *testEnv) expire(t *testing.T, gameID string) {
	t.Helper()
	g := env.game(t, gameID)
	lag := g.PhaseEndsAt - env.clock.Now().UnixMilli()
	if lag >= 0 {
		env.clock.Advance(time.Duration(lag+1000) * time.Millisecond)
	}
	_, err := env.engine.AdvanceGameOnTimeout(context.Background(), gameID)
	require.NoError(t, err)
}

func seat(n int) *int { return &n }
