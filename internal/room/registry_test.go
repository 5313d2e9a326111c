package room

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonvale/werewolf/backend/internal/game"
	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/store"
)

type fakeBC struct {
	mu   sync.Mutex
	room []string
	user map[string][]string
}

func (b *fakeBC) EmitRoom(roomID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, event)
}

func (b *fakeBC) EmitUser(userID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.user == nil {
		b.user = make(map[string][]string)
	}
	b.user[userID] = append(b.user[userID], event)
}

func newTestRegistry() (*Registry, *fakeBC, *store.MemoryStore) {
	ss := store.NewMemoryStore()
	bc := &fakeBC{}
	r := NewRegistry(nil, ss, bc)
	return r, bc, ss
}

func createRoom(t *testing.T, r *Registry, maxPlayers int) *models.Room {
	t.Helper()
	room, err := r.Create(context.Background(), "owner", "房主", models.CreateRoomRequest{
		Name:       "开黑房",
		MaxPlayers: maxPlayers,
	})
	require.NoError(t, err)
	return room
}

func TestCreateRoomDefaults(t *testing.T) {
	r, _, _ := newTestRegistry()
	room := createRoom(t, r, 8)

	assert.Regexp(t, regexp.MustCompile(`^\d{4}$`), room.RoomNumber)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, "owner", room.OwnerUserID)
	require.Len(t, room.Members, 8)
	assert.Equal(t, "owner", room.Members[0].UserID)
	assert.Equal(t, 1, room.Members[0].Seat)

	// Eight seats get the mid-table composition.
	assert.Equal(t, models.RoleConfig{Werewolf: 2, Seer: 1, Witch: 1, Hunter: 1}, room.Roles)
	assert.Equal(t, 30, room.Timers.NightSeconds)
}

func TestCreateRoomRejectsBadSize(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.Create(context.Background(), "owner", "房主", models.CreateRoomRequest{
		Name:       "太小",
		MaxPlayers: 2,
	})
	assert.ErrorIs(t, err, game.ErrInvalidRoleConfig)
}

func TestJoinSeatsInOrderAndFills(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()
	room := createRoom(t, r, 4)

	for i, uid := range []string{"a", "b", "c"} {
		got, err := r.Join(ctx, room.ID, uid, uid)
		require.NoError(t, err)
		assert.Equal(t, uid, got.Members[i+1].UserID)
	}

	_, err := r.Join(ctx, room.ID, "d", "d")
	assert.ErrorIs(t, err, game.ErrRoomFull)

	// Rejoining an occupied seat is a no-op, not an error.
	got, err := r.Join(ctx, room.ID, "b", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Members[2].UserID)
}

func TestGetByNumber(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()
	room := createRoom(t, r, 4)

	got, err := r.GetByNumber(ctx, room.RoomNumber)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	_, err = r.GetByNumber(ctx, "0000")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestReadyAndBots(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()
	room := createRoom(t, r, 4)

	got, err := r.SetReady(ctx, room.ID, "owner", true)
	require.NoError(t, err)
	assert.True(t, got.Members[0].IsReady)

	_, err = r.AddBot(ctx, room.ID, "stranger")
	assert.ErrorIs(t, err, game.ErrOnlyOwnerMayConfig)

	got, err = r.AddBot(ctx, room.ID, "owner")
	require.NoError(t, err)
	bot := got.Members[1]
	assert.True(t, bot.IsBot)
	assert.True(t, bot.IsReady)
	assert.Equal(t, "机器人2号", bot.Nickname)
}

func TestKickNotifiesTheKicked(t *testing.T) {
	r, bc, _ := newTestRegistry()
	ctx := context.Background()
	room := createRoom(t, r, 4)
	_, err := r.Join(ctx, room.ID, "b", "b")
	require.NoError(t, err)

	_, err = r.Kick(ctx, room.ID, "b", 1)
	assert.ErrorIs(t, err, game.ErrOnlyOwnerMayConfig)

	// Owners cannot kick themselves or an empty seat.
	_, err = r.Kick(ctx, room.ID, "owner", 1)
	assert.ErrorIs(t, err, game.ErrTargetInvalid)
	_, err = r.Kick(ctx, room.ID, "owner", 4)
	assert.ErrorIs(t, err, game.ErrTargetInvalid)

	got, err := r.Kick(ctx, room.ID, "owner", 2)
	require.NoError(t, err)
	assert.Empty(t, got.Members[1].UserID)
	assert.Contains(t, bc.user["b"], models.WSEventToast)
}

func TestConfigureValidatesComposition(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()
	room := createRoom(t, r, 4)

	bad := models.RoleConfig{Werewolf: 3, Seer: 1, Witch: 1}
	_, err := r.Configure(ctx, room.ID, "owner", models.RoomConfigRequest{Roles: &bad})
	assert.ErrorIs(t, err, game.ErrInvalidRoleConfig)

	good := models.RoleConfig{Werewolf: 1, Seer: 1}
	timers := models.Timers{NightSeconds: 5, DaySpeechSeconds: 1200}
	got, err := r.Configure(ctx, room.ID, "owner", models.RoomConfigRequest{Roles: &good, Timers: &timers})
	require.NoError(t, err)
	assert.Equal(t, good, got.Roles)

	// Timers are clamped into their allowed windows.
	assert.Equal(t, 10, got.Timers.NightSeconds)
	assert.Equal(t, 600, got.Timers.DaySpeechSeconds)
}

func TestLeaveTransfersOwnershipThenDissolves(t *testing.T) {
	r, bc, ss := newTestRegistry()
	ctx := context.Background()
	room := createRoom(t, r, 4)
	_, err := r.Join(ctx, room.ID, "b", "b")
	require.NoError(t, err)
	_, err = r.AddBot(ctx, room.ID, "owner")
	require.NoError(t, err)

	require.NoError(t, r.Leave(ctx, room.ID, "owner"))
	got, err := r.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.OwnerUserID, "ownership skips the bot")

	// The last human out takes the room with them.
	require.NoError(t, r.Leave(ctx, room.ID, "b"))
	_, err = r.Get(ctx, room.ID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
	assert.Contains(t, bc.room, models.WSEventRoomDissolved)

	keys, err := ss.Keys(ctx, store.RoomKeyPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSweepDissolvesIdleWaitingRooms(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	r.SetClock(func() time.Time { return now })

	idle := createRoom(t, r, 4)
	playing := createRoom(t, r, 4)
	_, err := r.SetPlaying(ctx, playing.ID, "game-1")
	require.NoError(t, err)

	now = now.Add(WaitingExpiry + time.Second)
	fresh := createRoom(t, r, 4)

	r.Sweep(ctx)

	_, err = r.Get(ctx, idle.ID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	// Playing and recently active rooms survive.
	_, err = r.Get(ctx, playing.ID)
	assert.NoError(t, err)
	_, err = r.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestListReturnsWaitingOnly(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()

	createRoom(t, r, 4)
	playing := createRoom(t, r, 4)
	_, err := r.SetPlaying(ctx, playing.ID, "game-1")
	require.NoError(t, err)

	rooms, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, models.RoomStatusWaiting, rooms[0].Status)
}
