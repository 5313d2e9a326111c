package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/store"
)

func TestComputeWinner(t *testing.T) {
	mk := func(alive ...models.Role) []models.GamePlayer {
		out := make([]models.GamePlayer, len(alive))
		for i, r := range alive {
			out[i] = models.GamePlayer{Seat: i + 1, Role: r, IsAlive: true}
		}
		return out
	}

	assert.Equal(t, models.WinnerNone, computeWinner(mk(
		models.RoleWerewolf, models.RoleSeer, models.RoleVillager,
	)))
	assert.Equal(t, models.WinnerVillagers, computeWinner(mk(
		models.RoleSeer, models.RoleVillager,
	)))
	assert.Equal(t, models.WinnerWerewolf, computeWinner(mk(
		models.RoleWerewolf, models.RoleVillager,
	)))
	assert.Equal(t, models.WinnerWerewolf, computeWinner(mk(
		models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager,
	)))

	// The dead do not count toward parity.
	players := mk(models.RoleWerewolf, models.RoleVillager, models.RoleVillager)
	players[0].IsAlive = false
	assert.Equal(t, models.WinnerVillagers, computeWinner(players))
}

// A four-seat game played to the wolf win: night kill, speeches, then the
// table lynches the wrong villager.
func TestFullGameToWolfVictory(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleSeer, models.RoleVillager, models.RoleVillager,
	})
	ctx := context.Background()

	require.NoError(t, env.act(g.RoomID, "u1", models.ActionWolfKill, seat(2)))
	require.NoError(t, env.act(g.RoomID, "u2", models.ActionSeerCheck, seat(1)))

	cur := env.game(t, g.ID)
	require.Equal(t, models.PhaseDaySpeech, cur.Phase)
	require.False(t, cur.PlayerBySeat(2).IsAlive)

	// The seer learned the truth before dying.
	hints := cur.Hints["u2"]
	require.NotEmpty(t, hints)
	assert.Contains(t, hints[len(hints)-1].Text, "狼人")

	for _, uid := range []string{"u3", "u4", "u1"} {
		require.NoError(t, env.act(g.RoomID, uid, models.ActionNextSpeaker, nil))
	}
	require.Equal(t, models.PhaseDayVote, env.game(t, g.ID).Phase)

	require.NoError(t, env.act(g.RoomID, "u1", models.ActionDayVote, seat(3)))
	require.NoError(t, env.act(g.RoomID, "u4", models.ActionDayVote, seat(3)))
	require.NoError(t, env.act(g.RoomID, "u3", models.ActionDayVote, seat(4)))

	cur = env.game(t, g.ID)
	require.Equal(t, models.PhaseGameOver, cur.Phase)
	assert.Equal(t, models.WinnerWerewolf, cur.Winner)
	assert.Contains(t, cur.PublicLog[len(cur.PublicLog)-1].Text, "狼人胜利")

	var result *models.GameEvent
	for i := range cur.Events {
		if cur.Events[i].Type == models.EventGameResult {
			result = &cur.Events[i]
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, models.WinnerWerewolf, result.Payload.Winner)
	assert.Equal(t, models.RoleWerewolf, result.Payload.Roles["1"])
	assert.Equal(t, models.RoleSeer, result.Payload.Roles["2"])

	// Every human got pointed at the replay.
	for _, uid := range []string{"u1", "u2", "u3", "u4"} {
		hints := cur.Hints[uid]
		require.NotEmpty(t, hints)
		assert.Contains(t, hints[len(hints)-1].Text, g.ID)
	}

	// The replay is archived under the game id for all four players.
	rep, err := env.replays.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, rep.OwnerUserIDs)
	assert.Equal(t, "werewolves", rep.ResultSummary)
	assert.Equal(t, cur.Events, rep.Events)

	// The pump stops seeing the game and the room is released.
	active, err := env.ss.SMembers(ctx, store.ActiveGames)
	require.NoError(t, err)
	assert.NotContains(t, active, g.ID)

	room, err := env.rooms.Get(ctx, g.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusEnded, room.Status)
	assert.Empty(t, room.GameID)
}
