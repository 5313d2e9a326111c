package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonvale/werewolf/backend/internal/models"
)

func TestWolfVictimTieBreaksByInsertionOrder(t *testing.T) {
	g := &models.Game{}
	g.Night.WolfVotes = []models.WolfVote{
		{UserID: "u1", Seat: 6},
		{UserID: "u2", Seat: 3},
	}
	assert.Equal(t, 6, wolfVictim(g), "first seat to reach the top count wins the tie")

	g.Night.WolfVotes = []models.WolfVote{
		{UserID: "u1", Seat: 6},
		{UserID: "u2", Seat: 3},
		{UserID: "u3", Seat: 3},
	}
	assert.Equal(t, 3, wolfVictim(g))

	g.Night.WolfVotes = nil
	assert.Equal(t, 0, wolfVictim(g), "no votes means no victim")
}

func TestNightWrongTurnAndWrongRole(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleSeer,
		models.RoleWitch, models.RoleVillager, models.RoleVillager,
	})

	// Seer cannot check while the wolves are up.
	err := env.act(g.RoomID, "u3", models.ActionSeerCheck, seat(1))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	// A villager cannot submit a wolf action at all.
	err = env.act(g.RoomID, "u2", models.ActionWolfKill, seat(3))
	assert.ErrorIs(t, err, ErrPhaseForbidsAction)

	// A wolf cannot target a wolf.
	err = env.act(g.RoomID, "u1", models.ActionWolfKill, seat(1))
	assert.ErrorIs(t, err, ErrTargetInvalid)
}

func TestNightAlreadyActed(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleWerewolf, models.RoleVillager, models.RoleVillager,
		models.RoleVillager, models.RoleVillager,
	})

	require.NoError(t, env.act(g.RoomID, "u1", models.ActionWolfKill, seat(3)))
	err := env.act(g.RoomID, "u1", models.ActionWolfKill, seat(4))
	assert.ErrorIs(t, err, ErrAlreadyActed)
}

func TestSeerCheckPushesPrivateHint(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleSeer, models.RoleVillager,
	})

	require.NoError(t, env.act(g.RoomID, "u1", models.ActionWolfKill, seat(2)))

	cur := env.game(t, g.ID)
	require.Equal(t, models.RoleSeer, cur.ActiveRole)

	require.NoError(t, env.act(g.RoomID, "u3", models.ActionSeerCheck, seat(1)))

	cur = env.game(t, g.ID)
	hints := cur.Hints["u3"]
	require.NotEmpty(t, hints)
	assert.Equal(t, "你查验了 1 号：狼人", hints[len(hints)-1].Text)

	// The verdict never reaches the public log.
	for _, entry := range cur.PublicLog {
		assert.NotContains(t, entry.Text, "查验")
	}
}

func TestWitchSaveAndPoisonSameNight(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleSeer,
		models.RoleWitch, models.RoleVillager, models.RoleVillager,
	})

	require.NoError(t, env.act(g.RoomID, "u1", models.ActionWolfKill, seat(4)))
	require.NoError(t, env.act(g.RoomID, "u3", models.ActionSeerCheck, seat(1)))
	require.NoError(t, env.actUse(g.RoomID, "u4", models.ActionWitchSave, true))
	require.NoError(t, env.act(g.RoomID, "u4", models.ActionWitchPoison, seat(5)))

	cur := env.game(t, g.ID)
	assert.True(t, cur.PlayerBySeat(4).IsAlive, "witch self-save held")
	assert.False(t, cur.PlayerBySeat(5).IsAlive, "poison target died")
	assert.True(t, cur.Night.SaveUsed)
	assert.True(t, cur.Night.PoisonUsed)
	assert.Equal(t, models.PhaseDaySpeech, cur.Phase)
	assert.Equal(t, 1, cur.DayNo)

	last := cur.PublicLog[len(cur.PublicLog)-2]
	assert.Contains(t, last.Text, "天亮了")
	assert.Contains(t, last.Text, "5号")
}

func TestWitchPotionsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleWitch, models.RoleVillager,
		models.RoleVillager, models.RoleVillager,
	})

	ctx := context.Background()
	cur := env.game(t, g.ID)
	cur.ActiveRole = models.RoleWitch
	cur.Night.Acted = make(map[string]bool)
	cur.Night.SaveUsed = true
	cur.Night.PoisonUsed = true
	require.NoError(t, env.engine.saveGame(ctx, cur))

	err := env.actUse(g.RoomID, "u3", models.ActionWitchSave, true)
	assert.ErrorIs(t, err, ErrPotionUsed)

	err = env.act(g.RoomID, "u3", models.ActionWitchPoison, seat(5))
	assert.ErrorIs(t, err, ErrPotionUsed)

	// Declining both is still a legal way to close the sub-role.
	require.NoError(t, env.act(g.RoomID, "u3", models.ActionWitchPoison, nil))
	cur = env.game(t, g.ID)
	assert.NotEqual(t, models.RoleWitch, cur.ActiveRole)
}

func TestGuardProtectionCancelsWolfKill(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleGuard, models.RoleVillager,
	})

	require.NoError(t, env.act(g.RoomID, "u1", models.ActionWolfKill, seat(2)))
	require.NoError(t, env.act(g.RoomID, "u3", models.ActionGuardProtect, seat(2)))

	cur := env.game(t, g.ID)
	assert.True(t, cur.PlayerBySeat(2).IsAlive)
	assert.Equal(t, models.PhaseDaySpeech, cur.Phase)

	found := false
	for _, entry := range cur.PublicLog {
		if entry.Text == "天亮了，无人出局" {
			found = true
		}
	}
	assert.True(t, found, "quiet night announced")
}

func TestBotWolfActsOnlyOnTimeout(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleVillager, models.RoleVillager,
	})
	env.markBot(t, g.ID, 1)

	// Nothing happens before the deadline.
	_, err := env.engine.AdvanceGameOnTimeout(context.Background(), g.ID)
	require.NoError(t, err)
	cur := env.game(t, g.ID)
	assert.Empty(t, cur.Night.WolfVotes)
	assert.Equal(t, models.RoleWerewolf, cur.ActiveRole)

	env.expire(t, g.ID)
	cur = env.game(t, g.ID)
	assert.NotEqual(t, models.PhaseNight, cur.Phase, "bot vote landed and the night resolved")

	dead := 0
	for _, p := range cur.Players {
		if !p.IsAlive {
			dead++
			assert.NotEqual(t, models.RoleWerewolf, p.Role)
		}
	}
	assert.Equal(t, 1, dead)
}

func TestNightSkipsRolesWithoutLivingHolders(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGame(t, []models.Role{
		models.RoleWerewolf, models.RoleVillager, models.RoleVillager, models.RoleVillager,
	})

	// Only wolves exist; after their action the night resolves directly.
	require.NoError(t, env.act(g.RoomID, "u1", models.ActionWolfKill, seat(2)))
	cur := env.game(t, g.ID)
	assert.Equal(t, models.PhaseDaySpeech, cur.Phase)
}
