package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonvale/werewolf/backend/internal/models"
)

// electionGame walks a 12-seat table through night 0 so dawn opens the
// sheriff election. The wolves take out seat 5.
func electionGame(t *testing.T, env *testEnv) *models.Game {
	t.Helper()
	g := env.seedGame(t, twelveSeats())
	for _, uid := range []string{"u1", "u2", "u3", "u4"} {
		require.NoError(t, env.act(g.RoomID, uid, models.ActionWolfKill, seat(5)))
	}
	cur := env.game(t, g.ID)
	require.Equal(t, models.PhaseSheriffElection, cur.Phase)
	require.Equal(t, 1, cur.DayNo)
	return cur
}

func TestSheriffElectionFullCycle(t *testing.T) {
	env := newTestEnv(t)
	g := electionGame(t, env)

	require.NoError(t, env.act(g.RoomID, "u6", models.ActionSheriffEnroll, nil))
	require.NoError(t, env.act(g.RoomID, "u7", models.ActionSheriffEnroll, nil))

	// Double enrollment is rejected; the dead cannot run.
	assert.ErrorIs(t, env.act(g.RoomID, "u6", models.ActionSheriffEnroll, nil), ErrAlreadyActed)
	assert.ErrorIs(t, env.act(g.RoomID, "u5", models.ActionSheriffEnroll, nil), ErrPlayerDead)

	env.expire(t, g.ID)
	cur := env.game(t, g.ID)
	require.Equal(t, models.PhaseSheriffSpeech, cur.Phase)
	assert.Equal(t, []int{6, 7}, cur.SpeakingQueue)
	assert.Equal(t, 6, cur.ActiveSpeakerSeat)

	require.NoError(t, env.act(g.RoomID, "u6", models.ActionNextSpeaker, nil))
	require.NoError(t, env.act(g.RoomID, "u7", models.ActionNextSpeaker, nil))

	cur = env.game(t, g.ID)
	require.Equal(t, models.PhaseSheriffVote, cur.Phase)

	// Candidates may not vote.
	assert.ErrorIs(t, env.act(g.RoomID, "u6", models.ActionSheriffVote, seat(7)), ErrNotYourTurn)

	for _, uid := range []string{"u1", "u2", "u3", "u8", "u9"} {
		require.NoError(t, env.act(g.RoomID, uid, models.ActionSheriffVote, seat(6)))
	}
	for _, uid := range []string{"u4", "u10", "u11", "u12"} {
		require.NoError(t, env.act(g.RoomID, uid, models.ActionSheriffVote, seat(7)))
	}

	cur = env.game(t, g.ID)
	assert.Equal(t, 6, cur.SheriffSeat)
	assert.Equal(t, models.PhaseDaySpeech, cur.Phase)

	found := false
	for _, ev := range cur.Events {
		if ev.Type == models.EventSheriffElected {
			assert.Equal(t, 6, ev.Payload.SheriffSeat)
			found = true
		}
	}
	assert.True(t, found)
}

func TestSheriffElectionTieRetriesOnce(t *testing.T) {
	env := newTestEnv(t)
	g := electionGame(t, env)

	require.NoError(t, env.act(g.RoomID, "u6", models.ActionSheriffEnroll, nil))
	require.NoError(t, env.act(g.RoomID, "u7", models.ActionSheriffEnroll, nil))
	env.expire(t, g.ID)
	require.NoError(t, env.act(g.RoomID, "u6", models.ActionNextSpeaker, nil))
	require.NoError(t, env.act(g.RoomID, "u7", models.ActionNextSpeaker, nil))

	tieVote := func() {
		for _, uid := range []string{"u1", "u2", "u3", "u8"} {
			require.NoError(t, env.act(g.RoomID, uid, models.ActionSheriffVote, seat(6)))
		}
		for _, uid := range []string{"u4", "u10", "u11", "u12"} {
			require.NoError(t, env.act(g.RoomID, uid, models.ActionSheriffVote, seat(7)))
		}
		require.NoError(t, env.act(g.RoomID, "u9", models.ActionSheriffVote, nil))
	}

	tieVote()
	cur := env.game(t, g.ID)
	require.Equal(t, models.PhaseSheriffSpeech, cur.Phase, "tie reruns the speeches")
	assert.Equal(t, 2, cur.Election.Stage)
	assert.Equal(t, []int{6, 7}, cur.Election.Candidates)

	require.NoError(t, env.act(g.RoomID, "u6", models.ActionNextSpeaker, nil))
	require.NoError(t, env.act(g.RoomID, "u7", models.ActionNextSpeaker, nil))

	tieVote()
	cur = env.game(t, g.ID)
	assert.Equal(t, 0, cur.SheriffSeat, "second tie leaves the table without a sheriff")
	assert.Equal(t, models.PhaseDaySpeech, cur.Phase)
}

func TestSheriffElectionNobodyRuns(t *testing.T) {
	env := newTestEnv(t)
	g := electionGame(t, env)

	env.expire(t, g.ID)
	cur := env.game(t, g.ID)
	assert.Equal(t, models.PhaseDaySpeech, cur.Phase)
	assert.Equal(t, 0, cur.SheriffSeat)
}

func TestSheriffQuitBeforeDeadline(t *testing.T) {
	env := newTestEnv(t)
	g := electionGame(t, env)

	require.NoError(t, env.act(g.RoomID, "u6", models.ActionSheriffEnroll, nil))
	require.NoError(t, env.act(g.RoomID, "u7", models.ActionSheriffEnroll, nil))
	require.NoError(t, env.act(g.RoomID, "u6", models.ActionSheriffQuit, nil))

	env.expire(t, g.ID)
	cur := env.game(t, g.ID)
	require.Equal(t, models.PhaseSheriffSpeech, cur.Phase)
	assert.Equal(t, []int{7}, cur.SpeakingQueue)
}
