package game

import (
	"context"

	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/store"
)

// AdvanceGameOnTimeout runs the pending phase transition once the deadline
// passed. It returns nil with no error when there is nothing to do, which
// makes it safe to call at any rate: repeated calls inside one phase are
// no-ops until the next deadline.
func (e *Engine) AdvanceGameOnTimeout(ctx context.Context, gameID string) (*models.GamePublic, error) {
	key := store.GameKey(gameID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	g, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Phase == models.PhaseGameOver || e.nowMs() < g.PhaseEndsAt {
		return nil, nil
	}

	prev := g.Phase
	e.advanceExpiredPhase(g)

	if err := e.saveGame(ctx, g); err != nil {
		return nil, err
	}
	if prev != models.PhaseGameOver && g.Phase == models.PhaseGameOver {
		e.afterGameOver(ctx, g)
	}
	e.broadcastState(g)
	return e.publicView(g), nil
}

// advanceExpiredPhase applies the per-phase timeout rule. Cascades (night
// resolution into settlement into game over) run inline, so a single call
// reaches the fixpoint for this tick.
func (e *Engine) advanceExpiredPhase(g *models.Game) {
	switch g.Phase {
	case models.PhaseNight:
		// Bots act now, then the sub-role closes whether or not every human
		// got a submission in.
		e.botNightActions(g)
		if g.Phase == models.PhaseNight && g.ActiveRole != "" {
			e.advanceNightRole(g)
		}
	case models.PhaseSheriffElection:
		e.closeSheriffElection(g)
	case models.PhaseSheriffSpeech, models.PhaseDaySpeech:
		e.advanceSpeaker(g)
	case models.PhaseSheriffVote:
		e.botSheriffVotes(g)
		if g.Phase == models.PhaseSheriffVote {
			e.resolveSheriffVote(g)
		}
	case models.PhaseDayVote:
		e.botDayVotes(g)
		// A tied ballot completed by the fill-in reopens day_vote with a
		// fresh deadline; only resolve while the expired deadline stands.
		if g.Phase == models.PhaseDayVote && e.nowMs() >= g.PhaseEndsAt {
			e.resolveDayVote(g)
		}
	case models.PhaseSettlement:
		var target *int
		if hunter := g.PlayerBySeat(g.Settlement.PendingHunterSeat); hunter != nil && hunter.IsBot {
			target = e.botHunterShot(g)
		}
		e.resolveSettlement(g, target)
	}
}
