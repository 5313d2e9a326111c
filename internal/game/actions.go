package game

import (
	"context"

	"github.com/moonvale/werewolf/backend/internal/models"
)

// SubmitAction validates and applies one player action against the room's
// running game. Actions that complete a night sub-role early cascade into the
// next sub-role within the same store cycle.
func (e *Engine) SubmitAction(ctx context.Context, roomID, userID string, req models.ActionRequest) (*models.GamePublic, error) {
	gameID, err := e.resolveGameID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	g, err := e.withGame(ctx, gameID, func(g *models.Game) error {
		if g.Phase == models.PhaseGameOver {
			return ErrPhaseForbidsAction
		}
		p := g.PlayerByUserID(userID)
		if p == nil {
			return ErrNotInGame
		}

		target := 0
		if req.TargetSeat != nil {
			target = *req.TargetSeat
		}

		var actErr error
		switch req.Type {
		case models.ActionWolfKill:
			actErr = e.wolfKill(g, p, target)
		case models.ActionSeerCheck:
			actErr = e.seerCheck(g, p, target)
		case models.ActionGuardProtect:
			actErr = e.guardProtect(g, p, target)
		case models.ActionWitchSave:
			actErr = e.witchSave(g, p, req.Use != nil && *req.Use)
		case models.ActionWitchPoison:
			actErr = e.witchPoison(g, p, target)
		case models.ActionSheriffEnroll:
			actErr = e.sheriffEnroll(g, p)
		case models.ActionSheriffQuit:
			actErr = e.sheriffQuit(g, p)
		case models.ActionSheriffVote:
			actErr = e.sheriffVote(g, p, req.TargetSeat)
		case models.ActionDayVote:
			actErr = e.dayVote(g, p, req.TargetSeat)
		case models.ActionNextSpeaker:
			actErr = e.nextSpeaker(g, p)
		case models.ActionHunterShoot:
			actErr = e.hunterShoot(g, p, req.TargetSeat)
		default:
			actErr = ErrPhaseForbidsAction
		}
		if actErr != nil {
			return actErr
		}

		// A sub-role closes as soon as every living holder acted. Bot holders
		// only act on the timer tick, so their sub-roles never close early and
		// clients always see the role announcement.
		if g.Phase == models.PhaseNight && g.ActiveRole != "" && nightRoleComplete(g) {
			e.advanceNightRole(g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.publicView(g), nil
}
