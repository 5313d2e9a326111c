package game

import (
	"github.com/moonvale/werewolf/backend/internal/models"
)

// Bot play: uniformly random legal moves, executed on the timer tick rather
// than on submission so human clients see the role announcement frame first.

const (
	botWitchSaveChance   = 0.5
	botWitchPoisonChance = 0.15
)

// randomSeat picks uniformly among living seats passing the filter, 0 if none.
func (e *Engine) randomSeat(g *models.Game, ok func(p *models.GamePlayer) bool) int {
	var seats []int
	for i := range g.Players {
		p := &g.Players[i]
		if p.IsAlive && ok(p) {
			seats = append(seats, p.Seat)
		}
	}
	if len(seats) == 0 {
		return 0
	}
	return seats[e.intn(len(seats))]
}

// botNightActions fills in the active sub-role for every bot holder that has
// not acted yet. Errors are impossible by construction but dropped anyway.
func (e *Engine) botNightActions(g *models.Game) {
	for _, p := range g.AliveWithRole(g.ActiveRole) {
		if !p.IsBot || g.Night.Acted[p.UserID] {
			continue
		}
		switch g.ActiveRole {
		case models.RoleWerewolf:
			if t := e.randomSeat(g, func(t *models.GamePlayer) bool { return t.Role != models.RoleWerewolf }); t != 0 {
				_ = e.wolfKill(g, p, t)
			}
		case models.RoleSeer:
			if t := e.randomSeat(g, func(t *models.GamePlayer) bool { return t.Seat != p.Seat }); t != 0 {
				_ = e.seerCheck(g, p, t)
			}
		case models.RoleGuard:
			_ = e.guardProtect(g, p, e.randomSeat(g, func(*models.GamePlayer) bool { return true }))
		case models.RoleWitch:
			if !g.Night.SaveUsed && wolfVictim(g) != 0 && e.chance(botWitchSaveChance) {
				_ = e.witchSave(g, p, true)
			}
			poison := 0
			if !g.Night.PoisonUsed && e.chance(botWitchPoisonChance) {
				poison = e.randomSeat(g, func(t *models.GamePlayer) bool { return t.Seat != p.Seat })
			}
			_ = e.witchPoison(g, p, poison)
		}
	}
}

// botDayVotes fills in missing bot ballots for the day vote.
func (e *Engine) botDayVotes(g *models.Game) {
	stage := g.Day.Stage
	for i := range g.Players {
		p := &g.Players[i]
		if !p.IsBot || !p.IsAlive {
			continue
		}
		if _, ok := g.Day.Votes[p.UserID]; ok {
			continue
		}
		legal := func(t *models.GamePlayer) bool {
			if t.Seat == p.Seat {
				return false
			}
			return g.Day.Stage != 2 || contains(g.Day.Candidates, t.Seat)
		}
		if t := e.randomSeat(g, legal); t != 0 {
			seat := t
			_ = e.dayVote(g, p, &seat)
			// The last ballot resolves inline; a tie keeps the phase but
			// opens a new stage the bots must not pre-empt.
			if g.Phase != models.PhaseDayVote || g.Day.Stage != stage {
				return
			}
		}
	}
}

// botSheriffVotes fills in missing bot ballots for the sheriff vote.
func (e *Engine) botSheriffVotes(g *models.Game) {
	for i := range g.Players {
		p := &g.Players[i]
		if !p.IsBot || !p.IsAlive || contains(g.Election.Candidates, p.Seat) {
			continue
		}
		if _, ok := g.Election.Votes[p.UserID]; ok {
			continue
		}
		if t := e.randomSeat(g, func(t *models.GamePlayer) bool { return contains(g.Election.Candidates, t.Seat) }); t != 0 {
			seat := t
			_ = e.sheriffVote(g, p, &seat)
			if g.Phase != models.PhaseSheriffVote {
				return
			}
		}
	}
}

// botHunterShot picks the bot hunter's target.
func (e *Engine) botHunterShot(g *models.Game) *int {
	t := e.randomSeat(g, func(*models.GamePlayer) bool { return true })
	if t == 0 {
		return nil
	}
	return &t
}
