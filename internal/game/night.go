package game

import (
	"fmt"
	"strings"

	"github.com/moonvale/werewolf/backend/internal/models"
)

// Night sub-role flow. The phase stays "night" while ActiveRole cycles
// werewolf → seer → witch → guard, skipping roles with no living holder.
// Each sub-role gets a fresh NightSeconds budget.

var roleWakeLog = map[models.Role]string{
	models.RoleWerewolf: "狼人请睁眼",
	models.RoleSeer:     "预言家请睁眼",
	models.RoleWitch:    "女巫请睁眼",
	models.RoleGuard:    "守卫请睁眼",
}

// startNight resets the per-night scratch and opens the wolf sub-role.
// SaveUsed and PoisonUsed survive the reset.
func (e *Engine) startNight(g *models.Game) {
	g.Night = models.NightState{
		SaveUsed:   g.Night.SaveUsed,
		PoisonUsed: g.Night.PoisonUsed,
	}
	g.Phase = models.PhaseNight
	g.ActiveSpeakerSeat = 0
	g.SpeakingQueue = nil
	e.appendLog(g, "天黑请闭眼")
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: models.PhaseNight, DayNo: g.DayNo})
	e.startNightRole(g, models.RoleWerewolf)
}

// startNightRole arms the given sub-role, skipping forward past roles with no
// living holder. Falls through to dawn resolution when the cycle is spent.
func (e *Engine) startNightRole(g *models.Game, from models.Role) {
	idx := roleOrderIndex(from)
	for ; idx < len(models.NightRoleOrder); idx++ {
		role := models.NightRoleOrder[idx]
		if len(g.AliveWithRole(role)) == 0 {
			continue
		}
		g.ActiveRole = role
		g.Night.Acted = make(map[string]bool)
		g.PhaseEndsAt = e.nowMs() + int64(g.Timers.NightSeconds)*1000
		e.appendLog(g, roleWakeLog[role])
		return
	}
	g.ActiveRole = ""
	e.resolveNight(g)
}

func roleOrderIndex(role models.Role) int {
	for i, r := range models.NightRoleOrder {
		if r == role {
			return i
		}
	}
	return len(models.NightRoleOrder)
}

// advanceNightRole moves past the current sub-role.
func (e *Engine) advanceNightRole(g *models.Game) {
	idx := roleOrderIndex(g.ActiveRole)
	if idx+1 < len(models.NightRoleOrder) {
		e.startNightRole(g, models.NightRoleOrder[idx+1])
		return
	}
	g.ActiveRole = ""
	e.resolveNight(g)
}

// nightRoleComplete reports whether every living holder of the active
// sub-role has acted.
func nightRoleComplete(g *models.Game) bool {
	for _, p := range g.AliveWithRole(g.ActiveRole) {
		if !g.Night.Acted[p.UserID] {
			return false
		}
	}
	return true
}

// checkNightActor validates the shared preconditions of all night actions.
func checkNightActor(g *models.Game, p *models.GamePlayer, role models.Role) error {
	if g.Phase != models.PhaseNight {
		return ErrPhaseForbidsAction
	}
	if p.Role != role {
		return ErrPhaseForbidsAction
	}
	if g.ActiveRole != role {
		return ErrNotYourTurn
	}
	if !p.IsAlive {
		return ErrPlayerDead
	}
	return nil
}

func (e *Engine) wolfKill(g *models.Game, p *models.GamePlayer, targetSeat int) error {
	if err := checkNightActor(g, p, models.RoleWerewolf); err != nil {
		return err
	}
	if g.Night.Acted[p.UserID] {
		return ErrAlreadyActed
	}
	target := g.PlayerBySeat(targetSeat)
	if target == nil || !target.IsAlive || target.Role == models.RoleWerewolf {
		return ErrTargetInvalid
	}

	g.Night.WolfVotes = append(g.Night.WolfVotes, models.WolfVote{UserID: p.UserID, Seat: targetSeat})
	g.Night.Acted[p.UserID] = true
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
		Action: models.ActionWolfKill, Seat: p.Seat, TargetSeat: targetSeat, ActorRole: p.Role,
	})
	return nil
}

func (e *Engine) seerCheck(g *models.Game, p *models.GamePlayer, targetSeat int) error {
	if err := checkNightActor(g, p, models.RoleSeer); err != nil {
		return err
	}
	if g.Night.Acted[p.UserID] {
		return ErrAlreadyActed
	}
	target := g.PlayerBySeat(targetSeat)
	if target == nil || !target.IsAlive || target.Seat == p.Seat {
		return ErrTargetInvalid
	}

	g.Night.SeerTarget = targetSeat
	g.Night.Acted[p.UserID] = true

	verdict := "好人"
	if target.Role == models.RoleWerewolf {
		verdict = "狼人"
	}
	e.appendHint(g, p.UserID, fmt.Sprintf("你查验了 %d 号：%s", targetSeat, verdict))
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
		Action: models.ActionSeerCheck, Seat: p.Seat, TargetSeat: targetSeat, ActorRole: p.Role,
	})
	return nil
}

func (e *Engine) guardProtect(g *models.Game, p *models.GamePlayer, targetSeat int) error {
	if err := checkNightActor(g, p, models.RoleGuard); err != nil {
		return err
	}
	if g.Night.Acted[p.UserID] {
		return ErrAlreadyActed
	}
	if targetSeat != 0 {
		target := g.PlayerBySeat(targetSeat)
		if target == nil || !target.IsAlive {
			return ErrTargetInvalid
		}
	}

	g.Night.GuardTarget = targetSeat
	g.Night.Acted[p.UserID] = true
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
		Action: models.ActionGuardProtect, Seat: p.Seat, TargetSeat: targetSeat, ActorRole: p.Role,
	})
	return nil
}

// witchSave records the antidote decision. The poison submission closes the
// witch sub-role, so save must come first and is tracked separately.
func (e *Engine) witchSave(g *models.Game, p *models.GamePlayer, use bool) error {
	if err := checkNightActor(g, p, models.RoleWitch); err != nil {
		return err
	}
	if g.Night.Acted["save:"+p.UserID] {
		return ErrAlreadyActed
	}
	if use && g.Night.SaveUsed {
		return ErrPotionUsed
	}

	g.Night.WitchSave = use
	g.Night.Acted["save:"+p.UserID] = true
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
		Action: models.ActionWitchSave, Seat: p.Seat, ActorRole: p.Role,
	})
	return nil
}

func (e *Engine) witchPoison(g *models.Game, p *models.GamePlayer, targetSeat int) error {
	if err := checkNightActor(g, p, models.RoleWitch); err != nil {
		return err
	}
	if g.Night.Acted[p.UserID] {
		return ErrAlreadyActed
	}
	if targetSeat != 0 {
		if g.Night.PoisonUsed {
			return ErrPotionUsed
		}
		target := g.PlayerBySeat(targetSeat)
		if target == nil || !target.IsAlive || target.Seat == p.Seat {
			return ErrTargetInvalid
		}
	}

	g.Night.WitchPoisonTarget = targetSeat
	g.Night.Acted[p.UserID] = true
	e.appendEvent(g, models.EventActionSubmitted, models.EventPayload{
		Action: models.ActionWitchPoison, Seat: p.Seat, TargetSeat: targetSeat, ActorRole: p.Role,
	})
	return nil
}

// wolfVictim tallies the wolf votes. On a tie the seat that reached the
// winning count first (by submission order) takes it.
func wolfVictim(g *models.Game) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, v := range g.Night.WolfVotes {
		counts[v.Seat]++
		if counts[v.Seat] > bestCount {
			best, bestCount = v.Seat, counts[v.Seat]
		}
	}
	return best
}

// resolveNight applies the night outcome and moves into the day.
func (e *Engine) resolveNight(g *models.Game) {
	victim := wolfVictim(g)

	saved := false
	if victim != 0 && !g.Night.SaveUsed && g.Night.WitchSave {
		saved = true
		g.Night.SaveUsed = true
	}

	var eliminated []int
	if victim != 0 && !saved && g.Night.GuardTarget != victim {
		if p := g.PlayerBySeat(victim); p != nil && p.IsAlive {
			eliminated = append(eliminated, victim)
		}
	}
	if g.Night.WitchPoisonTarget != 0 && !g.Night.PoisonUsed {
		g.Night.PoisonUsed = true
		seat := g.Night.WitchPoisonTarget
		if p := g.PlayerBySeat(seat); p != nil && p.IsAlive && !contains(eliminated, seat) {
			eliminated = append(eliminated, seat)
		}
	}

	for _, seat := range eliminated {
		g.PlayerBySeat(seat).IsAlive = false
		e.appendEvent(g, models.EventPlayerEliminated, models.EventPayload{Seat: seat, Reason: "night"})
	}
	g.LastNightDeaths = eliminated

	if len(eliminated) == 0 {
		e.appendLog(g, "天亮了，无人出局")
	} else {
		e.appendLog(g, fmt.Sprintf("天亮了，%s出局", seatList(eliminated)))
	}
	e.appendEvent(g, models.EventNightResult, models.EventPayload{Eliminated: eliminated, DayNo: g.DayNo})

	if e.finalizeIfWinner(g) {
		return
	}
	if hunter := hunterAmong(g, eliminated); hunter != 0 {
		e.enterSettlement(g, hunter)
		return
	}
	e.enterDay(g)
}

func hunterAmong(g *models.Game, seats []int) int {
	for _, seat := range seats {
		if p := g.PlayerBySeat(seat); p != nil && p.Role == models.RoleHunter {
			return seat
		}
	}
	return 0
}

func contains(seats []int, seat int) bool {
	for _, s := range seats {
		if s == seat {
			return true
		}
	}
	return false
}

func seatList(seats []int) string {
	parts := make([]string, 0, len(seats))
	for _, s := range seats {
		parts = append(parts, fmt.Sprintf("%d号", s))
	}
	return strings.Join(parts, "、")
}
