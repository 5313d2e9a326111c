package game

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/store"
)

// computeWinner applies the parity rule: no wolves means the village wins,
// wolves matching the rest of the table means the wolves win.
func computeWinner(players []models.GamePlayer) models.Winner {
	wolves, others := 0, 0
	for _, p := range players {
		if !p.IsAlive {
			continue
		}
		if p.Role == models.RoleWerewolf {
			wolves++
		} else {
			others++
		}
	}
	if wolves == 0 {
		return models.WinnerVillagers
	}
	if wolves >= others {
		return models.WinnerWerewolf
	}
	return models.WinnerNone
}

// finalizeIfWinner checks the verdict and, when decided, seals the snapshot
// into game_over with the full role reveal. External side effects (replay,
// active-set removal, room state) run after the snapshot is stored; see
// afterGameOver.
func (e *Engine) finalizeIfWinner(g *models.Game) bool {
	winner := computeWinner(g.Players)
	if winner == models.WinnerNone {
		return false
	}

	g.Winner = winner
	g.Phase = models.PhaseGameOver
	g.PhaseEndsAt = e.nowMs() + gameOverLingerSeconds*1000
	g.ActiveRole = ""
	g.ActiveSpeakerSeat = 0
	g.SpeakingQueue = nil

	verdict := "好人胜利"
	if winner == models.WinnerWerewolf {
		verdict = "狼人胜利"
	}
	e.appendLog(g, verdict)

	roles := make(map[string]models.Role, len(g.Players))
	for _, p := range g.Players {
		roles[strconv.Itoa(p.Seat)] = p.Role
	}
	e.appendEvent(g, models.EventGameResult, models.EventPayload{Winner: winner, Roles: roles})

	// The replay is keyed by the game id; tell every player where to find it.
	for _, p := range g.Players {
		if !p.IsBot {
			e.appendHint(g, p.UserID, fmt.Sprintf("对局结束：%s。回放编号：%s", verdict, g.ID))
		}
	}
	return true
}

// afterGameOver runs the end-of-game side effects once, right after the
// game_over snapshot hit the store: archive the replay, stop the timer pump
// from ticking this game, and release the room.
func (e *Engine) afterGameOver(ctx context.Context, g *models.Game) {
	r := &models.Replay{
		ID:            g.ID,
		GameID:        g.ID,
		RoomID:        g.RoomID,
		RoomName:      g.RoomName,
		OwnerUserIDs:  seatedUserIDs(g),
		CreatedAt:     e.now(),
		DurationMs:    e.nowMs() - g.StartedAt,
		ResultSummary: string(g.Winner),
		Events:        g.Events,
	}
	if err := e.replays.Save(ctx, r); err != nil {
		log.Printf("[Game] failed to archive replay for %s: %v", g.ID, err)
	}

	if err := e.store.SRem(ctx, store.ActiveGames, g.ID); err != nil {
		log.Printf("[Game] failed to deactivate %s: %v", g.ID, err)
	}
	if _, err := e.rooms.MarkEnded(ctx, g.RoomID); err != nil {
		log.Printf("[Game] failed to end room %s: %v", g.RoomID, err)
	}
	log.Printf("[Game] game %s over: %s after %s", g.ID, g.Winner, time.Duration(e.nowMs()-g.StartedAt)*time.Millisecond)
}

// seatedUserIDs collects the players' user ids with duplicates removed,
// preserving seat order.
func seatedUserIDs(g *models.Game) []string {
	seen := make(map[string]bool, len(g.Players))
	out := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			out = append(out, p.UserID)
		}
	}
	return out
}
