package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/replay"
	"github.com/moonvale/werewolf/backend/internal/store"
)

const (
	// Phase budgets not configurable per room.
	sheriffElectionSeconds = 20
	sheriffVoteSeconds     = 30
	gameOverLingerSeconds  = 10

	// Snapshot TTL guards against leaked games outliving their room.
	gameSnapshotTTL = 24 * time.Hour

	// Serialized logs and hints are capped to the most recent entries.
	logWindow = 60
)

// Broadcaster is the fan-out port. Delivery is best-effort; the engine never
// fails an operation because an emit was dropped.
type Broadcaster interface {
	EmitRoom(roomID, event string, payload any)
	EmitUser(userID, event string, payload any)
}

// RoomRegistry is the slice of the room layer the engine needs.
type RoomRegistry interface {
	Get(ctx context.Context, roomID string) (*models.Room, error)
	SetPlaying(ctx context.Context, roomID, gameID string) (*models.Room, error)
	MarkEnded(ctx context.Context, roomID string) (*models.Room, error)
}

// Engine is the authoritative game state machine. Every mutation is a
// load-mutate-store cycle against the snapshot store, serialized per game by
// a keyed lock.
type Engine struct {
	store   store.SnapshotStore
	rooms   RoomRegistry
	replays replay.Store
	bc      Broadcaster
	locks   *store.KeyedMutex

	now func() time.Time

	randMu sync.Mutex
	rng    *rand.Rand
}

func NewEngine(ss store.SnapshotStore, rooms RoomRegistry, replays replay.Store, bc Broadcaster) *Engine {
	return &Engine{
		store:   ss,
		rooms:   rooms,
		replays: replays,
		bc:      bc,
		locks:   store.NewKeyedMutex(),
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock and SetRand override the time source and RNG; tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }
func (e *Engine) SetRand(rng *rand.Rand)        { e.rng = rng }

func (e *Engine) nowMs() int64 { return e.now().UnixMilli() }

func (e *Engine) intn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) chance(p float64) bool {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rng.Float64() < p
}

func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	e.rng.Shuffle(n, swap)
}

// ============================================================================
// Role composition
// ============================================================================

// ValidateRoleConfig checks a composition against the table size. Seats not
// covered by a special role become villagers.
func ValidateRoleConfig(players int, rc models.RoleConfig) error {
	if rc.Werewolf < 1 || rc.Seer < 0 || rc.Witch < 0 || rc.Hunter < 0 || rc.Guard < 0 {
		return ErrInvalidRoleConfig
	}
	if rc.SpecialTotal() > players {
		return ErrInvalidRoleConfig
	}
	return nil
}

func rolePool(players int, rc models.RoleConfig) []models.Role {
	pool := make([]models.Role, 0, players)
	add := func(r models.Role, n int) {
		for i := 0; i < n; i++ {
			pool = append(pool, r)
		}
	}
	add(models.RoleWerewolf, rc.Werewolf)
	add(models.RoleSeer, rc.Seer)
	add(models.RoleWitch, rc.Witch)
	add(models.RoleHunter, rc.Hunter)
	add(models.RoleGuard, rc.Guard)
	add(models.RoleVillager, players-len(pool))
	return pool
}

// ============================================================================
// Snapshot plumbing
// ============================================================================

func (e *Engine) loadGame(ctx context.Context, gameID string) (*models.Game, error) {
	data, err := e.store.Get(ctx, store.GameKey(gameID))
	if err != nil {
		return nil, SnapshotErr(err)
	}
	if data == nil {
		return nil, ErrGameNotFound
	}
	var g models.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse game snapshot %s: %w", gameID, err)
	}
	return &g, nil
}

func (e *Engine) saveGame(ctx context.Context, g *models.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal game snapshot: %w", err)
	}
	if err := e.store.Set(ctx, store.GameKey(g.ID), data, gameSnapshotTTL); err != nil {
		return SnapshotErr(err)
	}
	return nil
}

// withGame runs mutate inside the per-game lock, stores the new snapshot, and
// broadcasts the resulting state. Mutation errors leave the snapshot as-is.
func (e *Engine) withGame(ctx context.Context, gameID string, mutate func(g *models.Game) error) (*models.Game, error) {
	key := store.GameKey(gameID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	g, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	prev := g.Phase
	if err := mutate(g); err != nil {
		return nil, err
	}
	if err := e.saveGame(ctx, g); err != nil {
		return nil, err
	}
	if prev != models.PhaseGameOver && g.Phase == models.PhaseGameOver {
		e.afterGameOver(ctx, g)
	}
	e.broadcastState(g)
	return g, nil
}

// resolveGameID maps a room to its running game.
func (e *Engine) resolveGameID(ctx context.Context, roomID string) (string, error) {
	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.Status != models.RoomStatusPlaying || room.GameID == "" {
		return "", ErrNotPlaying
	}
	return room.GameID, nil
}

// ============================================================================
// Log / event helpers
// ============================================================================

func (e *Engine) appendLog(g *models.Game, text string) {
	g.LogSeq++
	g.PublicLog = append(g.PublicLog, models.LogEntry{ID: g.LogSeq, At: e.nowMs(), Text: text})
}

func (e *Engine) appendHint(g *models.Game, userID, text string) {
	if g.Hints == nil {
		g.Hints = make(map[string][]models.LogEntry)
	}
	g.LogSeq++
	g.Hints[userID] = append(g.Hints[userID], models.LogEntry{ID: g.LogSeq, At: e.nowMs(), Text: text})
}

func (e *Engine) appendEvent(g *models.Game, typ models.EventType, payload models.EventPayload) {
	g.Events = append(g.Events, models.GameEvent{
		T:       e.nowMs() - g.StartedAt,
		Type:    typ,
		Payload: payload,
	})
}

func tail(entries []models.LogEntry, n int) []models.LogEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// ============================================================================
// Broadcast
// ============================================================================

// broadcastState pushes the public projection to the room channel and the
// private projection to every seated human.
func (e *Engine) broadcastState(g *models.Game) {
	e.bc.EmitRoom(g.RoomID, models.WSEventGameState, e.publicView(g))
	for i := range g.Players {
		p := &g.Players[i]
		if p.IsBot {
			continue
		}
		e.bc.EmitUser(p.UserID, models.WSEventGamePrivate, e.privateView(g, p))
	}
}

// ============================================================================
// Projections
// ============================================================================

func (e *Engine) publicView(g *models.Game) *models.GamePublic {
	players := make([]models.PublicPlayer, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, models.PublicPlayer{
			Seat:    p.Seat,
			User:    models.PublicUser{ID: p.UserID, Nickname: p.Nickname},
			IsAlive: p.IsAlive,
		})
	}
	return &models.GamePublic{
		GameID:            g.ID,
		RoomID:            g.RoomID,
		Phase:             g.Phase,
		DayNo:             g.DayNo,
		ServerNow:         e.nowMs(),
		PhaseEndsAt:       g.PhaseEndsAt,
		Players:           players,
		PublicLog:         tail(g.PublicLog, logWindow),
		ActiveRole:        g.ActiveRole,
		ActiveSpeakerSeat: g.ActiveSpeakerSeat,
		SpeakingQueue:     g.SpeakingQueue,
		SheriffSeat:       g.SheriffSeat,
		Winner:            g.Winner,
	}
}

func (e *Engine) privateView(g *models.Game, p *models.GamePlayer) *models.GamePrivate {
	pv := &models.GamePrivate{
		Role:  p.Role,
		Seat:  p.Seat,
		Hints: tail(g.Hints[p.UserID], logWindow),
		Actions: models.PrivateActions{
			HunterShoot: g.Phase == models.PhaseSettlement && g.Settlement.PendingHunterSeat == p.Seat,
		},
	}

	switch {
	case g.Phase == models.PhaseNight && g.ActiveRole == p.Role:
		pv.SelectedTargetSeat = e.selectedNightTarget(g, p)
		pv.WitchSaveDecision = p.Role == models.RoleWitch && g.Night.WitchSave
	case g.Phase == models.PhaseDayVote:
		if v, ok := g.Day.Votes[p.UserID]; ok && v != nil {
			pv.SelectedTargetSeat = *v
		}
	case g.Phase == models.PhaseSheriffVote:
		if v, ok := g.Election.Votes[p.UserID]; ok && v != nil {
			pv.SelectedTargetSeat = *v
		}
	}

	if p.Role == models.RoleWitch {
		victim := 0
		if g.Phase == models.PhaseNight && g.ActiveRole == models.RoleWitch {
			victim = wolfVictim(g)
		}
		pv.WitchInfo = &models.WitchInfo{
			NightVictimSeat: victim,
			SaveUsed:        g.Night.SaveUsed,
			PoisonUsed:      g.Night.PoisonUsed,
		}
	}

	if p.Role == models.RoleWerewolf {
		for _, mate := range g.Players {
			if mate.Role == models.RoleWerewolf {
				pv.WolfTeam = append(pv.WolfTeam, models.WolfMate{
					Seat:     mate.Seat,
					Nickname: mate.Nickname,
					IsAlive:  mate.IsAlive,
				})
			}
		}
	}
	return pv
}

func (e *Engine) selectedNightTarget(g *models.Game, p *models.GamePlayer) int {
	switch p.Role {
	case models.RoleWerewolf:
		for _, v := range g.Night.WolfVotes {
			if v.UserID == p.UserID {
				return v.Seat
			}
		}
	case models.RoleSeer:
		return g.Night.SeerTarget
	case models.RoleGuard:
		return g.Night.GuardTarget
	case models.RoleWitch:
		return g.Night.WitchPoisonTarget
	}
	return 0
}

// GamePublicState returns the observer-safe projection for a room's game.
func (e *Engine) GamePublicState(ctx context.Context, roomID string) (*models.GamePublic, error) {
	gameID, err := e.resolveGameID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	g, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return e.publicView(g), nil
}

// GamePrivateState returns the per-user projection.
func (e *Engine) GamePrivateState(ctx context.Context, roomID, userID string) (*models.GamePrivate, error) {
	gameID, err := e.resolveGameID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	g, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUserID(userID)
	if p == nil {
		return nil, ErrNotInGame
	}
	return e.privateView(g, p), nil
}

// GetWolfUserIDs lists the user ids on the wolf team, dead or alive, so
// adapters can address the wolf channels directly.
func (e *Engine) GetWolfUserIDs(ctx context.Context, roomID string) ([]string, error) {
	gameID, err := e.resolveGameID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	g, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range g.Players {
		if p.Role == models.RoleWerewolf {
			out = append(out, p.UserID)
		}
	}
	return out, nil
}

// VoiceTurnInfo tells the signaling relay who currently holds the floor. The
// relay must reject offers from anyone but the active speaker.
func (e *Engine) VoiceTurnInfo(ctx context.Context, roomID, userID string) (*models.VoiceTurnInfo, error) {
	gameID, err := e.resolveGameID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	g, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p := g.PlayerByUserID(userID)
	if p == nil {
		return nil, ErrNotInGame
	}

	info := &models.VoiceTurnInfo{
		GameID:            g.ID,
		Phase:             g.Phase,
		IsSpeechPhase:     g.Phase == models.PhaseDaySpeech || g.Phase == models.PhaseSheriffSpeech,
		ActiveSpeakerSeat: g.ActiveSpeakerSeat,
		Seat:              p.Seat,
		UserID:            userID,
	}
	if speaker := g.PlayerBySeat(g.ActiveSpeakerSeat); speaker != nil {
		info.ActiveSpeakerUserID = speaker.UserID
	}
	info.IsCurrentSpeaker = info.IsSpeechPhase && g.ActiveSpeakerSeat == p.Seat
	return info, nil
}

// ListActiveGameIDs enumerates games the timer pump should tick.
func (e *Engine) ListActiveGameIDs(ctx context.Context) ([]string, error) {
	ids, err := e.store.SMembers(ctx, store.ActiveGames)
	if err != nil {
		return nil, SnapshotErr(err)
	}
	return ids, nil
}

// ============================================================================
// Game start
// ============================================================================

// StartGame seals the seated players into a game and opens night 0.
func (e *Engine) StartGame(ctx context.Context, roomID, requesterUserID string) (*models.Room, *models.GamePublic, error) {
	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, nil, ErrNotPlaying
	}
	if room.OwnerUserID != requesterUserID {
		return nil, nil, ErrOnlyOwnerMayStart
	}
	if open := room.MaxPlayers - room.SeatedCount(); open > 0 {
		return nil, nil, ErrNeedBots(open)
	}
	for _, m := range room.Members {
		if m.UserID != "" && !m.IsReady {
			return nil, nil, ErrNotAllReady
		}
	}
	if err := ValidateRoleConfig(room.MaxPlayers, room.Roles); err != nil {
		return nil, nil, err
	}

	pool := rolePool(room.MaxPlayers, room.Roles)
	e.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	now := e.now()
	g := &models.Game{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		RoomName:  room.Name,
		StartedAt: now.UnixMilli(),
		Phase:     models.PhaseNight,
		DayNo:     0,
		Roles:     room.Roles,
		Timers:    room.Timers,
		Hints:     make(map[string][]models.LogEntry),
	}
	for i, m := range room.Members {
		g.Players = append(g.Players, models.GamePlayer{
			Seat:     m.Seat,
			UserID:   m.UserID,
			Nickname: m.Nickname,
			Role:     pool[i],
			IsAlive:  true,
			IsBot:    m.IsBot,
		})
	}

	e.appendLog(g, "天黑请闭眼")
	e.appendEvent(g, models.EventPhaseChanged, models.EventPayload{Phase: models.PhaseNight, DayNo: 0})
	e.startNightRole(g, models.RoleWerewolf)

	// Flip the room first: if it already left waiting, no snapshot is written.
	room, err = e.rooms.SetPlaying(ctx, roomID, g.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := e.saveGame(ctx, g); err != nil {
		return nil, nil, err
	}
	if err := e.store.SAdd(ctx, store.ActiveGames, g.ID); err != nil {
		return nil, nil, SnapshotErr(err)
	}

	log.Printf("[Game] started game %s in room %s (%d players)", g.ID, room.RoomNumber, len(g.Players))
	e.broadcastState(g)
	return room, e.publicView(g), nil
}

// ============================================================================
// Chat
// ============================================================================

// AppendChat validates and fans out a chat line. Public chat is floor-bound:
// only the active speaker during a speech phase. Wolf chat goes to wolf user
// channels only and leaves no trace in the public log or the replay.
func (e *Engine) AppendChat(ctx context.Context, roomID, userID, nickname, text string, channel models.ChatChannel) (*models.ChatMessage, error) {
	gameID, err := e.resolveGameID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		UserID:   userID,
		Nickname: nickname,
		Text:     text,
		Channel:  channel,
		At:       e.nowMs(),
	}

	var wolfIDs []string
	_, err = e.withGame(ctx, gameID, func(g *models.Game) error {
		p := g.PlayerByUserID(userID)
		if p == nil {
			return ErrNotInGame
		}
		if !p.IsAlive {
			return ErrPlayerDead
		}

		switch channel {
		case models.ChatChannelWolf:
			if p.Role != models.RoleWerewolf {
				return ErrNotWolfChannel
			}
			for _, mate := range g.Players {
				if mate.Role == models.RoleWerewolf && !mate.IsBot {
					wolfIDs = append(wolfIDs, mate.UserID)
				}
			}
			return nil
		case models.ChatChannelPublic:
			if g.Phase != models.PhaseDaySpeech && g.Phase != models.PhaseSheriffSpeech {
				return ErrPhaseForbidsAction
			}
			if g.ActiveSpeakerSeat != p.Seat {
				return ErrNotYourTurn
			}
			e.appendEvent(g, models.EventChatMessage, models.EventPayload{
				Seat: p.Seat, UserID: userID, Text: text,
			})
			return nil
		default:
			return ErrPhaseForbidsAction
		}
	})
	if err != nil {
		return nil, err
	}

	if channel == models.ChatChannelWolf {
		for _, uid := range wolfIDs {
			e.bc.EmitUser(uid, models.WSEventChatNew, msg)
		}
	} else {
		e.bc.EmitRoom(roomID, models.WSEventChatNew, msg)
	}
	return msg, nil
}
