package models

import (
	"time"
)

// ============================================================================
// USER MODELS
// ============================================================================

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}

// ============================================================================
// ROOM MODELS
// ============================================================================

type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusEnded   RoomStatus = "ended"
)

// RoleConfig is the special-role composition chosen by the room owner.
// Seats not covered by any entry become villagers.
type RoleConfig struct {
	Werewolf int `json:"werewolf"`
	Seer     int `json:"seer"`
	Witch    int `json:"witch"`
	Hunter   int `json:"hunter"`
	Guard    int `json:"guard"`
}

func (rc RoleConfig) SpecialTotal() int {
	return rc.Werewolf + rc.Seer + rc.Witch + rc.Hunter + rc.Guard
}

// Timers holds per-phase countdown budgets in seconds.
type Timers struct {
	NightSeconds      int `json:"night_seconds"`
	DaySpeechSeconds  int `json:"day_speech_seconds"`
	DayVoteSeconds    int `json:"day_vote_seconds"`
	SettlementSeconds int `json:"settlement_seconds"`
}

// RoomMember is one seat in a room. UserID is empty while the seat is open.
type RoomMember struct {
	Seat     int    `json:"seat"`
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	IsReady  bool   `json:"is_ready"`
	IsAlive  bool   `json:"is_alive"`
	IsBot    bool   `json:"is_bot"`
}

// Room is the runtime room state mirrored in the snapshot store. The durable
// row in Postgres carries only the metadata columns.
type Room struct {
	ID          string     `json:"id"`
	RoomNumber  string     `json:"room_number"`
	Name        string     `json:"name"`
	OwnerUserID string     `json:"owner_user_id"`
	Status      RoomStatus `json:"status"`
	MaxPlayers  int        `json:"max_players"`
	CreatedAt   time.Time  `json:"created_at"`
	// LastActivityAt feeds the waiting-room expiry sweep.
	LastActivityAt time.Time    `json:"last_activity_at"`
	GameID         string       `json:"game_id,omitempty"`
	Members        []RoomMember `json:"members"`
	Roles          RoleConfig   `json:"roles"`
	Timers         Timers       `json:"timers"`
}

// SeatedCount returns the number of occupied seats.
func (r *Room) SeatedCount() int {
	n := 0
	for _, m := range r.Members {
		if m.UserID != "" {
			n++
		}
	}
	return n
}

// MemberByUserID returns the seat occupied by userID, or nil.
func (r *Room) MemberByUserID(userID string) *RoomMember {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

// ============================================================================
// GAME MODELS
// ============================================================================

type Phase string

const (
	PhaseNight           Phase = "night"
	PhaseSheriffElection Phase = "sheriff_election"
	PhaseSheriffSpeech   Phase = "sheriff_speech"
	PhaseSheriffVote     Phase = "sheriff_vote"
	PhaseDaySpeech       Phase = "day_speech"
	PhaseDayVote         Phase = "day_vote"
	PhaseSettlement      Phase = "settlement"
	PhaseGameOver        Phase = "game_over"
)

type Role string

const (
	RoleWerewolf Role = "werewolf"
	RoleSeer     Role = "seer"
	RoleWitch    Role = "witch"
	RoleHunter   Role = "hunter"
	RoleGuard    Role = "guard"
	RoleVillager Role = "villager"
)

// NightRoleOrder is the fixed sub-role cycle inside the night phase.
var NightRoleOrder = []Role{RoleWerewolf, RoleSeer, RoleWitch, RoleGuard}

type Winner string

const (
	WinnerNone      Winner = ""
	WinnerWerewolf  Winner = "werewolves"
	WinnerVillagers Winner = "villagers"
)

type GamePlayer struct {
	Seat     int    `json:"seat"`
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     Role   `json:"role"`
	IsAlive  bool   `json:"is_alive"`
	IsBot    bool   `json:"is_bot"`
}

// LogEntry is one line of the public log or of a per-user private hint list.
type LogEntry struct {
	ID   int64  `json:"id"`
	At   int64  `json:"at"` // epoch ms
	Text string `json:"text"`
}

// WolfVote records one werewolf's night target, in submission order. Order
// matters: ties in the tally break toward the earliest target to reach the
// winning count.
type WolfVote struct {
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
}

// NightState is the per-night scratch. SaveUsed and PoisonUsed persist for
// the whole game; everything else is reset when the night phase is entered.
type NightState struct {
	WolfVotes         []WolfVote      `json:"wolf_votes,omitempty"`
	SeerTarget        int             `json:"seer_target,omitempty"`
	GuardTarget       int             `json:"guard_target,omitempty"`
	WitchSave         bool            `json:"witch_save,omitempty"`
	WitchPoisonTarget int             `json:"witch_poison_target,omitempty"`
	SaveUsed          bool            `json:"save_used"`
	PoisonUsed        bool            `json:"poison_used"`
	// Acted maps userID to acted-during-current-sub-role. Serialized without
	// omitempty: the map is armed on sub-role entry and must survive the
	// snapshot round-trip even while empty.
	Acted map[string]bool `json:"acted"`
}

// BallotState covers both the day vote and the sheriff vote. Votes maps
// userID to the chosen seat; a nil entry is an explicit abstention. Votes is
// serialized without omitempty so the empty map armed at phase entry comes
// back as a map, not nil.
type BallotState struct {
	Votes      map[string]*int `json:"votes"`
	Stage      int             `json:"stage,omitempty"` // 1 or 2 (runoff)
	Candidates []int           `json:"candidates,omitempty"`
}

type SettlementState struct {
	PendingHunterSeat int `json:"pending_hunter_seat,omitempty"`
}

type EventType string

const (
	EventPhaseChanged     EventType = "phase_changed"
	EventChatMessage      EventType = "chat_message"
	EventActionSubmitted  EventType = "action_submitted"
	EventVoteResult       EventType = "vote_result"
	EventNightResult      EventType = "night_result"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameResult       EventType = "game_result"
	EventSpeakerChanged   EventType = "speaker_changed"
	EventSheriffElected   EventType = "sheriff_elected"
)

// EventPayload is the closed payload carrier for replay events; only the
// fields relevant to the event type are set.
type EventPayload struct {
	Phase       Phase              `json:"phase,omitempty"`
	DayNo       int                `json:"day_no,omitempty"`
	Seat        int                `json:"seat,omitempty"`
	TargetSeat  int                `json:"target_seat,omitempty"`
	ActorRole   Role               `json:"actor_role,omitempty"`
	Action      ActionType         `json:"action,omitempty"`
	Eliminated  []int              `json:"eliminated,omitempty"`
	Tally       map[string]float64 `json:"tally,omitempty"` // seat (decimal string) -> weighted votes
	Stage       int                `json:"stage,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Winner      Winner             `json:"winner,omitempty"`
	Roles       map[string]Role    `json:"roles,omitempty"` // seat (decimal string) -> role
	Text        string             `json:"text,omitempty"`
	UserID      string             `json:"user_id,omitempty"`
	SheriffSeat int                `json:"sheriff_seat,omitempty"`
}

// GameEvent is one entry of the append-only replay log. T is milliseconds
// since game start.
type GameEvent struct {
	T       int64        `json:"t"`
	Type    EventType    `json:"type"`
	Payload EventPayload `json:"payload"`
}

// Game is the complete runtime state of one game, serialized as an opaque
// blob in the snapshot store and replaced atomically per transition.
type Game struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	RoomName  string `json:"room_name"`
	StartedAt int64  `json:"started_at"` // epoch ms

	Phase       Phase `json:"phase"`
	DayNo       int   `json:"day_no"`
	PhaseEndsAt int64 `json:"phase_ends_at"` // epoch ms

	Players []GamePlayer `json:"players"`
	Roles   RoleConfig   `json:"roles"`
	Timers  Timers       `json:"timers"`

	PublicLog []LogEntry            `json:"public_log"`
	Hints     map[string][]LogEntry `json:"hints"` // userID -> private hints

	Night      NightState      `json:"night"`
	Day        BallotState     `json:"day"`
	Election   BallotState     `json:"election"`
	Settlement SettlementState `json:"settlement"`

	ActiveRole        Role  `json:"active_role,omitempty"`
	ActiveSpeakerSeat int   `json:"active_speaker_seat,omitempty"`
	SpeakingQueue     []int `json:"speaking_queue,omitempty"`
	SheriffSeat       int   `json:"sheriff_seat,omitempty"`

	Winner Winner `json:"winner,omitempty"`

	Events []GameEvent `json:"events"`
	LogSeq int64       `json:"log_seq"`

	// Seats eliminated during the most recent night, in elimination order.
	// Drives where the day speech rotation starts.
	LastNightDeaths []int `json:"last_night_deaths,omitempty"`
}

// PlayerBySeat returns the player at seat, or nil.
func (g *Game) PlayerBySeat(seat int) *GamePlayer {
	for i := range g.Players {
		if g.Players[i].Seat == seat {
			return &g.Players[i]
		}
	}
	return nil
}

// PlayerByUserID returns the player seated as userID, or nil.
func (g *Game) PlayerByUserID(userID string) *GamePlayer {
	for i := range g.Players {
		if g.Players[i].UserID == userID {
			return &g.Players[i]
		}
	}
	return nil
}

// AliveSeats returns living seats in ascending order. Players are sealed in
// seat order at game start, so insertion order is seat order.
func (g *Game) AliveSeats() []int {
	var seats []int
	for _, p := range g.Players {
		if p.IsAlive {
			seats = append(seats, p.Seat)
		}
	}
	return seats
}

// AliveWithRole returns living players holding role.
func (g *Game) AliveWithRole(role Role) []*GamePlayer {
	var out []*GamePlayer
	for i := range g.Players {
		if g.Players[i].IsAlive && g.Players[i].Role == role {
			out = append(out, &g.Players[i])
		}
	}
	return out
}

// ============================================================================
// ACTION MODELS
// ============================================================================

type ActionType string

const (
	ActionWolfKill      ActionType = "night.wolfKill"
	ActionSeerCheck     ActionType = "night.seerCheck"
	ActionGuardProtect  ActionType = "night.guardProtect"
	ActionWitchSave     ActionType = "night.witch.save"
	ActionWitchPoison   ActionType = "night.witch.poison"
	ActionSheriffEnroll ActionType = "sheriff.enroll"
	ActionSheriffQuit   ActionType = "sheriff.quit"
	ActionSheriffVote   ActionType = "sheriff.vote"
	ActionDayVote       ActionType = "day.vote"
	ActionNextSpeaker   ActionType = "game.nextSpeaker"
	ActionHunterShoot   ActionType = "settlement.hunterShoot"
)

// ActionRequest is the wire form of a player action. TargetSeat is nil for
// abstentions and no-op choices; Use carries the witch save decision.
type ActionRequest struct {
	Type       ActionType `json:"action_type" binding:"required"`
	TargetSeat *int       `json:"target_seat,omitempty"`
	Use        *bool      `json:"use,omitempty"`
}

type ChatChannel string

const (
	ChatChannelPublic ChatChannel = "public"
	ChatChannelWolf   ChatChannel = "wolf"
)

type ChatMessage struct {
	ID       string      `json:"id"`
	RoomID   string      `json:"room_id"`
	UserID   string      `json:"user_id"`
	Nickname string      `json:"nickname"`
	Text     string      `json:"text"`
	Channel  ChatChannel `json:"channel"`
	At       int64       `json:"at"` // epoch ms
}

// ============================================================================
// STATE PROJECTIONS
// ============================================================================

type PublicUser struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

type PublicPlayer struct {
	Seat    int        `json:"seat"`
	User    PublicUser `json:"user"`
	IsAlive bool       `json:"is_alive"`
}

// GamePublic is the observer-safe projection broadcast to the room channel.
// ServerNow lets clients correct for clock skew against PhaseEndsAt.
type GamePublic struct {
	GameID            string         `json:"game_id"`
	RoomID            string         `json:"room_id"`
	Phase             Phase          `json:"phase"`
	DayNo             int            `json:"day_no"`
	ServerNow         int64          `json:"server_now"`
	PhaseEndsAt       int64          `json:"phase_ends_at"`
	Players           []PublicPlayer `json:"players"`
	PublicLog         []LogEntry     `json:"public_log"`
	ActiveRole        Role           `json:"active_role,omitempty"`
	ActiveSpeakerSeat int            `json:"active_speaker_seat,omitempty"`
	SpeakingQueue     []int          `json:"speaking_queue,omitempty"`
	SheriffSeat       int            `json:"sheriff_seat,omitempty"`
	Winner            Winner         `json:"winner,omitempty"`
}

type WitchInfo struct {
	NightVictimSeat int  `json:"night_victim_seat"`
	SaveUsed        bool `json:"save_used"`
	PoisonUsed      bool `json:"poison_used"`
}

type WolfMate struct {
	Seat     int    `json:"seat"`
	Nickname string `json:"nickname"`
	IsAlive  bool   `json:"is_alive"`
}

type PrivateActions struct {
	HunterShoot bool `json:"hunter_shoot"`
}

// GamePrivate is the per-user projection delivered on the user channel.
type GamePrivate struct {
	Role               Role           `json:"role"`
	Seat               int            `json:"seat"`
	Hints              []LogEntry     `json:"hints"`
	Actions            PrivateActions `json:"actions"`
	SelectedTargetSeat int            `json:"selected_target_seat,omitempty"`
	WitchSaveDecision  bool           `json:"witch_save_decision,omitempty"`
	WitchInfo          *WitchInfo     `json:"witch_info,omitempty"`
	WolfTeam           []WolfMate     `json:"wolf_team,omitempty"`
}

// VoiceTurnInfo is the signaling-authority record: the relay must only allow
// offers from the current speaker.
type VoiceTurnInfo struct {
	GameID              string `json:"game_id"`
	Phase               Phase  `json:"phase"`
	IsSpeechPhase       bool   `json:"is_speech_phase"`
	ActiveSpeakerSeat   int    `json:"active_speaker_seat"`
	ActiveSpeakerUserID string `json:"active_speaker_user_id"`
	Seat                int    `json:"seat"`
	UserID              string `json:"user_id"`
	IsCurrentSpeaker    bool   `json:"is_current_speaker"`
}

// ============================================================================
// REPLAY MODELS
// ============================================================================

type Replay struct {
	ID            string      `json:"id"`
	GameID        string      `json:"game_id"`
	RoomID        string      `json:"room_id"`
	RoomName      string      `json:"room_name"`
	OwnerUserIDs  []string    `json:"owner_user_ids"`
	CreatedAt     time.Time   `json:"created_at"`
	DurationMs    int64       `json:"duration_ms"`
	ResultSummary string      `json:"result_summary"`
	Events        []GameEvent `json:"events"`
}

// ============================================================================
// REQUEST/RESPONSE MODELS
// ============================================================================

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token        string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type CreateRoomRequest struct {
	Name       string     `json:"name" binding:"required,min=1,max=100"`
	MaxPlayers int        `json:"max_players"`
	Roles      RoleConfig `json:"roles"`
	Timers     Timers     `json:"timers"`
}

type RoomConfigRequest struct {
	Roles  *RoleConfig `json:"roles,omitempty"`
	Timers *Timers     `json:"timers,omitempty"`
}

type ChatSendRequest struct {
	Text    string      `json:"text" binding:"required,max=500"`
	Channel ChatChannel `json:"channel"`
}

type AgoraTokenRequest struct {
	ChannelName string `json:"channel_name" binding:"required"`
	UID         uint32 `json:"uid"`
}

type AgoraTokenResponse struct {
	Token       string `json:"token"`
	ChannelName string `json:"channel_name"`
	UID         uint32 `json:"uid"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ============================================================================
// BROADCAST EVENTS
// ============================================================================

// Event names pushed through the broadcaster. Room channels are named
// room-<roomId>, user channels user-<sanitized userId>.
const (
	WSEventRoomState     = "room:state"
	WSEventRoomDissolved = "room:dissolved"
	WSEventGameState     = "game:state"
	WSEventGamePrivate   = "game:private"
	WSEventChatNew       = "chat:new"
	WSEventToast         = "toast"
	WSEventWebRTCSignal  = "webrtc:signal"
)
