package game

import (
	"errors"
	"fmt"
)

// Error is a domain error with a stable code the HTTP adapter surfaces as a
// toast. Infrastructure failures wrap the underlying cause.
type Error struct {
	Code  string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code so callers can compare against the sentinel values.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func code(c string) *Error { return &Error{Code: c} }

// State errors.
var (
	ErrRoomNotFound       = code("ROOM_NOT_FOUND")
	ErrGameNotFound       = code("GAME_NOT_FOUND")
	ErrNotInGame          = code("NOT_IN_GAME")
	ErrNotPlaying         = code("NOT_PLAYING")
	ErrPhaseForbidsAction = code("PHASE_FORBIDS_ACTION")
	ErrAlreadyActed       = code("ALREADY_ACTED")
	ErrTargetInvalid      = code("TARGET_INVALID")
	ErrPotionUsed         = code("POTION_USED")
)

// Permission errors.
var (
	ErrOnlyOwnerMayStart  = code("ONLY_OWNER_MAY_START")
	ErrOnlyOwnerMayConfig = code("ONLY_OWNER_MAY_CONFIG")
	ErrNotWolfChannel     = code("NOT_WOLF_CHANNEL")
	ErrNotYourTurn        = code("NOT_YOUR_TURN")
	ErrPlayerDead         = code("PLAYER_DEAD")
)

// Composition errors.
var (
	ErrInvalidRoleConfig = code("INVALID_ROLE_CONFIG")
	ErrRoomFull          = code("ROOM_FULL")
	ErrNotAllReady       = code("NOT_ALL_READY")
)

// ErrNeedBots reports how many seats are still empty; the client offers to
// fill them with bots.
func ErrNeedBots(n int) *Error {
	return code(fmt.Sprintf("NEED_BOTS:%d", n))
}

// Infrastructure errors.
var (
	ErrSnapshotUnavailable = code("SNAPSHOT_UNAVAILABLE")
	ErrDBUnavailable       = code("DB_UNAVAILABLE")
)

// SnapshotErr and DBErr tag infrastructure failures with their stable code
// while keeping the cause available for logs.
func SnapshotErr(err error) error {
	return &Error{Code: ErrSnapshotUnavailable.Code, cause: err}
}

func DBErr(err error) error {
	return &Error{Code: ErrDBUnavailable.Code, cause: err}
}

// CodeOf extracts the stable code from err, or "" for unknown errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
