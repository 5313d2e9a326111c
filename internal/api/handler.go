package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/moonvale/werewolf/backend/internal/agora"
	"github.com/moonvale/werewolf/backend/internal/config"
	"github.com/moonvale/werewolf/backend/internal/database"
	"github.com/moonvale/werewolf/backend/internal/game"
	"github.com/moonvale/werewolf/backend/internal/middleware"
	"github.com/moonvale/werewolf/backend/internal/replay"
	"github.com/moonvale/werewolf/backend/internal/room"
	"github.com/moonvale/werewolf/backend/internal/websocket"
)

type Handler struct {
	db      *database.Database
	cfg     *config.Config
	rooms   *room.Registry
	engine  *game.Engine
	replays replay.Store
	agora   *agora.Service
	hub     *websocket.Hub

	upgrader gorilla.Upgrader
}

func NewHandler(db *database.Database, cfg *config.Config, rooms *room.Registry, engine *game.Engine, replays replay.Store, agoraSvc *agora.Service, hub *websocket.Hub) *Handler {
	return &Handler{
		db:      db,
		cfg:     cfg,
		rooms:   rooms,
		engine:  engine,
		replays: replays,
		agora:   agoraSvc,
		hub:     hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin filtering happens in the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// respondError maps domain error codes onto HTTP statuses. The code string
// itself is the client contract; the status is a hint.
func respondError(c *gin.Context, err error) {
	code := game.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case code == "":
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, game.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrOnlyOwnerMayStart), errors.Is(err, game.ErrOnlyOwnerMayConfig),
		errors.Is(err, game.ErrNotWolfChannel), errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrPlayerDead):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrAlreadyActed), errors.Is(err, game.ErrPotionUsed),
		errors.Is(err, game.ErrNotAllReady), errors.Is(err, game.ErrRoomFull),
		strings.HasPrefix(code, "NEED_BOTS"):
		status = http.StatusConflict
	case errors.Is(err, game.ErrSnapshotUnavailable), errors.Is(err, game.ErrDBUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func currentUser(c *gin.Context) (userID, username string) {
	return c.GetString("user_id"), c.GetString("username")
}

// HandleWebSocket upgrades the connection and subscribes it to the user's
// channel plus the optional room channel. Auth rides in the token query
// parameter since browsers cannot set headers on websocket upgrades.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	claims, err := middleware.ValidateToken(tokenString, h.cfg.JWT.Secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, claims.UserID, c.Query("roomId"))
	client.Register()
	go client.WritePump()
	go client.ReadPump()
}
