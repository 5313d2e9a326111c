package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moonvale/werewolf/backend/internal/models"
)

// GetRooms lists joinable rooms.
func (h *Handler) GetRooms(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom opens a room with the requester as owner.
func (h *Handler) CreateRoom(c *gin.Context) {
	userID, username := currentUser(c)

	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.rooms.Create(c.Request.Context(), userID, username, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GetRoom returns the runtime room state.
func (h *Handler) GetRoom(c *gin.Context) {
	r, err := h.rooms.Get(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// JoinRoom seats the requester, addressed by room id or by the 4-digit
// display number.
func (h *Handler) JoinRoom(c *gin.Context) {
	userID, username := currentUser(c)

	var req struct {
		RoomID     string `json:"room_id"`
		RoomNumber string `json:"room_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	roomID := req.RoomID
	if roomID == "" {
		r, err := h.rooms.GetByNumber(ctx, req.RoomNumber)
		if err != nil {
			respondError(c, err)
			return
		}
		roomID = r.ID
	}

	r, err := h.rooms.Join(ctx, roomID, userID, username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// LeaveRoom vacates the requester's seat.
func (h *Handler) LeaveRoom(c *gin.Context) {
	userID, _ := currentUser(c)
	if err := h.rooms.Leave(c.Request.Context(), c.Param("roomId"), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// SetReady flips the requester's ready flag.
func (h *Handler) SetReady(c *gin.Context) {
	userID, _ := currentUser(c)

	var req struct {
		Ready bool `json:"ready"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.rooms.SetReady(c.Request.Context(), c.Param("roomId"), userID, req.Ready)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// KickPlayer removes a seat's occupant; owner only.
func (h *Handler) KickPlayer(c *gin.Context) {
	userID, _ := currentUser(c)

	var req struct {
		Seat int `json:"seat" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.rooms.Kick(c.Request.Context(), c.Param("roomId"), userID, req.Seat)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// AddBot seats a bot; owner only.
func (h *Handler) AddBot(c *gin.Context) {
	userID, _ := currentUser(c)

	r, err := h.rooms.AddBot(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ConfigureRoom updates role composition and timers; owner only.
func (h *Handler) ConfigureRoom(c *gin.Context) {
	userID, _ := currentUser(c)

	var req models.RoomConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.rooms.Configure(c.Request.Context(), c.Param("roomId"), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// StartGame seals the room into a running game; owner only.
func (h *Handler) StartGame(c *gin.Context) {
	userID, _ := currentUser(c)

	r, pub, err := h.engine.StartGame(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r, "game": pub})
}
