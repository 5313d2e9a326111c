package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moonvale/werewolf/backend/internal/models"
	"github.com/moonvale/werewolf/backend/internal/replay"
	"github.com/moonvale/werewolf/backend/internal/websocket"
)

// GetGameState returns the observer-safe public projection.
func (h *Handler) GetGameState(c *gin.Context) {
	pub, err := h.engine.GamePublicState(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pub)
}

// GetGamePrivateState returns the requester's own role view.
func (h *Handler) GetGamePrivateState(c *gin.Context) {
	userID, _ := currentUser(c)
	pv, err := h.engine.GamePrivateState(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pv)
}

// PerformAction applies one player action.
func (h *Handler) PerformAction(c *gin.Context) {
	userID, _ := currentUser(c)

	var req models.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pub, err := h.engine.SubmitAction(c.Request.Context(), c.Param("roomId"), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pub)
}

// PollGame offers the game a timeout advance and returns the fresh public
// state. Clients fall back to this when their websocket drops frames.
func (h *Handler) PollGame(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")

	r, err := h.rooms.Get(ctx, roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if r.GameID != "" {
		// Advance errors are non-fatal here; the fresh read below still works.
		h.engine.AdvanceGameOnTimeout(ctx, r.GameID)
	}

	pub, err := h.engine.GamePublicState(ctx, roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pub)
}

// SendChat posts a chat line to the public floor or the wolf channel.
func (h *Handler) SendChat(c *gin.Context) {
	userID, username := currentUser(c)

	var req models.ChatSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Channel == "" {
		req.Channel = models.ChatChannelPublic
	}

	msg, err := h.engine.AppendChat(c.Request.Context(), c.Param("roomId"), userID, username, req.Text, req.Channel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// GetReplays lists the requester's replay summaries.
func (h *Handler) GetReplays(c *gin.Context) {
	userID, _ := currentUser(c)
	rs, err := h.replays.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replays": replay.Summarize(rs)})
}

// GetReplay returns a full replay with its event log.
func (h *Handler) GetReplay(c *gin.Context) {
	r, err := h.replays.Get(c.Request.Context(), c.Param("replayId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "replay not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetVoiceTurnInfo tells the signaling relay who holds the floor.
func (h *Handler) GetVoiceTurnInfo(c *gin.Context) {
	userID, _ := currentUser(c)
	info, err := h.engine.VoiceTurnInfo(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetAgoraToken issues an RTC token for the room's voice channel. Publisher
// rights are bound to the engine's speaker authority: only the current
// speaker receives a publisher token.
func (h *Handler) GetAgoraToken(c *gin.Context) {
	userID, _ := currentUser(c)

	if !h.agora.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice tokens not configured"})
		return
	}

	var req models.AgoraTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	channel := websocket.SanitizeID(req.ChannelName)
	if err := h.agora.ValidateChannelName(channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.engine.VoiceTurnInfo(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var token string
	if info.IsCurrentSpeaker {
		token, err = h.agora.GeneratePublisherToken(channel, req.UID)
	} else {
		token, err = h.agora.GenerateSubscriberToken(channel, req.UID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.AgoraTokenResponse{
		Token:       token,
		ChannelName: channel,
		UID:         req.UID,
		ExpiresAt:   int64(h.agora.GetTokenExpiry()),
	})
}
