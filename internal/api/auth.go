package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/moonvale/werewolf/backend/internal/middleware"
	"github.com/moonvale/werewolf/backend/internal/models"
)

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("❌ Register - JSON bind error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("✓ Register request - Username: %s, Email: %s", req.Username, req.Email)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	ctx := c.Request.Context()

	var existingCount int
	err = h.db.PG.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2
	`, req.Username, req.Email).Scan(&existingCount)
	if err != nil {
		log.Printf("❌ Register - Error checking existing user: %v", err)
	}
	if err == nil && existingCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already exists"})
		return
	}

	userID := uuid.NewString()
	now := time.Now()

	_, err = h.db.PG.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, req.Username, req.Email, string(hashedPassword), now, now)
	if err != nil {
		log.Printf("❌ Register - Error creating user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	token, err := middleware.GenerateToken(userID, req.Username, h.cfg.JWT.Secret, h.cfg.JWT.ExpiryHours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := middleware.GenerateRefreshToken(userID, req.Username, h.cfg.JWT.Secret, h.cfg.JWT.RefreshExpiryDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate refresh token"})
		return
	}

	c.JSON(http.StatusCreated, models.AuthResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User: models.User{
			ID:        userID,
			Username:  req.Username,
			Email:     req.Email,
			CreatedAt: now,
			UpdatedAt: now,
		},
	})
}

// Login handles user authentication
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email is required"})
		return
	}

	loginIdentifier := req.Username
	if loginIdentifier == "" {
		loginIdentifier = req.Email
	}
	log.Printf("✓ Login request - Identifier: %s", loginIdentifier)

	ctx := c.Request.Context()

	var user models.User
	var passwordHash string
	err := h.db.PG.QueryRow(ctx, `
		SELECT id, username, email, password_hash, avatar_url, created_at, updated_at, last_seen_at
		FROM users WHERE username = $1 OR email = $1
	`, loginIdentifier).Scan(
		&user.ID, &user.Username, &user.Email, &passwordHash,
		&user.AvatarURL, &user.CreatedAt, &user.UpdatedAt, &user.LastSeenAt,
	)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	now := time.Now()
	h.db.PG.Exec(ctx, `UPDATE users SET last_seen_at = $1 WHERE id = $2`, now, user.ID)

	token, err := middleware.GenerateToken(user.ID, user.Username, h.cfg.JWT.Secret, h.cfg.JWT.ExpiryHours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := middleware.GenerateRefreshToken(user.ID, user.Username, h.cfg.JWT.Secret, h.cfg.JWT.RefreshExpiryDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate refresh token"})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
	})
}

// RefreshToken handles token refresh
func (h *Handler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := middleware.ValidateRefreshToken(req.RefreshToken, h.cfg.JWT.Secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	var exists bool
	err = h.db.PG.QueryRow(c.Request.Context(), `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, claims.UserID).Scan(&exists)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	token, err := middleware.GenerateToken(claims.UserID, claims.Username, h.cfg.JWT.Secret, h.cfg.JWT.ExpiryHours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := middleware.GenerateRefreshToken(claims.UserID, claims.Username, h.cfg.JWT.Secret, h.cfg.JWT.RefreshExpiryDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate refresh token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  token,
		"refresh_token": refreshToken,
	})
}

// GetCurrentUser returns the current authenticated user
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID, _ := currentUser(c)

	var user models.User
	err := h.db.PG.QueryRow(c.Request.Context(), `
		SELECT id, username, email, avatar_url, created_at, updated_at, last_seen_at
		FROM users WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt, &user.LastSeenAt,
	)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}
