package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/moonvale/werewolf/backend/internal/agora"
	"github.com/moonvale/werewolf/backend/internal/api"
	"github.com/moonvale/werewolf/backend/internal/config"
	"github.com/moonvale/werewolf/backend/internal/database"
	"github.com/moonvale/werewolf/backend/internal/game"
	"github.com/moonvale/werewolf/backend/internal/middleware"
	"github.com/moonvale/werewolf/backend/internal/replay"
	"github.com/moonvale/werewolf/backend/internal/room"
	"github.com/moonvale/werewolf/backend/internal/store"
	"github.com/moonvale/werewolf/backend/internal/websocket"
)

func main() {
	// Load .env file (ignore error in production where env vars are set directly)
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("✓ Connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	log.Println("✓ WebSocket hub started")

	snapshots := store.NewRedisStore(db.Redis)
	replays := replay.NewPGStore(db.PG)

	rooms := room.NewRegistry(db.PG, snapshots, wsHub)
	go rooms.Start(ctx)

	engine := game.NewEngine(snapshots, rooms, replays, wsHub)

	pump := game.NewPump(engine)
	go pump.Run(ctx)
	log.Println("✓ Timer pump started")

	handler := api.NewHandler(db, cfg, rooms, engine, replays, agora.NewService(&cfg.Agora), wsHub)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Public routes
	public := router.Group("/api/v1")
	{
		public.POST("/auth/register", handler.Register)
		public.POST("/auth/login", handler.Login)
		public.POST("/auth/refresh", handler.RefreshToken)
		public.GET("/rooms", handler.GetRooms)

		// WebSocket (handles auth via query param token)
		public.GET("/ws", handler.HandleWebSocket)
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		protected.GET("/users/me", handler.GetCurrentUser)

		// Room routes
		protected.POST("/rooms", handler.CreateRoom)
		protected.POST("/rooms/join", handler.JoinRoom)
		protected.GET("/rooms/:roomId", handler.GetRoom)
		protected.POST("/rooms/:roomId/leave", handler.LeaveRoom)
		protected.POST("/rooms/:roomId/ready", handler.SetReady)
		protected.POST("/rooms/:roomId/kick", handler.KickPlayer)
		protected.POST("/rooms/:roomId/bots", handler.AddBot)
		protected.PATCH("/rooms/:roomId/config", handler.ConfigureRoom)
		protected.POST("/rooms/:roomId/start", handler.StartGame)

		// Game routes
		protected.GET("/rooms/:roomId/game", handler.GetGameState)
		protected.GET("/rooms/:roomId/game/me", handler.GetGamePrivateState)
		protected.POST("/rooms/:roomId/game/action", handler.PerformAction)
		protected.POST("/rooms/:roomId/game/poll", handler.PollGame)
		protected.POST("/rooms/:roomId/chat", handler.SendChat)
		protected.GET("/rooms/:roomId/voice-turn", handler.GetVoiceTurnInfo)
		protected.POST("/rooms/:roomId/agora/token", handler.GetAgoraToken)

		// Replays
		protected.GET("/replays", handler.GetReplays)
		protected.GET("/replays/:replayId", handler.GetReplay)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
