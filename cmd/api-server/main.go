package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stashhub/database"
	"stashhub/internal/chat/broadcast"
	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/handler"
	"stashhub/internal/chat/middleware"
	"stashhub/internal/chat/repository"
	"stashhub/internal/chat/service"
	"stashhub/internal/config"
	"stashhub/internal/realtime"
	"stashhub/internal/shared"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	logger := shared.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Repositories
	roomRepo := repository.NewRoomRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Cache, rate limiting, broadcast
	store := cache.NewRedisStore(redisClient)
	caches := cache.NewLayer(store, cfg.CacheTTL, logger)
	limiter := cache.NewRateLimiter(store)
	gateway := broadcast.NewRedisGateway(redisClient)

	// Services
	authorizer := service.NewAuthorizer(userRepo)
	activityService := service.NewActivityService(activityRepo)
	roomService := service.NewRoomService(roomRepo, memberRepo, messageRepo, authorizer, caches, logger)
	presenceService := service.NewPresenceService(roomRepo, memberRepo, userRepo, activityService, caches, gateway, logger)
	moderationService := service.NewModerationService(roomRepo, memberRepo, moderationRepo, authorizer, caches, gateway, logger)
	messageService := service.NewMessageService(
		roomRepo, memberRepo, messageRepo, userRepo, moderationRepo,
		moderationService, authorizer, activityService,
		caches, limiter, gateway, logger,
		cfg.MaxMessageLength, cfg.MessageRateLimit, cfg.MessageRateWindow,
	)

	// Realtime edge
	hub := realtime.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	relay := realtime.NewRelay(redisClient, hub, logger)
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	go func() {
		if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("realtime relay stopped", "error", err)
		}
	}()

	// Router
	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/chat")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		handler.NewRoomHandler(roomService).RegisterRoutes(api)
		handler.NewMessageHandler(messageService).RegisterRoutes(api)
		handler.NewPresenceHandler(presenceService).RegisterRoutes(api)
		handler.NewModerationHandler(moderationService, activityService).RegisterRoutes(api)
		realtime.NewHandler(hub, logger).RegisterRoutes(api)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("chat api listening", "port", cfg.HTTPPort, "env", cfg.GoEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
