package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"stashhub/database"
	"stashhub/internal/chat/broadcast"
	"stashhub/internal/chat/cache"
	"stashhub/internal/chat/repository"
	"stashhub/internal/chat/service"
	"stashhub/internal/config"
	"stashhub/internal/shared"
)

// chat-maintenance runs the periodic housekeeping the request path only
// does lazily: marking stale members offline, clearing expired mutes and
// bans, and pruning old activity rows. Run it from cron or as a one-shot.
func main() {
	var (
		sweepPresence   = flag.Bool("presence", true, "mark inactive online members offline")
		sweepModeration = flag.Bool("moderation", true, "clear expired mutes and bans")
		pruneActivity   = flag.Bool("activity", true, "prune old activity rows")
		once            = flag.Bool("once", true, "run one pass and exit; false loops on --interval")
		interval        = flag.Duration("interval", time.Minute, "loop interval when --once=false")
	)
	flag.Parse()

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

	roomRepo := repository.NewRoomRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	userRepo := repository.NewUserRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	store := cache.NewRedisStore(redisClient)
	caches := cache.NewLayer(store, cfg.CacheTTL, logger)
	gateway := broadcast.NewRedisGateway(redisClient)

	authorizer := service.NewAuthorizer(userRepo)
	activityService := service.NewActivityService(activityRepo)
	presenceService := service.NewPresenceService(roomRepo, memberRepo, userRepo, activityService, caches, gateway, logger)
	moderationService := service.NewModerationService(roomRepo, memberRepo, moderationRepo, authorizer, caches, gateway, logger)

	ctx := context.Background()
	pass := func() {
		if *sweepPresence {
			count, err := presenceService.SweepInactive(ctx, cfg.InactivityThreshold)
			if err != nil {
				logger.Error("presence sweep failed", "error", err)
			} else {
				logger.Info("presence sweep done", "marked_offline", count)
			}
		}

		if *sweepModeration {
			mutes, bans, err := moderationService.SweepExpired(ctx)
			if err != nil {
				logger.Error("moderation sweep failed", "error", err)
			} else {
				logger.Info("moderation sweep done", "mutes_cleared", mutes, "bans_cleared", bans)
			}
		}

		if *pruneActivity {
			pruned, err := activityService.Prune(ctx, cfg.ActivityRetention)
			if err != nil {
				logger.Error("activity prune failed", "error", err)
			} else {
				logger.Info("activity prune done", "rows_removed", pruned)
			}
		}
	}

	pass()
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for range ticker.C {
		pass()
	}
}
