package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mindpal/mindpal-backend/internal/clients/redis"
	"github.com/mindpal/mindpal-backend/internal/db"
	"github.com/mindpal/mindpal-backend/internal/handlers"
	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/middleware"
	"github.com/mindpal/mindpal-backend/internal/repos"
	"github.com/mindpal/mindpal-backend/internal/server"
	"github.com/mindpal/mindpal-backend/internal/services"
	"github.com/mindpal/mindpal-backend/internal/sse"
	"github.com/mindpal/mindpal-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	noteRepo := repos.NewNoteRepo(thePG, log)
	versionRepo := repos.NewNoteVersionRepo(thePG, log)
	runRepo := repos.NewSplitRunRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	publishers := []services.SSEPublisher{&services.HubPublisher{Hub: sseHub}}

	// Redis bus fans events out to the other replicas; a single-node deploy
	// runs fine without it.
	sseBus, err := redis.NewSSEBus(log)
	if err != nil {
		log.Warn("Redis SSE bus unavailable; events stay in-process", "error", err)
	} else {
		defer sseBus.Close()
		if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
			log.Warn("Redis SSE forwarder failed to start", "error", err)
		} else {
			publishers = append(publishers, &redis.BusPublisher{Bus: sseBus, Log: log})
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	var oracle services.CategoryOracle
	oracle, err = services.NewOpenAIOracle(log)
	if err != nil {
		log.Warn("Category oracle unavailable; inferred mode will be rejected", "error", err)
		oracle = nil
	}
	categoryCfg := services.LoadCategoryConfig(log)
	resolver := services.NewCategoryResolver(log, oracle, categoryCfg)
	notifier := services.NewSplitNotifier(log, publishers...)
	noteService := services.NewNoteService(thePG, log, noteRepo, versionRepo)
	splitService := services.NewSplitService(thePG, log, noteService, resolver, runRepo, notifier)

	// Handlers
	log.Info("Setting up handlers from main...")
	noteHandler := handlers.NewNoteHandler(noteService)
	splitHandler := handlers.NewSplitHandler(splitService, noteService)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	actorMiddleware := middleware.NewActorMiddleware(log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ActorMiddleware: actorMiddleware,
		NoteHandler:     noteHandler,
		SplitHandler:    splitHandler,
		RealtimeHandler: realtimeHandler,
		Publishers:      publishers,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
