package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mindpal/mindpal-backend/internal/handlers"
	"github.com/mindpal/mindpal-backend/internal/middleware"
	"github.com/mindpal/mindpal-backend/internal/services"
	"github.com/mindpal/mindpal-backend/internal/utils"
)

type RouterConfig struct {
	ActorMiddleware *middleware.ActorMiddleware
	NoteHandler     *handlers.NoteHandler
	SplitHandler    *handlers.SplitHandler
	RealtimeHandler *handlers.RealtimeHandler
	Publishers      []services.SSEPublisher
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: utils.GetEnvAsList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		}, nil),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.ActorMiddleware.RequireActor())
	protected.Use(middleware.FlushSSE(cfg.Publishers...))

	// SSE
	protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
	protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
	protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)

	// Notes
	api := protected.Group("/api")
	api.POST("/notes", cfg.NoteHandler.CreateNote)
	api.GET("/notes", cfg.NoteHandler.ListNotes)
	api.GET("/notes/:id", cfg.NoteHandler.GetNote)
	api.PUT("/notes/:id", cfg.NoteHandler.UpdateNote)
	api.DELETE("/notes/:id", cfg.NoteHandler.DeleteNote)
	api.GET("/notes/:id/versions", cfg.NoteHandler.ListVersions)
	api.POST("/notes/:id/restore/:version", cfg.NoteHandler.RestoreVersion)

	// Splits
	api.POST("/notes/:id/splits", cfg.SplitHandler.GenerateSplits)
	api.GET("/notes/:id/splits", cfg.SplitHandler.ListSplits)
	api.GET("/notes/:id/split-runs", cfg.SplitHandler.ListRuns)
	api.GET("/split-runs/:id", cfg.SplitHandler.GetRun)

	return router
}
