package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"virtual-tryon-backend/internal/config"
	"virtual-tryon-backend/internal/database"
	"virtual-tryon-backend/internal/handlers"
	"virtual-tryon-backend/internal/jobrunner"
	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/observability"
	"virtual-tryon-backend/internal/orchestrator"
	"virtual-tryon-backend/internal/profile"
	"virtual-tryon-backend/internal/services"
	"virtual-tryon-backend/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := observability.Logger()

	// Job Backend client: the external runner that owns uploads, sessions and
	// generation tasks.
	jobClient := jobrunner.NewClient(cfg.JobAPIBaseURL, cfg.JobAPIKey)

	// Snapshot persistence: Postgres when configured, memory otherwise.
	var snapshots orchestrator.SnapshotStore
	if cfg.DatabaseURL != "" {
		dbStore, err := database.NewSnapshotStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize snapshot store: %v", err)
		}
		defer dbStore.Close()
		if err := dbStore.EnsureSchema(); err != nil {
			log.Fatalf("Failed to ensure snapshot schema: %v", err)
		}
		snapshots = dbStore
	} else {
		log.Println("Warning: DATABASE_URL not set, session snapshots will not survive a restart")
		snapshots = orchestrator.NewMemorySnapshotStore()
	}

	// Balance reconciler; optional collaborator.
	var reconciler *orchestrator.BalanceReconciler
	if cfg.ProfileAPIBaseURL != "" {
		profileClient := profile.NewClient(cfg.ProfileAPIBaseURL, cfg.JobAPIKey)
		reconciler = orchestrator.NewBalanceReconciler(profileClient, observability.WithComponent("balance"))
	}

	// Result archiver; optional collaborator.
	var archiver orchestrator.ResultArchiver
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		if err != nil {
			log.Fatalf("Failed to initialize storage client: %v", err)
		}
		archiver = services.NewArchiveService(jobClient, storageClient, observability.WithComponent("archive"))
	}

	storeCfg := orchestrator.StoreConfig{
		MaxInstructionLen: cfg.MaxInstructionLen,
		Poll: orchestrator.PollConfig{
			Interval:             time.Duration(cfg.PollIntervalMs) * time.Millisecond,
			MaxAttempts:          cfg.PollMaxAttempts,
			MaxDuration:          time.Duration(cfg.PollMaxDurationMs) * time.Millisecond,
			SlowWarningAfter:     time.Duration(cfg.SlowWarningMs) * time.Millisecond,
			VerySlowWarningAfter: time.Duration(cfg.VerySlowWarningMs) * time.Millisecond,
		},
	}

	registry := orchestrator.NewRegistry(func() *orchestrator.Store {
		store := orchestrator.NewStore(jobClient, jobClient, snapshots, storeCfg, observability.WithComponent("store"))
		if reconciler != nil {
			store = store.WithReconciler(reconciler)
		}
		if archiver != nil {
			store = store.WithArchiver(archiver)
		}
		return store
	})

	uploader := orchestrator.NewUploader(jobClient, orchestrator.UploadPolicy{
		AllowedMIMETypes: orchestrator.DefaultUploadPolicy().AllowedMIMETypes,
		MaxBytes:         cfg.MaxUploadBytes,
	}, nil, observability.WithComponent("uploader"))

	uploadHandler := handlers.NewUploadHandler(uploader)
	sessionsHandler := handlers.NewSessionsHandler(registry)
	generateHandler := handlers.NewGenerateHandler(registry)

	router := gin.Default()

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/uploads", uploadHandler.Upload)
	api.POST("/sessions", sessionsHandler.CreateSession)
	api.GET("/sessions/:session_id/history", sessionsHandler.GetHistory)
	api.GET("/sessions/:session_id/task", sessionsHandler.GetTask)
	api.POST("/sessions/:session_id/generate", generateHandler.Generate)
	api.DELETE("/sessions/:session_id", sessionsHandler.DeleteSession)

	logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
