package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/heartline/internal/config"
	"github.com/jwebster45206/heartline/internal/handlers"
	"github.com/jwebster45206/heartline/internal/logger"
	"github.com/jwebster45206/heartline/internal/services/events"
	"github.com/jwebster45206/heartline/internal/services/queue"
	"github.com/jwebster45206/heartline/internal/session"
	"github.com/jwebster45206/heartline/internal/storage"
	"github.com/jwebster45206/heartline/internal/worker"
	"github.com/jwebster45206/heartline/pkg/content"
	"github.com/jwebster45206/heartline/pkg/dialogue"
)

const sessionMaxIdle = 2 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Heartline API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"content_dir", cfg.ContentDir,
		"store_backend", cfg.StoreBackend)

	// Load the content pack; defective items are logged and skipped
	loader := content.NewLoader(log)
	pack, err := loader.LoadDir(cfg.ContentDir)
	if err != nil {
		log.Error("Failed to load content", "error", err, "dir", cfg.ContentDir)
		os.Exit(1)
	}
	if issues := loader.Issues(); len(issues) > 0 {
		log.Warn("Content loaded with issues", "count", len(issues))
	}
	graphs := dialogue.NewStore(log)
	if err := pack.Store(graphs); err != nil {
		log.Error("Failed to register scenarios", "error", err)
		os.Exit(1)
	}
	log.Info("Content loaded", "scenarios", len(graphs.IDs()), "characters", len(pack.Characters))

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	store, redisClient, err := storage.Open(storageCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	manager := session.NewManager(pack, graphs, store, session.Options{
		PlayerName:           cfg.PlayerName,
		MaxDailyInteractions: cfg.MaxDailyInteractions,
		MaxSaveSlots:         cfg.MaxSaveSlots,
	}, log)

	mux := http.NewServeMux()

	// Story event queue and live notifications need Redis
	if redisClient != nil {
		queueClient := queue.NewClientFromRedis(redisClient, log)
		manager.WithEventQueue(queue.NewEventQueue(queueClient, log)).
			WithNotifier(events.NewBroadcaster(redisClient, log))

		eventsHandler := handlers.NewEventsHandler(redisClient, log)
		mux.Handle("/v1/events/sessions/", eventsHandler)
	}

	healthHandler := handlers.NewHealthHandler(store, func() int { return len(manager.IDs()) }, log)
	mux.Handle("/health", healthHandler)

	scenarioHandler := handlers.NewScenarioHandler(manager.Scenarios, log)
	mux.Handle("/v1/scenarios", scenarioHandler)

	sessionHandler := handlers.NewSessionHandler(manager, handlers.NewStreamHandler(manager, log), log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	autosave := worker.New(manager, cfg.AutosaveInterval, sessionMaxIdle, log, "")
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := autosave.Start(); err != nil {
			log.Error("Autosave worker failed", "error", err)
		}
	}()

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE and WebSocket streams are long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Final autosave pass runs inside Stop's shutdown path
	autosave.Stop()
	<-workerDone

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
