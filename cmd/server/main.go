package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ymatsuda/rankwatch/app/api"
	"github.com/ymatsuda/rankwatch/app/cfg"
	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/evaluation"
	"github.com/ymatsuda/rankwatch/app/searchconsole"
	"github.com/ymatsuda/rankwatch/app/seed"
	"github.com/ymatsuda/rankwatch/app/suggestion"
	"github.com/ymatsuda/rankwatch/app/tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appConfig, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	if appConfig.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.Printf("Starting RankWatch server (version %s)...", appConfig.Version)

	// Database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(
		appConfig.DBHost, appConfig.DBPort, appConfig.DBUser,
		appConfig.DBPassword, appConfig.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Database ready (migration version %d, dirty: %v)", version, dirty)

	// Load seed configurations
	seedLoader := seed.NewLoader(appConfig.SeedDir)
	seedConfigs, err := seedLoader.LoadAll()
	if err != nil {
		log.Fatal("Failed to load seed configurations:", err)
	}
	if len(seedConfigs) > 0 {
		log.Printf("Loaded %d seed configuration files from %s", len(seedConfigs), appConfig.SeedDir)
	}

	// Initialize repositories
	configRepo := database.NewEvaluationConfigRepository(db)
	historyRepo := database.NewEvaluationHistoryRepository(db)
	metricsRepo := database.NewRankingMetricsRepository(db)

	// Initialize collaborators
	importer := searchconsole.NewClient(
		appConfig.SearchAPIBaseURL, appConfig.SearchAPIKey, appConfig.UserAgent,
		configRepo, metricsRepo)
	llmClient := suggestion.NewChatClient(
		appConfig.LLMAPIKey, appConfig.LLMBaseURL, appConfig.LLMModel)
	generator := suggestion.NewLLMGenerator(llmClient, historyRepo)

	// Initialize the evaluation engine and the background scheduler. The
	// suggestion dispatcher is bound once the scheduler exists.
	engine := evaluation.NewEngine(configRepo, historyRepo, metricsRepo,
		importer, nil, appConfig.TimezoneOffsetHours, appConfig.EvalConcurrency)

	log.Printf("Starting background scheduler with %d workers...", appConfig.WorkerCount)
	scheduler := tasks.NewScheduler(engine, configRepo, seedConfigs)
	engine.SetSuggestionDispatcher(tasks.NewDispatcher(scheduler, generator))
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	apiHandler := api.NewHandler(configRepo, historyRepo, engine)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("RankWatch server started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	log.Println("RankWatch server shutdown complete")
}
