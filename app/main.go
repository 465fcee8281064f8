package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alg-bug-engineer/Neural-Flow/app/api"
	"github.com/alg-bug-engineer/Neural-Flow/app/archive"
	"github.com/alg-bug-engineer/Neural-Flow/app/cfg"
	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/expander"
	"github.com/alg-bug-engineer/Neural-Flow/app/feed"
	"github.com/alg-bug-engineer/Neural-Flow/app/generation"
	"github.com/alg-bug-engineer/Neural-Flow/app/httpjson"
	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
	"github.com/alg-bug-engineer/Neural-Flow/app/rules"
	"github.com/alg-bug-engineer/Neural-Flow/app/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	log.Println("Starting Neural-Flow server...")

	// Database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(filepath.Join(appCfg.DataDir, "neural_flow.db"))
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	version, applied, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	if applied {
		log.Printf("Database migrated to schema version %d", version)
	} else {
		log.Printf("Database schema up to date (version %d)", version)
	}

	// Initialize repositories
	memoryRepo := database.NewMemoryRepository(db)
	archiveRepo := database.NewArchiveRepository(db)
	logRepo := database.NewLogRepository(db)

	// Route structured logs to stdout and the queryable log store
	obs.Setup(logRepo, appCfg.Debug)

	// Load pipeline rules
	slog.Info("Loading rules", "component", "main", "path", appCfg.RulesPath)
	rulesCache := rules.NewCache(appCfg.RulesPath)
	if err := rulesCache.Run(); err != nil {
		log.Fatal("Failed to load rules:", err)
	}

	// Initialize core components
	fetcher := feed.NewFetcher(&http.Client{Timeout: 30 * time.Second}, appCfg.UserAgent)
	parser := feed.NewParser()
	evaluator := feed.NewEvaluator()

	jsonClient := httpjson.NewClient(60*time.Second, appCfg.UserAgent)
	textGen := generation.NewTextGenerator(jsonClient, appCfg.TextGenAPIKey,
		appCfg.TextGenBaseURL, appCfg.TextGenModel)
	painter := generation.NewPainter(jsonClient, appCfg.PaintBaseURL)

	archiveService := archive.NewService(archiveRepo, jsonClient,
		appCfg.ArchiveDir, appCfg.PublicBaseURL, appCfg.NotifyWebhookURL)

	// Initialize and start scheduler
	slog.Info("Starting background scheduler", "component", "main",
		"workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	pipelineScheduler := scheduler.NewScheduler(rulesCache, fetcher, parser,
		evaluator, memoryRepo, archiveService)
	pipelineScheduler.Start()
	defer pipelineScheduler.Stop()

	// Confirmation-driven draft expansion
	draftExpander := expander.NewExpander(archiveRepo, archiveService, textGen, painter)

	// Initialize HTTP server
	apiHandler := api.NewHandler(pipelineScheduler, draftExpander, archiveRepo, logRepo, rulesCache)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey, appCfg.ArchiveDir)

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		log.Printf("Endpoints available:")
		log.Printf("  Health check:  http://localhost:%s/health", appCfg.Port)
		log.Printf("  Status:        http://localhost:%s/status", appCfg.Port)
		log.Printf("  Dashboard:     http://localhost:%s/dashboard", appCfg.Port)
		log.Printf("  Logs:          http://localhost:%s/logs", appCfg.Port)
		log.Printf("  Callback:      http://localhost:%s/callback (POST)", appCfg.Port)
		log.Printf("  Manual scan:   http://localhost:%s/run_once (POST)", appCfg.Port)
		log.Printf("  Rules reload:  http://localhost:%s/reload (POST)", appCfg.Port)
		log.Printf("  Archive:       http://localhost:%s/local-archive/", appCfg.Port)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Neural-Flow server started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	log.Println("Neural-Flow server shutdown complete")
}
