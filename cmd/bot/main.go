package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/api"
	"github.com/postpilot/reddit-affiliate-bot/internal/archive"
	"github.com/postpilot/reddit-affiliate-bot/internal/config"
	"github.com/postpilot/reddit-affiliate-bot/internal/discovery"
	"github.com/postpilot/reddit-affiliate-bot/internal/generator"
	"github.com/postpilot/reddit-affiliate-bot/internal/notifications"
	"github.com/postpilot/reddit-affiliate-bot/internal/opportunity"
	"github.com/postpilot/reddit-affiliate-bot/internal/pipeline"
	"github.com/postpilot/reddit-affiliate-bot/internal/platform"
	"github.com/postpilot/reddit-affiliate-bot/internal/ratelimit"
	"github.com/postpilot/reddit-affiliate-bot/internal/scheduler"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Reddit Affiliate Bot")

	// Open the database and seed demo data on first run
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	if err := st.SeedSampleData(context.Background()); err != nil {
		logrus.Fatalf("Failed to seed sample data: %v", err)
	}

	// Raw scan snapshots go to blob storage when configured
	var snapshotArchive archive.Archive
	if cfg.StorageAccount != "" {
		azureArchive, err := archive.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive storage: %v", err)
		}
		snapshotArchive = azureArchive
	} else {
		logrus.Info("AZURE_STORAGE_ACCOUNT not set, scan snapshot archiving disabled")
	}

	// Initialize notification services
	notificationService := notifications.NewService(cfg)

	// Reddit client serves both discovery searches and post publishing
	redditClient := platform.NewRedditClient(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent)

	var contentGenerator generator.Generator
	if cfg.OpenAIAPIKey != "" {
		contentGenerator = generator.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logrus.Info("OPENAI_API_KEY not set, content generation disabled")
	}

	limiter := ratelimit.New(cfg.RateLimitCapacity, cfg.RateLimitWindow)

	// Initialize pipeline services
	schedulerService := scheduler.NewService(st, redditClient, limiter, notificationService)
	discoveryService := discovery.NewService(st, redditClient, snapshotArchive, cfg.SearchSubreddits)
	opportunityManager := opportunity.NewManager(st, cfg.PromoteBatchSize)
	pipelineService := pipeline.NewService(st, discoveryService, opportunityManager,
		contentGenerator, schedulerService, notificationService, cfg.ScanKeywordLimit)

	// The daily pipeline run rides on the scheduler's cron
	schedulerService.SetDailyJob(func() {
		pipelineService.RunDaily(context.Background())
	})

	// Start scheduler (recovery sweep, stats refresh, daily pipeline)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	router := api.NewRouter(st, pipelineService, opportunityManager, schedulerService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
