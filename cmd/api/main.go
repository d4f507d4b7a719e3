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

	"github.com/nkechi/allergyjournal/backend/internal/adapters/analytics"
	"github.com/nkechi/allergyjournal/backend/internal/adapters/cache"
	"github.com/nkechi/allergyjournal/backend/internal/adapters/database"
	"github.com/nkechi/allergyjournal/backend/internal/adapters/events"
	"github.com/nkechi/allergyjournal/backend/internal/adapters/store"
	"github.com/nkechi/allergyjournal/backend/internal/api/handlers"
	"github.com/nkechi/allergyjournal/backend/internal/api/routes"
	"github.com/nkechi/allergyjournal/backend/internal/application/services"
	"github.com/nkechi/allergyjournal/backend/internal/domain/providers"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/clients/badgerdb"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/clients/extraction"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/clients/redis"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/clients/transcription"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
	"github.com/nkechi/allergyjournal/backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize the embedded durable store
	storeClient, err := badgerdb.NewClient(&cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open note store: %v", err)
	}
	defer storeClient.Close()
	log.Println("Note store opened successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - the application can work without caching
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize analytics forwarding if enabled
	var analyticsProvider providers.AnalyticsProvider
	if cfg.Analytics.Enabled && cfg.Analytics.Endpoint != "" {
		analyticsProvider = analytics.NewHTTPAdapter(&cfg.Analytics)
		log.Println("Analytics forwarding enabled")
	}

	// Initialize event bus for lifecycle events
	eventBus := events.NewInProcessEventBus(analyticsProvider)

	// Initialize adapters
	kvStore := store.NewBadgerAdapter(storeClient)
	noteAdapter := database.NewNoteAdapter(kvStore)

	// Initialize the extraction client
	extractionClient, err := extraction.NewClient(&cfg.Extraction)
	if err != nil {
		log.Fatalf("Failed to initialize extraction client: %v", err)
	}

	var transcriptionProvider providers.TranscriptionProvider
	if cfg.Transcription.WebhookURL == "" {
		log.Println("Warning: TRANSCRIPTION_WEBHOOK_URL is not set; voice capture disabled")
	} else {
		transcriptionClient, err := transcription.NewClient(&cfg.Transcription)
		if err != nil {
			log.Printf("Warning: Failed to initialize transcription client: %v", err)
		} else {
			transcriptionProvider = transcriptionClient
		}
	}

	// Initialize services
	processingQueue := services.NewProcessingQueue(noteAdapter, extractionClient, eventBus)
	processingQueue.SetMetrics(metrics)

	captureService := services.NewCaptureService(noteAdapter, processingQueue, eventBus, transcriptionProvider)
	summaryService := services.NewSummaryService(noteAdapter, cacheProvider, nil)

	// Recover notes left mid-processing by a previous run
	if count, err := captureService.RequeueInFlight(ctx); err != nil {
		log.Printf("Warning: Failed to requeue in-flight notes: %v", err)
	} else if count > 0 {
		log.Printf("Re-enqueued %d in-flight notes", count)
	}

	// Initialize handlers
	noteHandler := handlers.NewNoteHandler(captureService, noteAdapter)
	summaryHandler := handlers.NewSummaryHandler(summaryService)

	// Set up router
	router := routes.NewRouter(noteHandler, summaryHandler, metrics)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Let the in-flight extraction settle before stopping the queue;
	// anything still pending is recovered by the startup requeue scan
	if err := processingQueue.WaitIdle(shutdownCtx); err != nil {
		log.Printf("Processing queue still busy at shutdown: %v", err)
	}
	if err := processingQueue.Close(); err != nil {
		log.Printf("Error closing processing queue: %v", err)
	}

	if err := eventBus.Close(); err != nil {
		log.Printf("Error closing event bus: %v", err)
	}

	log.Println("Server stopped")
}
