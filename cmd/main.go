package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"engage-kb-platform/internal/ai"
	"engage-kb-platform/internal/config"
	"engage-kb-platform/internal/logger"
	"engage-kb-platform/internal/queue"
	"engage-kb-platform/internal/store"
	"engage-kb-platform/internal/telemetry"
	"engage-kb-platform/middleware"
	"engage-kb-platform/routes"
	"engage-kb-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is optional; metrics are always wired
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("engage-kb-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracer:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Redis backs rate limiting; a failure here degrades gracefully
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		rdb = nil
	}

	// Asynq client for dispatching chunking work
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()

	// Optional Gemini completer; without a key answers degrade to the
	// raw retrieved context
	var completer ai.Completer
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiCompleter(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal("Failed to init Gemini completer:", err)
		}
		defer gemini.Close()
		completer = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, answers will return raw context")
	}

	// Wire services
	kbStore := store.NewMongoStore(mongoClient.Database(cfg.DBName))
	chunker := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	dispatcher := queue.NewDispatcher(asynqClient)
	ingestion := services.NewIngestionService(kbStore, chunker, dispatcher, metrics)
	retrieval := services.NewRetrievalService(kbStore, cfg.RetrievalTopK, metrics)
	synthesizer := services.NewSynthesizer(completer, time.Duration(cfg.CompletionTimeout)*time.Second, metrics)

	sweep := services.NewSweepService(kbStore,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.StuckAfterMinutes)*time.Minute)
	if err := sweep.Start(); err != nil {
		log.Fatal("Failed to start reconciliation sweep:", err)
	}
	defer sweep.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg)

	// Setup routes
	deps := routes.KnowledgeDeps{
		Config:      cfg,
		Store:       kbStore,
		Ingestion:   ingestion,
		Retrieval:   retrieval,
		Synthesizer: synthesizer,
		Redis:       rdb,
	}
	routes.SetupKnowledgeRoutes(router, deps, authMiddleware)
	routes.SetupImportRoutes(router, deps, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
