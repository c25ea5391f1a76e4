package main

import (
	"context"
	"log"

	"engage-kb-platform/internal/config"
	"engage-kb-platform/internal/logger"
	"engage-kb-platform/internal/queue"
	"engage-kb-platform/internal/store"
	"engage-kb-platform/internal/telemetry"
	"engage-kb-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// The worker's own pipeline also needs a dispatcher so a reingest
	// triggered from a task could requeue chunking
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	kbStore := store.NewMongoStore(mongoClient.Database(cfg.DBName))
	chunker := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := services.NewIngestionService(kbStore, chunker, queue.NewDispatcher(asynqClient), metrics)

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"ingest":  7,
				"default": 3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskChunkDocument, processor.HandleChunkDocument)

	log.Println("Starting Asynq worker...")
	log.Printf("   Queues: ingest(7), default(3)")
	log.Printf("   Redis: %s", redisOpt.Addr)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
