package main

import (
	"context"
	"log"
	"time"

	"notebook-rag-platform/internal/ai"
	"notebook-rag-platform/internal/config"
	"notebook-rag-platform/internal/database"
	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/internal/queue"
	"notebook-rag-platform/internal/telemetry"
	"notebook-rag-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Init(cfg)

	shutdownTracer, err := telemetry.InitTracer("notebook-rag-worker")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
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

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	store := database.NewMongoStore(mongoClient, cfg.DBName)

	embedder, err := ai.NewEmbedder(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	locker := database.NewRedisSourceLocker(rdb)
	indexer := services.NewIndexerService(store, store, embedder, chunker, locker, cfg.EmbedBatchSize, metrics)

	// Hourly orphan cleanup backs up the indexer's best-effort cleanup.
	sweeper := services.NewSweeperService(store, time.Duration(cfg.SweepIntervalMinutes)*time.Minute, metrics)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to start sweeper:", err)
	}
	defer sweeper.Stop()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6, // first-time indexing
				"default":  3, // reindex / deindex
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(indexer, store)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexSource, processor.HandleIndexSource)
	mux.HandleFunc(queue.TaskReindexSource, processor.HandleReindexSource)
	mux.HandleFunc(queue.TaskDeindexSource, processor.HandleDeindexSource)

	logger.Info("starting indexing worker", "redis", redisOpt.Addr)
	if err := server.Run(mux); err != nil {
		log.Fatal("Worker failed:", err)
	}
}
