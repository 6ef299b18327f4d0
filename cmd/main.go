package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notebook-rag-platform/internal/ai"
	"notebook-rag-platform/internal/config"
	"notebook-rag-platform/internal/database"
	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/internal/telemetry"
	"notebook-rag-platform/middleware"
	"notebook-rag-platform/routes"
	"notebook-rag-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Init(cfg)

	shutdownTracer, err := telemetry.InitTracer("notebook-rag-api")
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

	store := database.NewMongoStore(mongoClient, cfg.DBName)

	// Embedder and answer generation
	embedder, err := ai.NewEmbedder(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	answers, err := ai.NewAnswerGenerator(cfg)
	if err != nil {
		log.Fatal("Failed to initialize answer generator:", err)
	}
	defer answers.Close()

	retriever := services.NewRetrieverService(store, embedder, cfg.SearchTopK, cfg.SimilarityThreshold, metrics)
	extractor := services.NewSourceExtractor()

	// Indexing tasks are enqueued here and processed by cmd/worker.
	tasks := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer tasks.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(otelgin.Middleware("notebook-rag-api"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	// Setup routes
	routes.SetupNotebookRoutes(router, store, tasks, authMiddleware)
	routes.SetupSourceRoutes(router, cfg, store, tasks, extractor, authMiddleware)
	routes.SetupSearchRoutes(router, retriever, answers, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
