package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"matchcore/internal/config"
	"matchcore/internal/handler"
	"matchcore/internal/repository"
	"matchcore/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	log.Printf("Demand Matching Core")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration; missing upstream credentials fail here, before any
	// session exists
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	gin.SetMode(cfg.Server.GinMode)

	// Candidate pool
	pool, err := repository.NewPostgresCandidatePool(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to candidate pool database: %v", err)
	}
	defer pool.Close()
	log.Println("Connected to PostgreSQL candidate pool")

	// Session archive (optional)
	var archive service.SessionArchive
	if cfg.Redis.Enabled {
		redisArchive, err := repository.NewRedisSessionArchive(
			context.Background(),
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.ArchiveTTL,
		)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisArchive.Close()
		archive = redisArchive
		log.Println("Connected to Redis session archive")
	} else {
		log.Println("REDIS_ADDR not set - closed sessions will not be archived")
	}

	// Upstream model client
	aiClient := service.NewOpenAIClient(&cfg.OpenAI)
	log.Printf("OpenAI client initialized")
	log.Printf("   - API Base: %s", cfg.OpenAI.APIBase)
	log.Printf("   - Chat model: %s", cfg.OpenAI.ChatModel)
	log.Printf("   - Embedding model: %s (%d dims)", cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDimensions)

	// Conversation core
	extractor := service.NewIntentExtractor(aiClient)
	embedder := service.NewEmbedder(aiClient, cfg.OpenAI.EmbeddingDimensions)
	ranker := service.NewRanker(cfg.Matching.MinScore, cfg.Matching.TopK)
	selector := service.NewEscalationSelector(cfg.Matching.AgentLimit)
	conversations := service.NewConversationManager(
		aiClient,
		extractor,
		embedder,
		ranker,
		selector,
		pool,
		archive,
		cfg.Conversation,
		cfg.Matching.CandidateFeed,
	)
	log.Println("Services initialized")

	chatHandler := handler.NewChatHandler(conversations)

	// Setup Gin router
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "demand-matching-core",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat/message", chatHandler.Message)
		apiV1.POST("/chat/accept", chatHandler.Accept)
		apiV1.POST("/chat/close", chatHandler.Close)
		apiV1.GET("/chat/sessions/:id", chatHandler.GetSession)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server stopped")
}
