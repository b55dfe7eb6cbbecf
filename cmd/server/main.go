package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classpulse/classpulse/backend/internal/assistant"
	"github.com/classpulse/classpulse/backend/internal/cache"
	"github.com/classpulse/classpulse/backend/internal/config"
	"github.com/classpulse/classpulse/backend/internal/database"
	"github.com/classpulse/classpulse/backend/internal/discussion"
	"github.com/classpulse/classpulse/backend/internal/events"
	"github.com/classpulse/classpulse/backend/internal/handlers"
	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/middleware"
	"github.com/classpulse/classpulse/backend/internal/moderation"
	"github.com/classpulse/classpulse/backend/internal/store"
	"github.com/classpulse/classpulse/backend/internal/websocket"
)

func main() {
	// Setup file logging
	logFile, err := os.OpenFile("server.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	// Write to both stdout and log file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	// Also configure Gin to log to the file
	gin.DefaultWriter = multiWriter
	gin.DefaultErrorWriter = multiWriter

	log.Println("=== ClassPulse server starting ===")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Structured logger (zap) used by the internal packages
	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	threadStore := store.NewGormStore(database.DB)

	// Redis is optional: without it list responses are computed on every request
	redisClient, err := cache.NewRedisClient(
		os.Getenv("REDIS_HOST"),
		os.Getenv("REDIS_PORT"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		log.Printf("Warning: Redis unavailable: %v", err)
		log.Println("Continuing without Redis - response caching disabled")
		redisClient = nil
	}

	// Moderation pipeline and AI assistant share the OpenAI credentials
	modCfg := config.LoadModerationConfig()
	var pipeline *moderation.Pipeline
	var generator assistant.Generator
	if modCfg.Enabled() {
		classifier, err := moderation.NewOpenAIClassifier(moderation.Config{
			APIKey:  modCfg.APIKey,
			BaseURL: modCfg.BaseURL,
			Model:   modCfg.ClassifierModel,
			Timeout: modCfg.Timeout,
		})
		if err != nil {
			log.Fatalf("Failed to initialize moderation classifier: %v", err)
		}
		policy := moderation.FailOpen()
		if modCfg.FailClosed {
			policy = moderation.FailClosed()
		}
		pipeline = moderation.NewPipeline(classifier, policy)

		generator, err = assistant.NewOpenAIGenerator(assistant.Config{
			APIKey:  modCfg.APIKey,
			BaseURL: modCfg.BaseURL,
			Model:   modCfg.AssistantModel,
		})
		if err != nil {
			log.Fatalf("Failed to initialize assistant: %v", err)
		}
	} else {
		log.Println("Warning: OPENAI_API_KEY not set - content is auto-approved and AI endpoints are disabled")
	}

	// Event bus fans service events out to websocket subscribers
	bus := events.NewBus()

	// Initialize WebSocket hub and handler
	wsHub := websocket.NewHub()
	wsHandler := websocket.NewHandler(wsHub, bus)

	// Start WebSocket hub and the event bridge in background
	go wsHub.Run()
	go wsHandler.RunEventBridge()

	// Discussion service wires the whole domain together
	svcOpts := []discussion.Option{
		discussion.WithPublisher(bus),
	}
	if pipeline != nil {
		svcOpts = append(svcOpts, discussion.WithModeration(pipeline))
	}
	if generator != nil {
		svcOpts = append(svcOpts, discussion.WithAssistant(generator))
	}
	svc := discussion.NewService(threadStore, svcOpts...)

	// Initialize handlers
	h := handlers.NewHandlers(svc)
	if redisClient != nil {
		h.SetRedisClient(redisClient)
	}

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // Configure properly for production
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "classpulse-backend",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")
	{
		// Discussion routes
		discussions := api.Group("/discussions")
		{
			discussions.GET("", h.ListDiscussions)
			discussions.POST("", h.CreateDiscussion)
			discussions.GET("/:id", h.GetDiscussion)
			discussions.POST("/:id/replies", h.AddReply)
			discussions.POST("/:id/vote", h.ToggleVote)
			discussions.POST("/:id/report", h.Report)
			discussions.DELETE("/:id", h.DeleteContent)
			discussions.POST("/:id/summarize", h.SummarizeDiscussion)
			discussions.POST("/:id/suggestions", h.SuggestEngagementActions)
		}

		// Moderation routes
		mod := api.Group("/moderation")
		{
			mod.GET("/reported", h.GetReportedQueue)
		}

		// WebSocket routes
		ws := api.Group("/ws")
		{
			ws.GET("", wsHandler.HandleWebSocket)
			ws.GET("/connect", wsHandler.HandleWebSocket)
			ws.GET("/metrics", wsHandler.HandleMetrics)
		}
	}

	// Server configuration
	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("📣 ClassPulse backend starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown WebSocket connections gracefully
	if err := wsHandler.Shutdown(ctx); err != nil {
		log.Printf("WebSocket shutdown warning: %v", err)
	}

	bus.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if err := database.Close(); err != nil {
		log.Printf("Database close warning: %v", err)
	}

	log.Println("Server exited")
}
