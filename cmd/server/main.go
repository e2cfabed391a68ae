package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"fitbot/internal/cache"
	"fitbot/internal/config"
	"fitbot/internal/database"
	"fitbot/internal/handlers"
	"fitbot/internal/inference"
	"fitbot/internal/jobs"
	"fitbot/internal/logging"
	"fitbot/internal/middleware"
	"fitbot/internal/preflight"
	"fitbot/internal/services"
	"fitbot/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting FitBot Server...")

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Backend: %s, Model: %s)", cfg.Port, cfg.Backend, cfg.Chat.Model)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	checker := preflight.NewChecker(db, cfg)
	if preflight.HasFailures(checker.RunAll()) {
		log.Println("❌ Pre-flight checks failed. Please fix the issues above before starting the server.")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation store: MongoDB when configured, otherwise the relational database
	var store services.ConversationStore = services.NewSQLConversationStore(db)
	var mongoDB *database.MongoDB
	if cfg.MongoDBURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoDBURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (using SQL conversation store)", err)
			mongoDB = nil
		} else {
			defer mongoDB.Close(context.Background())
			if err := mongoDB.Initialize(ctx); err != nil {
				log.Printf("⚠️ Failed to initialize MongoDB indexes: %v", err)
			}
			store = services.NewMongoConversationStore(mongoDB)
			log.Println("✅ MongoDB conversation store enabled")
		}
	}

	// Context cache: Redis when configured, otherwise in-process
	var cacheBackend cache.Backend = cache.NewMemoryBackend(10 * time.Minute)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (using in-process cache)", err)
			redisService = nil
		} else {
			defer redisService.Close()
			cacheBackend = cache.NewRedisBackend(redisService.Client(), "fitbot:")
			log.Println("✅ Redis context cache enabled")
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - using in-process context cache")
	}

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	contextCache := cache.New(cacheBackend)
	contextCache.SetObserver(metrics.CacheObserver())

	faq, err := services.NewFAQService(cfg.FAQFile, cfg.FAQMatchThreshold)
	if err != nil {
		log.Fatalf("❌ Failed to load FAQ corpus: %v", err)
	}
	go faq.Watch(ctx)

	backend, err := inference.NewBackend(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create chat backend: %v", err)
	}
	if !backend.Configured() {
		log.Printf("⚠️ [BACKEND] %s has no API key - AI answers disabled", cfg.Backend)
	}

	gymData := services.NewGymDataService(db)
	assembler := services.NewContextAssembler(contextCache, gymData, cfg.GymName, nil)
	tools := services.NewGymTools(gymData, nil)
	tools.SetStaffStats(assembler)

	orchestrator := services.NewChatOrchestrator(cfg.Chat, services.ChatDeps{
		FAQ:     faq,
		Tools:   tools,
		Prompts: assembler,
		Store:   store,
		Backend: backend,
		Audit:   services.NewAuditService(db, os.Stdout),
		Metrics: metrics,
	})

	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
	} else {
		log.Println("⚠️ JWT_SECRET not set - requests are anonymous")
	}

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	rollover := jobs.NewCacheRolloverJob(contextCache, assembler, nil)
	if err := jobScheduler.Register(jobs.CacheRolloverJobName, cfg.CacheRolloverCron, rollover); err != nil {
		log.Fatalf("❌ Failed to register cache rollover job: %v", err)
	}
	jobScheduler.Start()

	chatLimiter := middleware.NewChatRateLimiter(cfg.ChatRatePerMinute)
	go startLimiterCleanup(ctx, chatLimiter)

	app := fiber.New(fiber.Config{
		AppName:      "FitBot v1.0",
		ReadTimeout:  cfg.Chat.Timeout + 15*time.Second,
		WriteTimeout: cfg.Chat.Timeout + 15*time.Second,
		IdleTimeout:  2 * time.Minute,
		BodyLimit:    64 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prom := fiberprometheus.New("fitbot")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization," + middleware.SessionKeyHeader,
		ExposeHeaders:    middleware.SessionKeyHeader,
		AllowCredentials: allowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(200, time.Minute))

	pingers := map[string]handlers.Pinger{"database": db}
	if redisService != nil {
		pingers["redis"] = redisService
	}
	if mongoDB != nil {
		pingers["mongodb"] = mongoDB
	}

	handlers.RegisterRoutes(app, handlers.RouteDeps{
		Chat:        handlers.NewChatHandler(orchestrator, assembler, gymData),
		Health:      handlers.NewHealthHandler(pingers),
		JWTAuth:     jwtAuth,
		StaffIDs:    cfg.StaffUserIDs,
		Users:       gymData,
		ChatLimiter: chatLimiter,
	})

	log.Printf("💬 Chat endpoint: http://localhost:%s/api/chat", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")

		jobScheduler.Stop()
		cancel()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// startLimiterCleanup drops idle per-requester limiters every few minutes
func startLimiterCleanup(ctx context.Context, limiter *middleware.ChatRateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := limiter.Cleanup(); removed > 0 {
				log.Printf("🧹 [RATE-LIMIT] Removed %d idle chat limiters", removed)
			}
		}
	}
}
