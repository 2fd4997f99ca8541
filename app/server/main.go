package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/hireloop/hireloop/config"
	"github.com/hireloop/hireloop/internal/api/handlers"
	"github.com/hireloop/hireloop/internal/api/middleware"
	"github.com/hireloop/hireloop/internal/api/routes"
	"github.com/hireloop/hireloop/internal/cache"
	"github.com/hireloop/hireloop/internal/logger"
	"github.com/hireloop/hireloop/internal/providers/embed"
	"github.com/hireloop/hireloop/internal/providers/llm"
	"github.com/hireloop/hireloop/internal/providers/stt"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/storage"
	"github.com/hireloop/hireloop/internal/workers"
)

func llmTimeout() time.Duration {
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 30 * time.Second
}

func main() {
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	// Datastores
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("postgres init failed")
	}
	if err := config.MigratePostgres(); err != nil {
		log.WithError(err).Fatal("postgres migration failed")
	}
	log.Info("postgres connected")

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("mongo init failed")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("mongo index setup failed")
	}
	log.Info("mongo connected")

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("redis init failed")
	}
	log.Info("redis connected")

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "hireloop"
	}

	// Providers
	provider, err := llm.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		os.Getenv("VERTEX_LOCATION"),
		os.Getenv("VERTEX_MODEL"))
	if err != nil {
		log.WithError(err).Fatal("vertex init failed")
	}
	defer provider.Close()

	speech, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.WithError(err).Fatal("speech init failed")
	}
	defer speech.Close()

	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		log.Fatal("GCS_BUCKET environment variable is not set")
	}
	store, err := storage.NewGCSStore(ctx, bucket)
	if err != nil {
		log.WithError(err).Fatal("gcs init failed")
	}
	defer store.Close()

	var embedder embed.Provider
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		e, err := embed.NewGeminiEmbedder(ctx, key)
		if err != nil {
			log.WithError(err).Warn("embedder init failed, similarity lookups disabled")
		} else {
			embedder = e
		}
	} else {
		log.Warn("GEMINI_API_KEY unset, similarity lookups disabled")
	}

	// Repositories
	candidates := pgrepo.NewCandidateRepo(config.PostgresDB)
	resumeFiles := pgrepo.NewResumeFileRepo(config.PostgresDB)
	interviewers := pgrepo.NewInterviewerRepo(config.PostgresDB)
	sessions := mongorepo.NewSessionRepo(config.MongoClient.Database(dbName))

	// Services
	timeout := llmTimeout()
	timers := services.NewCountdownRegistry(config.RedisClient, log)
	drafts := services.NewRedisDraftStore(config.RedisClient)
	dashCache := cache.NewRedisCache(config.RedisClient, "hireloop:")

	interviewSvc := services.NewInterviewService(sessions, candidates, resumeFiles, provider, timers, drafts, log, timeout)
	resumeSvc := services.NewResumeService(resumeFiles, store, store, provider, embedder, log, timeout)
	dashboardSvc := services.NewDashboardService(candidates, sessions, dashCache, log)
	authSvc := services.NewAuthService(interviewers, log)

	if err := authSvc.Bootstrap(ctx); err != nil {
		log.WithError(err).Fatal("auth bootstrap failed")
	}

	// Voice answers
	pool := &workers.TranscribeWorkerPool{
		Redis:  config.RedisClient,
		Drafts: drafts,
		STT:    speech,
		Logger: log,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("transcribe workers failed to start")
	}

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:      handlers.NewAuthHandler(authSvc),
		Interview: handlers.NewInterviewHandler(interviewSvc),
		Resume:    handlers.NewResumeHandler(resumeSvc),
		Dashboard: handlers.NewDashboardHandler(dashboardSvc),
		WS:        handlers.NewWSHandler(interviewSvc, drafts, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
