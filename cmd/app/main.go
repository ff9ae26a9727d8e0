package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mentalgoals/internal/api"
	"mentalgoals/internal/middleware"
	"mentalgoals/internal/repository"
	"mentalgoals/internal/service"
	"mentalgoals/internal/workers"
	"mentalgoals/pkg/auth"
	"mentalgoals/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := repository.NewDualStore(documentConnector(cfg), kvConnector(cfg))
	defer store.Close()
	challenges := repository.NewChallengeStore(store)

	notifier := service.Notifier(service.LogNotifier{})
	if cfg.Notifier.BotToken != "" {
		tn, err := service.NewTelegramNotifier(cfg.Notifier)
		if err != nil {
			zapLogger.Warn("Telegram notifier unavailable, logging notifications", zap.Error(err))
		} else {
			notifier = tn
		}
	}

	clock := clockwork.NewRealClock()
	challengeService := service.NewChallengeService(challenges, clock, notifier)
	progressService := service.NewProgressService(challengeService)
	svc := service.NewService(challengeService, progressService)

	cleanup := workers.NewCleanupWorker(progressService, challenges, clock, cfg.Cleanup)
	if err := cleanup.Start(); err != nil {
		zapLogger.Fatal("Failed to start cleanup worker", zap.Error(err))
	}
	defer cleanup.Stop()

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.DebugMode)
	authorization := middleware.NewAuthorization(cfg.AdminIDs)

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, clock)
	go limiter.CleanupVisitors(ctx)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))
	router.Use(middleware.Monitor(), limiter.Middleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a := router.Group("/api/v1")
	api.NewChallengeRoutes(a, svc, svc, telegramAuth)
	api.NewAdminRoutes(a, cleanup, telegramAuth, authorization)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
}

func documentConnector(cfg *Config) repository.Connector {
	switch cfg.Storage.Document {
	case "postgres":
		return func(ctx context.Context) (repository.KeyValueStore, error) {
			repo, err := repository.New(ctx, cfg.Database)
			if err != nil {
				return nil, err
			}
			return repo, nil
		}
	case "firestore":
		return func(ctx context.Context) (repository.KeyValueStore, error) {
			fs, err := repository.NewFirestoreStore(ctx, cfg.Firestore)
			if err != nil {
				return nil, err
			}
			return fs, nil
		}
	default:
		return nil
	}
}

func kvConnector(cfg *Config) repository.Connector {
	if cfg.Storage.KV == "memory" {
		memory := repository.NewMemoryStore()
		return func(context.Context) (repository.KeyValueStore, error) {
			return memory, nil
		}
	}
	return func(ctx context.Context) (repository.KeyValueStore, error) {
		rs, err := repository.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
}
