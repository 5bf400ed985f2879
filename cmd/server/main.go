// Package main runs the invitation-code referral service HTTP server with
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/invitebot/backend/config"
	"github.com/invitebot/backend/internal/adminsecret"
	"github.com/invitebot/backend/internal/bot"
	"github.com/invitebot/backend/internal/middleware"
	"github.com/invitebot/backend/internal/participants"
	"github.com/invitebot/backend/internal/redemption"
	"github.com/invitebot/backend/internal/referral"
	"github.com/invitebot/backend/internal/storage"
	"github.com/invitebot/backend/pkg/database"
	"github.com/invitebot/backend/pkg/queue"
	"github.com/invitebot/backend/pkg/redis"
	"github.com/invitebot/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Redemption engine over the transactional store
	store := storage.NewPostgres(pool)
	secrets := adminsecret.NewVerifier(pool, logger)
	engine := redemption.NewEngine(store, secrets, logger)

	// Referral queries with cached invitee counts
	registry := participants.NewRepository(pool)
	scoreTTL := time.Duration(cfg.Bot.ScoreCacheTTLSec) * time.Second
	queries := referral.NewService(registry, rdb.Client, scoreTTL, logger)

	// Registration audit trail (consumed by cmd/worker)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	dispatcher := bot.NewDispatcher(engine, queries, jobQueue, logger)
	botHandler := bot.NewHandler(dispatcher, cfg.Bot.WebhookToken)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Chat transport webhook: the adapter delivers (participant_id, text)
	// and relays the reply.
	router.POST("/bot/update", botHandler.Update)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
