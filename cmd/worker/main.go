// Package main runs the background worker: queued email resends and scheduled maintenance jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/communityhub/backend/config"
	"github.com/communityhub/backend/internal/emaillogs"
	"github.com/communityhub/backend/internal/events"
	"github.com/communityhub/backend/internal/mailer"
	"github.com/communityhub/backend/internal/settings"
	"github.com/communityhub/backend/internal/videos"
	"github.com/communityhub/backend/internal/worker"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/queue"
	"github.com/communityhub/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	mailSvc := mailer.NewService(mailer.SMTPTransport{}, emaillogs.NewRepository(pool), settings.NewRepository(pool), mailer.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass,
		From:     cfg.Email.FromAddress,
		FromName: cfg.Email.FromName,
	}, cfg.Server.SiteName, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(mailSvc, jobQueue, logger)

	scheduler, err := worker.NewScheduler(events.NewRepository(pool), videos.NewRepository(pool), worker.Schedules{
		MarkPastEvents: cfg.Worker.MarkPastEventsSpec,
		PurgeTokens:    cfg.Worker.PurgeTokensSpec,
	}, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	scheduler.Start()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	scheduler.Stop(stopCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
