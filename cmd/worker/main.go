package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BradenHooton/accounts/internal/config"
	"github.com/BradenHooton/accounts/internal/notify"
	pkglogger "github.com/BradenHooton/accounts/pkg/logger"
	"github.com/hibiken/asynq"
)

// The worker drains the mail queue filled by the API when EMAIL_SINK=queue
// and delivers each message through SES.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var delivery notify.Sink
	if cfg.IsProduction() {
		delivery, err = notify.NewSESSink(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize SES", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		delivery = notify.NewLogSink(logger)
	}

	worker, err := notify.NewWorker(notify.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Concurrency: cfg.Worker.Concurrency,
		Delivery:    delivery,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("mail worker starting", slog.Int("concurrency", cfg.Worker.Concurrency))
	if err := worker.Run(ctx); err != nil {
		logger.Error("mail worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("mail worker stopped")
}
