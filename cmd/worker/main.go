package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/farellandr/hadir/config"
	"github.com/farellandr/hadir/internal/services"
	"github.com/farellandr/hadir/internal/storage"
	"github.com/farellandr/hadir/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "environment file to load")
	concurrency := pflag.Int("concurrency", 5, "number of tasks processed in parallel")
	purgeSchedule := pflag.String("purge-schedule", "*/15 * * * *", "cron spec for expired QR token cleanup")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading %s: %v", *envFile, err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		log.Fatalf("failed to prepare upload dir: %v", err)
	}

	svc := services.New(db, store, nil, services.Options{
		TokenTTL: cfg.TokenTTL,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = worker.Run(ctx, worker.Config{
		Redis:          asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Concurrency:    *concurrency,
		PurgeSchedule:  *purgeSchedule,
		TokenRetention: cfg.TokenRetention,
	}, worker.NewHandlers(svc, logger), logger)
	if err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}
