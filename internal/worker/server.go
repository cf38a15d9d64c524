package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Config struct {
	Redis          asynq.RedisClientOpt
	Concurrency    int
	PurgeSchedule  string
	TokenRetention time.Duration
}

// Run processes tasks and registers the periodic token purge until ctx is
// cancelled.
func Run(ctx context.Context, cfg Config, h *Handlers, logger *slog.Logger) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = "*/15 * * * *"
	}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			"default": 3,
			"low":     1,
		},
	})

	scheduler := asynq.NewScheduler(cfg.Redis, nil)
	purge, err := NewTokenPurgeTask(cfg.TokenRetention)
	if err != nil {
		return err
	}
	if _, err := scheduler.Register(cfg.PurgeSchedule, purge, asynq.Queue("low")); err != nil {
		return fmt.Errorf("register purge schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	if err := srv.Start(NewServeMux(h)); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info("worker started", "concurrency", cfg.Concurrency, "purge_schedule", cfg.PurgeSchedule)

	<-ctx.Done()
	logger.Info("worker shutting down")
	srv.Shutdown()
	return nil
}
