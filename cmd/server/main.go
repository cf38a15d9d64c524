package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/farellandr/hadir/config"
	"github.com/farellandr/hadir/internal/gateway"
	"github.com/farellandr/hadir/internal/server"
	"github.com/farellandr/hadir/internal/services"
	"github.com/farellandr/hadir/internal/storage"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "environment file to load")
	port := pflag.String("port", "", "listen port, overrides PORT")
	migrateOnly := pflag.Bool("migrate-only", false, "run migrations and exit")
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
	if *port != "" {
		cfg.Port = *port
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if *migrateOnly {
		logger.Info("migrations applied")
		return
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		log.Fatalf("failed to prepare upload dir: %v", err)
	}

	midtransCfg, _ := config.LoadMidtransConfig()
	var paymentGateway services.Gateway
	if midtransCfg.ServerKey != "" {
		paymentGateway = gateway.NewMidtrans(midtransCfg.ServerKey, midtransCfg.ClientKey, midtransCfg.Production)
	} else {
		logger.Warn("MIDTRANS_SERVER_KEY not set, paid checkouts are disabled")
	}

	svc := services.New(db, store, paymentGateway, services.Options{
		TokenTTL:          cfg.TokenTTL,
		RotateInterval:    cfg.RotateInterval,
		MidtransServerKey: midtransCfg.ServerKey,
		Logger:            logger,
	})

	deps := server.Deps{
		DB:          db,
		Services:    svc,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		UploadDir:   cfg.UploadDir,
	}
	if cfg.RedisAddr != "" {
		deps.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer deps.Redis.Close()

		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		deps.Enqueuer = client
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, ":"+cfg.Port, server.NewRouter(deps)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
