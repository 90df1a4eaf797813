package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/messaging-service/internal/api"
	"github.com/fathima-sithara/messaging-service/internal/auth"
	"github.com/fathima-sithara/messaging-service/internal/config"
	"github.com/fathima-sithara/messaging-service/internal/directory"
	"github.com/fathima-sithara/messaging-service/internal/events"
	"github.com/fathima-sithara/messaging-service/internal/logger"
	"github.com/fathima-sithara/messaging-service/internal/repository"
	"github.com/fathima-sithara/messaging-service/internal/service"
	"github.com/fathima-sithara/messaging-service/internal/storage"
	"github.com/fathima-sithara/messaging-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	repo := repository.NewMongoRepository(mc.Database(cfg.Mongo.DB).Collection("messages"))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	mirror := directory.NewPresenceMirror(rdb, cfg.Redis.Prefix)
	dir := directory.NewClient(cfg.Directory.BaseURL, cfg.DirectoryTimeout, cfg.DirectoryCacheTTL, rdb, mirror, cfg.Redis.Prefix, zl)

	store, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicRead, cfg.S3.MaxUploadBytes, cfg.PresignTTL)
	if err != nil {
		zl.Fatalw("s3 init", "err", err)
	}

	var pub *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.TopicMessage != "" {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessage)
		defer func() { _ = pub.Close() }()
	}

	jv, err := auth.NewValidator(cfg.JWT.Secret)
	if err != nil {
		zl.Fatalw("jwt init", "err", err)
	}

	svc := service.NewMessageService(repo, dir, zl)
	hub := ws.NewHub()
	var eventPub ws.Publisher
	if pub != nil {
		eventPub = pub
	}
	delivery := ws.NewDelivery(svc, hub, eventPub, zl)
	wsrv := ws.NewServer(hub, delivery, mirror, ws.Options{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
	}, zl)

	app := api.NewServer(cfg, svc, wsrv, delivery, store, jv, zl)

	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(":" + cfg.App.PortString())
	}()
	zl.Infow("messaging-service started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zl.Fatalw("server error", "err", err)
	case sig := <-quit:
		zl.Infow("signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Warnw("shutdown", "err", err)
	}
	zl.Info("messaging-service stopped")
}
