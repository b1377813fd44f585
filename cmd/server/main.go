package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/api"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/billing"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/config"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/repository/postgres"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)
	if err := db.Ping(); err != nil {
		logger.Error("ping database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("ping redis", "error", err)
		os.Exit(1)
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	tenantRepo := postgres.NewTenantRepo(db)
	sendLogRepo := postgres.NewSendLogRepo(db)
	gate := billing.NewGate(tenantRepo, sendLogRepo)

	// The server only produces jobs; consumers live in cmd/worker.
	queues := queue.NewManager(redisClient, queue.ManagerConfig{
		DefaultAttempts: cfg.Queue.DefaultAttempts,
		DefaultBackoff:  time.Duration(cfg.Queue.BackoffBaseMS) * time.Millisecond,
	})

	svc := campaign.NewService(campaignRepo, gate, queues)
	server := api.NewServer(cfg.Server, api.NewHandlers(svc, queues))

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
}
