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

	"github.com/Marvin-MM/Luco-Email-sub000/internal/config"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/repository/postgres"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/ses"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/template"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/worker"
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

	transport, err := ses.NewTransport(cfg.SES)
	if err != nil {
		logger.Error("init ses transport", "error", err)
		os.Exit(1)
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	tenantRepo := postgres.NewTenantRepo(db)
	sendLogRepo := postgres.NewSendLogRepo(db)
	locks := worker.NewDistLocker(redisClient, db)

	queues := queue.NewManager(redisClient, queue.ManagerConfig{
		DefaultAttempts: cfg.Queue.DefaultAttempts,
		DefaultBackoff:  time.Duration(cfg.Queue.BackoffBaseMS) * time.Millisecond,
		Concurrency: map[string]int{
			queue.QueueEmail:    cfg.Queue.EmailConcurrency,
			queue.QueueCampaign: cfg.Queue.CampaignConcurrency,
		},
	})

	dispatcher := worker.NewDispatcher(campaignRepo, queues, locks, worker.DispatcherConfig{
		BatchSize:    cfg.Dispatch.BatchSize,
		BatchDelay:   cfg.Dispatch.BatchDelay(),
		LockTTL:      time.Duration(cfg.Dispatch.DispatchLockTTLSeconds) * time.Second,
		SendAttempts: cfg.Queue.DefaultAttempts,
		SendBackoff:  time.Duration(cfg.Queue.BackoffBaseMS) * time.Millisecond,
	})
	dispatcher.Register(queues)

	sender := worker.NewSender(campaignRepo, tenantRepo, sendLogRepo, template.NewRenderer(), transport)
	sender.Register(queues)

	scheduler := worker.NewScheduler(campaignRepo, queues, locks,
		time.Duration(cfg.Dispatch.SchedulerPollSeconds)*time.Second)

	if err := queues.Start(); err != nil {
		logger.Error("start queue consumers", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("worker running",
		"email_concurrency", cfg.Queue.EmailConcurrency,
		"campaign_concurrency", cfg.Queue.CampaignConcurrency)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutting down", "signal", sig.String())

	scheduler.Stop()
	queues.Stop()
	logger.Info("worker stopped")
}
