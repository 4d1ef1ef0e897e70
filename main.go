package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/app"
	"affiliate-service/internal/config"
	"affiliate-service/internal/database"
	grpcServer "affiliate-service/internal/grpc"
	"affiliate-service/internal/handlers"
	"affiliate-service/internal/logger"
	"affiliate-service/internal/worker"
)

func main() {
	// Load environment variables
	app.LoadEnv(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Setup(cfg.GinMode, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := database.Connect(cfg.Database, cfg.GinMode == gin.DebugMode)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Redis cache and Asynq client
	redisClient := database.ConnectRedis(cfg.RedisURL, cfg.RedisPassword)
	if redisClient != nil {
		defer redisClient.Close()
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURL, Password: cfg.RedisPassword})
	defer asynqClient.Close()

	svc := app.NewServices(cfg, db, app.Cache(redisClient), worker.NewDispatcher(asynqClient))

	r := handlers.NewRouter(cfg.JWTSecret, cfg.CORSOrigins, handlers.Handlers{
		Commissions: handlers.NewCommissionHandler(svc.Commissions),
		Withdrawals: handlers.NewWithdrawalHandler(svc.Withdrawals),
		Referrals:   handlers.NewReferralHandler(svc.Referrals, svc.Leads, cfg.PublicBaseURL),
		Webhooks:    handlers.NewWebhookHandler(svc.Webhooks),
	})

	// Start gRPC health server
	go grpcServer.StartGRPCServer(ctx, cfg.GRPCPort, sqlDB)

	// Start Cron Schedulers
	scheduler, err := svc.Scheduler.StartScheduler()
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
}
