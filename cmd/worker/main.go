package main

import (
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/app"
	"affiliate-service/internal/config"
	"affiliate-service/internal/consumers"
	"affiliate-service/internal/database"
	"affiliate-service/internal/logger"
	"affiliate-service/internal/worker"
)

func main() {
	// Load env
	app.LoadEnv("../../.env", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Setup(cfg.GinMode, cfg.LogLevel)

	// Connect DB
	db, err := database.Connect(cfg.Database, false)
	if err != nil {
		log.Fatal(err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisURL, Password: cfg.RedisPassword}

	svc := app.NewServices(cfg, db, nil, nil)

	// Processor
	processor := consumers.NewAffiliateProcessor(svc.Withdrawals, svc.Commissions)

	log.Println("Starting Asynq Worker...")
	worker.StartWorker(redisOpt, processor)
}
