package main

import (
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/app"
	"affiliate-service/internal/config"
	"affiliate-service/internal/database"
	"affiliate-service/internal/logger"
)

func main() {
	// Load environment variables
	app.LoadEnv(".env", "../.env", "../../.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Setup(cfg.GinMode, cfg.LogLevel)

	// Initialize Database
	db, err := database.Connect(cfg.Database, false)
	if err != nil {
		log.Fatal(err)
	}

	// Run Migrations
	log.Println("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	log.Println("Migrations completed successfully!")
}
