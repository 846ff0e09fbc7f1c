package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/agrimarket/internal/config"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, direction)
	if err != nil {
		logger.Fatal("Run migrations", zap.String("direction", direction), zap.Error(err))
	}

	for _, name := range applied {
		logger.Info("Ran migration", zap.String("file", name))
	}
	logger.Info("Migrations complete", zap.Int("count", len(applied)), zap.String("direction", direction))
}
