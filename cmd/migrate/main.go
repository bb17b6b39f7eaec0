package main

import (
	"flag"

	"marketplace/internal/config"
	"marketplace/internal/db"
	"marketplace/internal/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the *.up.sql / *.down.sql files")
	down := flag.Bool("down", false, "roll every migration back instead of applying")
	steps := flag.Int("steps", 0, "move this many versions (negative rolls back); 0 means all")
	flag.Parse()

	cfg := config.Load()
	logger.Configure(cfg.AppEnv, cfg.LogLevel)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, *dir, *down, *steps); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}
	logger.Infof("migrations in %s applied", *dir)
}
