package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/searchdeck/searchdeck/internal/api"
	"github.com/searchdeck/searchdeck/internal/config"
	"github.com/searchdeck/searchdeck/internal/database"
	"github.com/searchdeck/searchdeck/internal/logging"
	"github.com/searchdeck/searchdeck/internal/users"
)

const version = "0.1.0"

func initializeAPI(configPath string) (*api.Api, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Environment)

	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return api.New(cfg, logger, users.NewSQLStore(db))
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	// A .env file is optional; deployed environments set real env vars.
	godotenv.Load()

	log.Printf("Starting searchdeck auth API v%s with config: %s", version, *configPath)

	api, err := initializeAPI(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	log.Fatal(api.Serve())
}
