package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/classifieds/backend/internal/cache"
	"github.com/classifieds/backend/internal/config"
	"github.com/classifieds/backend/internal/database"
	"github.com/classifieds/backend/internal/repository"
	"github.com/classifieds/backend/internal/seed"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Parse command
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var run func(*seed.Seeder, context.Context) error
	switch command {
	case "dev":
		run = (*seed.Seeder).SeedDev
	case "test":
		run = (*seed.Seeder).SeedTest
	case "clean":
		run = (*seed.Seeder).Clean
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic listings")
		fmt.Println("  test  - Seed test database with a small fixed set")
		fmt.Println("  clean - Remove all listings (use with caution)")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := database.Initialize(cfg.DatabaseURL, database.Options{}); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seeder := seed.NewSeeder(repository.NewListingRepository(database.DB))

	// A memory cache lives inside the server process, only Redis is shared
	if cfg.Feed.CacheBackend == config.CacheBackendRedis {
		sel := cache.Select(cfg)
		if inv, ok := sel.Store.(cache.Invalidator); ok {
			seeder.SetCache(inv)
		}
		defer sel.Redis.Close()
	}
	if err := run(seeder, context.Background()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seed %q completed", command)
}
