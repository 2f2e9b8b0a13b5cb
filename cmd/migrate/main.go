package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"coinharvest/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
)

func main() {
	loadEnvFunc()

	if len(os.Args) < 2 {
		log.Fatalf("usage: go run ./cmd/migrate [up|down|version] [steps]")
	}

	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case cmdUp:
		applied, err := db.MigrateUp(ctx, pool)
		if err != nil {
			log.Fatalf("apply migrations up: %v", err)
		}
		log.Printf("migrations up complete (%d applied)", applied)
	case cmdDown:
		steps := 1
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				log.Fatalf("invalid down steps: %q", os.Args[2])
			}
			steps = n
		}
		rolledBack, err := db.MigrateDown(ctx, pool, steps)
		if err != nil {
			log.Fatalf("apply migrations down: %v", err)
		}
		log.Printf("migrations down complete (%d rolled back)", rolledBack)
	case cmdVersion:
		version, name, err := db.CurrentVersion(ctx, pool)
		if err != nil {
			log.Fatalf("read current version: %v", err)
		}
		if version == 0 {
			log.Println("no migrations applied")
			return
		}
		log.Printf("current version: %d (%s)", version, name)
	default:
		log.Fatalf("unknown command %q. usage: go run ./cmd/migrate [up|down|version] [steps]", os.Args[1])
	}
}
