package main

import (
	"database/sql"
	"flag"
	"fmt"
	"ms-checkin/internal/config"
	"ms-checkin/internal/database/migrations"
	"ms-checkin/internal/logger"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	dir := flag.String("dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	to := flag.Uint("to", 0, "migrate to this version instead of the latest")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg := config.Load()
	logger, err := logger.New(logger.Options{Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if cfg.Database.DSN == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}
	opts := migrations.DefaultOptions()
	opts.MigrationsDir = cfg.Database.MigrationsDir
	if *dir != "" {
		opts.MigrationsDir = *dir
	}

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}

	runner := migrations.NewRunner(sqldb, opts, logger)
	defer runner.Close()

	switch cmd {
	case "up":
		if *to > 0 {
			err = runner.MigrateTo(*to)
		} else {
			err = runner.MigrateUp()
		}
	case "down":
		if *to > 0 {
			err = runner.MigrateTo(*to)
		} else {
			err = runner.MigrateDown()
		}
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}
	logger.Info("MIGRATE", fmt.Sprintf("✅ Schema at version %d (dirty=%t)", version, dirty))
}
