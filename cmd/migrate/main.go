package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/config"
	"github.com/Rrens/nl2sql/internal/logging"
	"github.com/Rrens/nl2sql/internal/repository/postgres"
)

const usage = `usage: migrate [-source file://migrations] <up|down [steps]|version>`

func main() {
	_ = godotenv.Load()

	source := flag.String("source", "file://migrations", "migration source URL")
	steps := flag.Int("steps", 1, "steps to roll back with down")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if _, err := logging.Setup(cfg.Logging, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	dsn := cfg.Database.DSN()
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("Connecting to database")

	switch flag.Arg(0) {
	case "up":
		err = postgres.RunMigrations(dsn, *source)
	case "down":
		err = postgres.RollbackMigrations(dsn, *source, *steps)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = postgres.MigrationVersion(dsn, *source)
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
