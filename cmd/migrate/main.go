package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [up|down|version|to -version N]")
	flag.PrintDefaults()
}

// checkDatabase reports why cfg cannot be migrated by this command.
func checkDatabase(cfg config.DatabaseConfig) error {
	if cfg.Driver != config.DriverPostgres {
		return fmt.Errorf("driver %q: versioned migrations only run against PostgreSQL; MySQL and SQLite schemas are created from the models on startup", cfg.Driver)
	}
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN not set")
	}
	return nil
}

func main() {
	target := flag.Uint("version", 0, "target version for the \"to\" command")
	flag.Usage = usage
	flag.Parse()

	_ = godotenv.Load() // Loads .env file if present
	cfg := config.Load()
	log := logger.NewConsoleLogger(os.Stdout, cfg.Log.Level)

	if err := checkDatabase(cfg.Database); err != nil {
		log.Fatal("MIGRATION", err.Error())
	}

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	sqldb, err := sql.Open("postgres", cfg.Database.PostgresDSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}

	runner := migrations.NewRunner(sqldb, log)
	defer runner.Close()

	switch command {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*target)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = runner.Version()
		if err == nil {
			log.Info("MIGRATION", fmt.Sprintf("version=%d dirty=%t", version, dirty))
		}
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("MIGRATION", err.Error())
		runner.Close()
		os.Exit(1)
	}
	log.Info("MIGRATION", fmt.Sprintf("%s completed", command))
}
