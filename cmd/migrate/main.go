// Command migrate upgrades a Setora database in place and exits. The server
// runs the same migration on start; this is for upgrading ahead of a deploy.
package main

import (
	"flag"
	"fmt"
	"os"

	"setora/internal/config"
	"setora/internal/database"
	"setora/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "path to the SQLite database")
	seed := flag.Bool("seed", true, "seed the built-in exercise catalog when it is empty")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	logger.Initialize(logger.ParseLevel(cfg.LogLevel), cfg.IsDevelopment())
	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}

	db, err := database.Initialize(*dbPath)
	if err != nil {
		logger.Error("Failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("Migrating database", "path", *dbPath)

	if err := database.Migrate(db); err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	if *seed {
		seeded, err := database.SeedExercises(db)
		if err != nil {
			logger.Error("Failed to seed exercises", "error", err)
			os.Exit(1)
		}
		logger.Info("Seeded exercise catalog", "count", seeded)
	}

	removed, err := database.CleanupExpiredSessions(db)
	if err != nil {
		logger.Error("Failed to clean up expired sessions", "error", err)
		os.Exit(1)
	}

	logger.Info("Migration complete", "expired_sessions_removed", removed)
}
