package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/fairdial/leadline-backend/internal/infrastructure/config"
	"github.com/fairdial/leadline-backend/internal/infrastructure/telemetry"
)

func main() {
	var (
		action = flag.String("action", "up", "migration action: up, down, version, force")
		dir    = flag.String("dir", "migrations", "migrations directory")
		steps  = flag.Int("steps", 0, "number of migrations to apply (0 = all for up, 1 for down)")
		target = flag.Int("target", -1, "version for the force action")
	)
	flag.Parse()

	slog.SetDefault(telemetry.SetupLogger("info"))

	if err := run(*action, *dir, *steps, *target); err != nil {
		slog.Error("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
}

func run(action, dir string, steps, target int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}

	switch action {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps <= 0 {
			steps = 1
		}
		err = m.Steps(-steps)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			slog.Info("no migrations applied")
			return nil
		}
		if verr != nil {
			return verr
		}
		slog.Info("schema version", "version", version, "dirty", dirty)
		return nil
	case "force":
		if target < 0 {
			return fmt.Errorf("force requires -target")
		}
		err = m.Force(target)
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("schema already up to date")
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("migration complete", "action", action)
	return nil
}
