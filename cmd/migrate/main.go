// Package main applies the PostgreSQL schema and installs the payment method
// records.
//
// Usage:
//
//	migrate [up|down|version] [-steps N]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"stoq/internal/app"
	"stoq/internal/config"
	"stoq/internal/core/clock"
	"stoq/internal/infrastructure/storage/postgres"
	"stoq/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 0, "number of migrations to roll back with down (0 = all)")
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	ctx := logger.WithLogger(context.Background(), log.WithComponent("migrate"))

	switch command {
	case "up":
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalw("migration failed", "error", err)
		}
		if err := bootstrap(ctx, cfg); err != nil {
			log.Fatalw("bootstrap failed", "error", err)
		}
	case "down":
		if err := down(cfg.DatabaseURL, *steps); err != nil {
			log.Fatalw("rollback failed", "error", err)
		}
	case "version":
		m, err := postgres.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("open migrator", "error", err)
		}
		defer m.Close()
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalw("read version", "error", err)
		}
		log.Infow("schema version", "version", v, "dirty", dirty)
		return
	default:
		log.Fatalw("unknown command", "command", command)
	}
	log.Infow("done", "command", command)
}

func down(dsn string, steps int) error {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// bootstrap stores the default record of every payment method.
func bootstrap(ctx context.Context, cfg *config.Config) error {
	pool, err := postgres.NewPool(ctx, cfg.Pool())
	if err != nil {
		return err
	}
	defer pool.Close()

	clk, err := clock.NewFromName(cfg.Timezone)
	if err != nil {
		return err
	}
	svc, err := app.NewPostgres(postgres.NewTxManager(pool), app.Options{Params: cfg.Params, Clock: clk})
	if err != nil {
		return err
	}
	return svc.Bootstrap(ctx)
}
