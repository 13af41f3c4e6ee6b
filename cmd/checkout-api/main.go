package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "checkout-api",
		Usage: "cart, checkout and payment API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, the gRPC health endpoint and the outbox poller",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply Postgres and catalog migrations and exit",
				Action: migrate,
			},
			{
				Name:  "stale-payments",
				Usage: "print PENDING payments older than --older-than as JSON",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Value: 15 * time.Minute,
						Usage: "age after which a PENDING payment counts as stale",
					},
				},
				Action: stalePayments,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func credentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
}

func serve(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(c.Context)
}

func migrate(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	creds := credentials(cfg)
	repo, err := repository.NewRepository(creds, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}

	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	log.Info("migrations completed")
	return nil
}

func stalePayments(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	repo, err := repository.NewRepository(credentials(cfg), log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer repo.Close()

	stale, err := repo.ListStalePendingPayments(c.Context, time.Now().Add(-c.Duration("older-than")))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(stale)
}
