package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/database"
	"github.com/danielolaru91/AuthSystem/internal/logging"
	"github.com/danielolaru91/AuthSystem/internal/mail"
	"github.com/danielolaru91/AuthSystem/internal/queue"
	"github.com/danielolaru91/AuthSystem/internal/server"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cmd := &cli.Command{
		Name:   "authsystem",
		Usage:  "User and company administration API",
		Flags:  config.Flags(),
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "Start the HTTP API", Action: serve},
			{
				Name:  "migrate",
				Usage: "Inspect or roll back the schema",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply pending migrations", Action: migrateUp},
					{Name: "down", Usage: "Roll back the newest migration", Action: migrateDown},
					{Name: "version", Usage: "Print the schema version", Action: migrateVersion},
				},
			},
			{Name: "mail-worker", Usage: "Deliver queued mail over SMTP", Action: mailWorker},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup builds the config and logger every command starts from.  Only
// serve needs the full Validate; the worker and migrations run without a
// signing secret.
func setup(cmd *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg := config.NewFromCLI(cmd)
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, db, rdb, mailer, logger)
	if err != nil {
		return err
	}
	if err := srv.Seed(ctx); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newMailer(cfg *config.Config, logger *zap.Logger) (mail.Mailer, error) {
	switch cfg.Mail.Transport {
	case "smtp":
		return mail.NewSMTPMailer(cfg.Mail)
	case "queue":
		return queue.NewPublisher(cfg.AMQP, logger.Named("queue"))
	default:
		return mail.LogMailer{Log: logger.Named("mail")}, nil
	}
}

func mailWorker(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	smtp, err := mail.NewSMTPMailer(cfg.Mail)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = queue.NewConsumer(cfg.AMQP, smtp, logger.Named("mail-worker")).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// database.Open applies pending migrations before returning.
func migrateUp(ctx context.Context, cmd *cli.Command) error {
	return withDB(cmd, func(cfg *config.Config, logger *zap.Logger, db *sql.DB) error {
		v, err := database.Version(ctx, db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		logger.Info("schema up to date", zap.Int64("version", v))
		return nil
	})
}

func migrateDown(ctx context.Context, cmd *cli.Command) error {
	return withDB(cmd, func(cfg *config.Config, logger *zap.Logger, db *sql.DB) error {
		if err := database.MigrateDown(ctx, db, cfg.Database.Driver); err != nil {
			return err
		}
		v, err := database.Version(ctx, db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		logger.Info("rolled back", zap.Int64("version", v))
		return nil
	})
}

func migrateVersion(ctx context.Context, cmd *cli.Command) error {
	return withDB(cmd, func(cfg *config.Config, _ *zap.Logger, db *sql.DB) error {
		v, err := database.Version(ctx, db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	})
}

func withDB(cmd *cli.Command, fn func(*config.Config, *zap.Logger, *sql.DB) error) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	return fn(cfg, logger, db.DB)
}
