package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	appcli "freelance/internal/cli"
	"freelance/internal/config"
	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
	"freelance/internal/services"
	"freelance/internal/storage"
	"freelance/internal/worker"
)

func main() {
	appcli.LoadEnvFile()
	logger := appcli.SetupLogger(log.ComponentCLI, os.Getenv("LOG_LEVEL"))

	app := &cli.Command{
		Name:  "freelancectl",
		Usage: "Operate a freelance tracker deployment",
		Commands: []*cli.Command{
			migrateCommand(logger),
			statsCommand(logger),
			planCommand(logger),
			sweepCommand(logger),
			initConfigCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", log.FieldError, err)
		os.Exit(1)
	}
}

func migrateCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending SQLite migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path (defaults to SQLITE_DB_PATH)",
				Sources: cli.EnvVars("SQLITE_DB_PATH"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("db")
			if path == "" {
				path = config.Defaults().SQLiteDBPath
			}
			if err := storage.RunMigrations(path); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(path)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", "path", path, "version", version, "dirty", dirty)
			return nil
		},
	}
}

func userFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User ID",
		Required: true,
	}
}

func statsCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print dashboard statistics for a user",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "as-of",
				Usage: "Reference time in RFC3339 (defaults to now)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			asOf := time.Now()
			if s := cmd.String("as-of"); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				asOf = t
			}
			store, cleanup, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			dashboard := services.NewDashboardService(ports.SnapshotFromStore(store), nil, logger)
			stats, err := dashboard.Stats(ctx, cmd.Int64("user"), asOf)
			if err != nil {
				return err
			}
			return writeJSON(stats)
		},
	}
}

func planCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show or change a user's subscription plan",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "set",
				Usage: "New plan (Free or Pro)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, cleanup, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			userID := cmd.Int64("user")
			user, err := store.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			if s := cmd.String("set"); s != "" {
				plan, err := core.ParsePlanType(s)
				if err != nil {
					return err
				}
				if user, err = store.UpdateUserPlan(ctx, userID, plan); err != nil {
					return err
				}
				logger.Info("Plan changed", log.FieldUserID, userID, "plan", plan)
			}
			return writeJSON(user)
		},
	}
}

func sweepCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sweep-overdue",
		Usage: "Run one overdue reminder pass",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, cleanup, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			sweeper := worker.NewReminderSweeper(store, worker.NewLogNotifier(logger), time.Hour, logger)
			result, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			return writeJSON(result)
		},
	}
}

func initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "Write an example config.toml",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Value:   "config.toml",
				Usage:   "Destination file",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("path")
			if err := config.CreateConfigFile(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

// openStore loads configuration and opens the configured store without the
// AMQP client.
func openStore(ctx context.Context, logger *log.Logger) (ports.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.AMQPURL = ""
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	b := appcli.OpenBackend(ctx, logger, cfg)
	return b.Store, func() {
		if err := b.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	}, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
