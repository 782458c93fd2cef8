package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/PublicMapping/districtcore/internal/config"
	"github.com/PublicMapping/districtcore/internal/sqlite"
)

func main() {
	godotenv.Load()

	root := &cobra.Command{
		Use:           "districtctl",
		Short:         "Manage the districting store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoadCmd(),
		newReaggregateCmd(),
		newPurgeCmd(),
		newSimplifyCmd(),
		newNestingCheckCmd(),
		newCompareCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openStore loads config, opens the database and runs migrations. Every
// subcommand starts here.
func openStore() (config.Config, *sqlite.DB, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return config.Config{}, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, db, logger, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
