package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/seqr-matchmaker/internal/admin"
	"github.com/seqr-matchmaker/internal/config"
	"github.com/seqr-matchmaker/internal/database"
	"github.com/seqr-matchmaker/internal/tags"
)

func main() {
	flags := pflag.NewFlagSet("manage", pflag.ExitOnError)
	// everything after the command name belongs to the command
	flags.SetInterspersed(false)
	configFile := flags.String("config", "", "path to a config.yaml (defaults to the standard search paths)")
	_ = flags.Parse(os.Args[1:])

	os.Exit(run(*configFile, flags.Args()))
}

func run(configFile string, args []string) int {
	configManager, err := config.NewManager(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "manage: %v\n", err)
		return 1
	}
	cfg := configManager.GetConfig()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "manage: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := admin.NewCLI(os.Stdout, logger, admin.Dependencies{
		OpenTagStore: func() (tags.Store, error) {
			if cfg.Database.Driver == "sqlite" {
				return tags.NewSQLiteStore(cfg.Database.SQLitePath)
			}
			return tags.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
		},
		OpenMigrator: func() (admin.Migrator, error) {
			if cfg.Database.Driver != "postgres" {
				return nil, fmt.Errorf("migrations require the postgres driver, got %q", cfg.Database.Driver)
			}
			return database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
		},
	})

	if err := cli.Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if admin.IsUsageError(err) {
			return 2
		}
		return 1
	}
	return 0
}
