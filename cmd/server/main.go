package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/seqr-matchmaker/internal/api"
	"github.com/seqr-matchmaker/internal/config"
	"github.com/seqr-matchmaker/internal/database"
	"github.com/seqr-matchmaker/internal/repository"
	"github.com/seqr-matchmaker/internal/service"
)

func main() {
	configFile := pflag.String("config", "", "path to a config.yaml (defaults to the standard search paths)")
	migrate := pflag.Bool("migrate", false, "apply pending migrations before serving")
	pflag.Parse()

	if err := run(*configFile, *migrate); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, migrate bool) error {
	configManager, err := config.NewManager(configFile)
	if err != nil {
		return err
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := configManager.GetConfig()
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("the matchmaker store requires the postgres driver, got %q", cfg.Database.Driver)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return err
		}
		err = runner.Up(ctx)
		if closeErr := runner.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close migration runner")
		}
		if err != nil {
			return err
		}
	}

	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	matchmaker, err := service.NewMatchmakerService(service.MatchmakerServiceConfig{
		Individuals:       repository.NewIndividualRepository(db.Pool, logger),
		Submissions:       repository.NewSubmissionRepository(db.Pool, logger),
		Results:           repository.NewMatchResultRepository(db.Pool, logger),
		ContactNotes:      repository.NewContactNotesRepository(db.Pool, logger),
		Defaults:          cfg.Matchmaker,
		ContactNotesCache: cfg.Cache.ContactNotesSize,
		IsUniqueViolation: repository.IsUniqueViolation,
	}, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting seqr matchmaker server")

	server := api.NewServer(cfg, matchmaker, db, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
