package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/mariadb"
	"github.com/kozaktomas/face-login/internal/database/postgres"
	"github.com/kozaktomas/face-login/internal/database/sqlite"
	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/kozaktomas/face-login/internal/logging"
	"go.uber.org/zap"
)

// storeOpener returns the constructor of the configured descriptor store backend.
func storeOpener(cfg *config.Config, logger *zap.Logger) (database.Opener, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	switch cfg.Database.Backend {
	case config.BackendPostgres:
		return func(ctx context.Context) (database.DescriptorStore, error) {
			store, err := postgres.Open(ctx, &cfg.Database, logger)
			if err != nil {
				return nil, err
			}
			return store, nil
		}, nil
	case config.BackendMySQL:
		return func(ctx context.Context) (database.DescriptorStore, error) {
			store, err := mariadb.Open(ctx, &cfg.Database)
			if err != nil {
				return nil, err
			}
			return store, nil
		}, nil
	case config.BackendSQLite:
		return func(ctx context.Context) (database.DescriptorStore, error) {
			store, err := sqlite.Open(ctx, cfg.Database.URL)
			if err != nil {
				return nil, err
			}
			return store, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown DATABASE_BACKEND %q (use %s, %s or %s)",
			cfg.Database.Backend, config.BackendPostgres, config.BackendMySQL, config.BackendSQLite)
	}
}

// installStore registers the configured backend as the process-wide descriptor store.
func installStore(cfg *config.Config, logger *zap.Logger) error {
	open, err := storeOpener(cfg, logger)
	if err != nil {
		return err
	}
	database.UseDescriptorStore(open)
	return nil
}

// cliEnv holds what every store-backed CLI command needs.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	store  database.DescriptorStore
	svc    *facematch.Service
}

// openCLIStore loads configuration and opens the descriptor store for a CLI command.
// CLI commands log warnings only; user output goes to stdout.
func openCLIStore(ctx context.Context) (*cliEnv, error) {
	cfg := config.Load()
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	if err := installStore(cfg, logger); err != nil {
		return nil, err
	}

	store, err := database.GetDescriptorStore(ctx)
	if err != nil {
		return nil, err
	}

	return &cliEnv{
		cfg:    cfg,
		logger: logger,
		store:  store,
		svc:    facematch.NewService(store),
	}, nil
}

// Close releases the store and flushes the logger.
func (e *cliEnv) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing descriptor store", zap.Error(err))
	}
	_ = e.logger.Sync()
}
