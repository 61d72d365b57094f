package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/constants"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/logging"
	"github.com/kozaktomas/face-login/internal/messages"
	"github.com/kozaktomas/face-login/internal/web"
	"github.com/kozaktomas/face-login/internal/web/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the face login API server",
	Long: `Start the face login HTTP API.

The descriptor store is opened on the first request that needs it,
unless --open-store is given. With the postgres backend an HNSW
neighbour index serves collision reports; it is persisted to
HNSW_INDEX_PATH every HNSW_SAVE_INTERVAL_MINUTES and on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("open-store", false, "Open the descriptor store at startup instead of on first use")
}

// indexKeeper enables the neighbour index once the store is open and persists it periodically.
type indexKeeper struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	enabled bool
}

// maintainer returns the open store and its index maintainer, or nil when the
// store is not open yet or keeps no index.
func (k *indexKeeper) maintainer(ctx context.Context) (database.DescriptorStore, database.IndexMaintainer) {
	if !database.IsInitialized() {
		return nil, nil
	}
	store, err := database.GetDescriptorStore(ctx)
	if err != nil {
		return nil, nil
	}
	maint, ok := store.(database.IndexMaintainer)
	if !ok {
		return nil, nil
	}
	return store, maint
}

// indexNeedsRebuild reports whether the index has drifted from the store, either
// through writes made by another process or through too many stale graph nodes.
func indexNeedsRebuild(stored, indexed, stale int) bool {
	if stored != indexed {
		return true
	}
	return float64(stale) > database.HNSWRebuildStaleRatio*float64(max(indexed, 1))
}

// tick runs on the scheduler and once at startup with --open-store.
func (k *indexKeeper) tick(ctx context.Context) {
	store, maint := k.maintainer(ctx)
	if maint == nil {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.enabled {
		if err := maint.EnableHNSW(ctx, k.path); err != nil {
			k.logger.Warn("HNSW index unavailable, collision reports use database search", zap.Error(err))
			return
		}
		k.enabled = true
		k.logger.Info("HNSW index ready", zap.Int("descriptors", maint.HNSWCount()), zap.String("path", k.path))
		return
	}

	stored, err := store.Count(ctx)
	if err != nil {
		k.logger.Warn("failed to count descriptors", zap.Error(err))
	} else if indexNeedsRebuild(stored, maint.HNSWCount(), maint.HNSWStale()) {
		k.logger.Info("rebuilding HNSW index",
			zap.Int("stored", stored),
			zap.Int("indexed", maint.HNSWCount()),
			zap.Int("stale", maint.HNSWStale()))
		if err := maint.RebuildHNSW(ctx); err != nil {
			k.logger.Warn("HNSW index rebuild failed", zap.Error(err))
		}
		return
	}

	k.save(ctx, maint)
}

// flush saves the index one last time on shutdown.
func (k *indexKeeper) flush(ctx context.Context) {
	_, maint := k.maintainer(ctx)
	if maint == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.save(ctx, maint)
}

// save must be called with k.mu held.
func (k *indexKeeper) save(ctx context.Context, maint database.IndexMaintainer) {
	if !k.enabled || k.path == "" {
		return
	}
	if err := maint.SaveHNSWIndex(ctx); err != nil {
		k.logger.Warn("failed to save HNSW index", zap.Error(err))
		return
	}
	k.logger.Debug("HNSW index saved", zap.Int("descriptors", maint.HNSWCount()))
}

// applyServeFlags lets command-line flags override the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	tokens, err := middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	catalog, err := messages.Load()
	if err != nil {
		return err
	}
	if err := installStore(cfg, logger); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keeper := &indexKeeper{path: cfg.Database.HNSWIndexPath, logger: logger}

	if mustGetBool(cmd, "open-store") {
		if _, err := database.GetDescriptorStore(ctx); err != nil {
			return err
		}
		logger.Info("descriptor store opened", zap.String("backend", cfg.Database.Backend))
		keeper.tick(ctx)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(cfg.Database.HNSWSaveInterval).WaitForSchedule().Do(keeper.tick, ctx); err != nil {
		return fmt.Errorf("scheduling HNSW index maintenance: %w", err)
	}
	scheduler.StartAsync()

	server := web.NewServer(cfg, logger, tokens, catalog)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-sigChan
		logger.Info("shutting down")
		scheduler.Stop()
		keeper.flush(ctx)

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	logger.Info("face login API listening",
		zap.String("host", cfg.Web.Host),
		zap.Int("port", cfg.Web.Port),
		zap.String("backend", cfg.Database.Backend))

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-done

	if database.IsInitialized() {
		if store, err := database.GetDescriptorStore(ctx); err == nil {
			if err := store.Close(); err != nil {
				logger.Warn("closing descriptor store", zap.Error(err))
			}
		}
	}
	return nil
}
