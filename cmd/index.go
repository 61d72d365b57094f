package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the neighbour index used by collision reports",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild and persist the HNSW neighbour index",
	Long: `Rebuild the in-memory HNSW neighbour index from the database and save it
to HNSW_INDEX_PATH, replacing any existing index files.

Only the postgres backend keeps a neighbour index. Face login itself never
uses the index: every login compares against all enrolled descriptors.

A running server keeps its own copy of the index. Re-enrolled and removed
users leave stale graph nodes behind, and enroll or remove commands run from
another process never reach that copy. The server rebuilds its index when the
descriptor count drifts or stale nodes pile up; re-enrollments made elsewhere
that keep the count unchanged are picked up when the server restarts.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := openCLIStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	maint, ok := env.store.(database.IndexMaintainer)
	if !ok {
		return fmt.Errorf("the %s backend has no neighbour index", env.cfg.Database.Backend)
	}
	path := env.cfg.Database.HNSWIndexPath
	if path == "" {
		return errors.New("HNSW_INDEX_PATH environment variable is required")
	}

	start := time.Now()
	database.RemoveHNSWFiles(path)
	if err := maint.EnableHNSW(ctx, path); err != nil {
		return fmt.Errorf("rebuilding HNSW index: %w", err)
	}
	if err := maint.SaveHNSWIndex(ctx); err != nil {
		return err
	}

	fmt.Printf("HNSW index rebuilt with %d descriptors in %s (saved to %s)\n",
		maint.HNSWCount(), time.Since(start).Round(time.Millisecond), path)
	return nil
}
