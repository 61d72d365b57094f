package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-login/internal/constants"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/spf13/cobra"
)

var collisionsCmd = &cobra.Command{
	Use:   "collisions <user-id>",
	Short: "Show other users a face login could be confused with",
	Long: `List other enrolled users whose descriptors are strictly closer than
the match threshold to the descriptor of the given user, closest first.

Such pairs mean a login by either user may be attributed to the other.
The report does not change how logins are decided.

Examples:
  face-login collisions 42
  face-login collisions 42 --limit 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCollisions,
}

func init() {
	rootCmd.AddCommand(collisionsCmd)

	collisionsCmd.Flags().Int("limit", constants.DefaultCollisionLimit, "Maximum number of users to report")
	collisionsCmd.Flags().Bool("json", false, "Output as JSON")
}

// CollisionOutput is one entry of the collisions command's JSON output.
type CollisionOutput struct {
	UserID   int64   `json:"user_id"`
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

func runCollisions(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	env, err := openCLIStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	// The postgres backend answers from its HNSW index when one is persisted.
	if maint, ok := env.store.(database.IndexMaintainer); ok && env.cfg.Database.HNSWIndexPath != "" {
		if err := maint.EnableHNSW(ctx, env.cfg.Database.HNSWIndexPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: HNSW index unavailable, using database search: %v\n", err)
		}
	}

	collisions, err := env.svc.Collisions(ctx, userID, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		out := make([]CollisionOutput, len(collisions))
		for i, c := range collisions {
			out[i] = CollisionOutput{UserID: c.UserID, Label: c.Label, Distance: c.Distance}
		}
		return outputJSON(out)
	}

	if len(collisions) == 0 {
		fmt.Printf("No other user is within %.2f of user %d.\n", constants.MatchThreshold, userID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tLABEL\tDISTANCE")
	for _, c := range collisions {
		fmt.Fprintf(w, "%d\t%s\t%.4f\n", c.UserID, c.Label, c.Distance)
	}
	return w.Flush()
}
