package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <user-id>",
	Short: "Delete the face descriptor of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	if err := env.svc.Remove(ctx, userID); err != nil {
		return fmt.Errorf("removing user %d: %w", userID, err)
	}

	fmt.Printf("Removed descriptor of user %d\n", userID)
	return nil
}
