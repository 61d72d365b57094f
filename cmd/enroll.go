package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-id> <descriptor.json>",
	Short: "Store the face descriptor of a user",
	Long: `Store the face descriptor of a user, replacing any previous one.

The descriptor file holds a JSON array of 128 numbers, or an object
with a "descriptor" array. Use "-" to read it from stdin.

Examples:
  face-login enroll 42 alice.json --label "Alice"
  capture-tool --json | face-login enroll 42 -`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("label", "", "Display label stored with the descriptor")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	label := mustGetString(cmd, "label")

	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	descriptor, err := readDescriptorFile(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	env, err := openCLIStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.svc.Register(ctx, userID, descriptor, label); err != nil {
		return fmt.Errorf("enrolling user %d: %w", userID, err)
	}

	fmt.Printf("Enrolled user %d\n", userID)
	return nil
}
