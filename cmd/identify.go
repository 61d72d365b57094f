package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <descriptor.json>",
	Short: "Identify a face against the enrolled descriptors",
	Long: `Find the enrolled user closest to a face descriptor.

A match is reported only when the distance is strictly below the
match threshold. The exit status is non-zero when no user matches.

Examples:
  face-login identify query.json
  face-login identify --json query.json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// IdentifyResult is the JSON output of the identify command.
type IdentifyResult struct {
	Matched    bool    `json:"matched"`
	UserID     int64   `json:"user_id,omitempty"`
	Label      string  `json:"label,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	descriptor, err := readDescriptorFile(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	env, err := openCLIStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	match, err := env.svc.Identify(ctx, descriptor)
	if err != nil {
		if jsonOutput && (errors.Is(err, facematch.ErrNoMatch) || errors.Is(err, facematch.ErrNoEnrollments)) {
			if outErr := outputJSON(IdentifyResult{Reason: err.Error()}); outErr != nil {
				return outErr
			}
		}
		return err
	}

	if jsonOutput {
		return outputJSON(IdentifyResult{
			Matched:    true,
			UserID:     match.UserID,
			Label:      match.Label,
			Distance:   match.Distance,
			Confidence: match.Confidence,
		})
	}

	fmt.Printf("User:       %d %s\n", match.UserID, match.Label)
	fmt.Printf("Distance:   %.4f\n", match.Distance)
	fmt.Printf("Confidence: %.1f%%\n", match.Confidence*100)
	return nil
}
