package cmd

import (
	"fmt"
	"runtime"

	"github.com/kozaktomas/face-login/internal/constants"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("face-login %s (%s)\n", Version, runtime.Version())
		fmt.Printf("  Commit:     %s\n", CommitSHA)
		fmt.Printf("  Built:      %s\n", BuildDate)
		fmt.Printf("  Descriptor: %d dimensions, match threshold %.2f\n", constants.DescriptorDim, constants.MatchThreshold)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
