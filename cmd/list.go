package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	Long: `List enrolled users ordered by user ID. Descriptors are never printed.

The --label filter ignores case, diacritics and dashes.

Examples:
  face-login list
  face-login list --label "jiri"
  face-login list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("label", "", "Only show users whose label contains this text")
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

// EnrollmentOutput is one entry of the list command's JSON output.
type EnrollmentOutput struct {
	UserID    int64     `json:"user_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func runList(cmd *cobra.Command, args []string) error {
	filter := mustGetString(cmd, "label")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	env, err := openCLIStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	enrollments, err := env.svc.List(ctx)
	if err != nil {
		return err
	}
	enrollments = facematch.FilterByLabel(enrollments, filter)

	if jsonOutput {
		out := make([]EnrollmentOutput, len(enrollments))
		for i, e := range enrollments {
			out[i] = EnrollmentOutput{UserID: e.UserID, Label: e.Label, CreatedAt: e.CreatedAt}
		}
		return outputJSON(out)
	}

	if len(enrollments) == 0 {
		fmt.Println("No enrolled users.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tLABEL\tENROLLED")
	for _, e := range enrollments {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.UserID, e.Label, e.CreatedAt.Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Printf("\n%d user(s)\n", len(enrollments))
	return nil
}
