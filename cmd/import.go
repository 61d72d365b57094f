package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-login/internal/constants"
	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Enroll many users from a JSON Lines file",
	Long: `Enroll users in bulk. Each line of the file is a JSON object:

  {"user_id": 42, "label": "Alice", "descriptor": [0.01, -0.12, ...]}

Each line replaces the descriptor of its user, exactly like enroll.
Invalid lines are reported and skipped unless --strict is set.

Examples:
  face-login import enrollments.jsonl
  face-login import --strict --json enrollments.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("strict", false, "Stop at the first invalid line")
	importCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// importRecord is one line of an import file.
type importRecord struct {
	UserID     int64     `json:"user_id"`
	Label      string    `json:"label"`
	Descriptor []float64 `json:"descriptor"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Lines    int      `json:"lines"`
	Enrolled int      `json:"enrolled"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// parseImportLine decodes and validates one line of an import file.
func parseImportLine(line []byte) (importRecord, facematch.Descriptor, error) {
	var rec importRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if rec.UserID <= 0 {
		return rec, nil, errors.New("user_id must be a positive integer")
	}
	d, err := facematch.ParseDescriptor(rec.Descriptor)
	if err != nil {
		return rec, nil, err
	}
	return rec, d, nil
}

// countLines counts non-empty lines so the progress bar knows its total.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.ImportLineBuffer)
	n := 0
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading import file: %w", err)
	}
	return n, nil
}

func newImportProgressBar(count int, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("users"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runImport(cmd *cobra.Command, args []string) error {
	strict := mustGetBool(cmd, "strict")
	jsonOutput := mustGetBool(cmd, "json")
	path := args[0]

	total, err := countLines(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	env, err := openCLIStore(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	bar := newImportProgressBar(total, jsonOutput)
	result := ImportResult{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.ImportLineBuffer)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		result.Lines++

		rec, d, err := parseImportLine(line)
		if err == nil {
			err = env.svc.Register(ctx, rec.UserID, d, rec.Label)
		}
		if err != nil {
			// Store failures abort the run; bad lines are skipped.
			if errors.Is(err, facematch.ErrStoreUnavailable) || strict {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
		} else {
			result.Enrolled++
		}

		if bar != nil {
			bar.Add(1)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("\nEnrolled %d of %d users", result.Enrolled, result.Lines)
	if result.Skipped > 0 {
		fmt.Printf(", skipped %d:\n", result.Skipped)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	} else {
		fmt.Println()
	}
	return nil
}
