// ABOUTME: CLI command for exporting workout history.
// ABOUTME: Supports CSV, JSON, YAML and XLSX over all time or trailing weeks.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/storage"
)

var (
	exportOutput string
	exportWeeks  int
)

var exportWriters = map[string]func(io.Writer, []storage.ExportedSession) error{
	"csv":  storage.WriteCSV,
	"json": storage.WriteJSON,
	"yaml": storage.WriteYAML,
	"xlsx": storage.WriteXLSX,
}

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export workout history",
	Long: `Export workout history in various formats.

FORMATS:

  csv    One row per set (date, template, week, exercise, set, weight, reps, rpe)
  json   Sessions with nested sets
  yaml   Same shape as json, human-readable
  xlsx   Spreadsheet with a Sets sheet and a Sessions sheet (needs --output)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --weeks, -w    Only the trailing N weeks (common: 4 or 12; 0 means all)

EXAMPLES:

  gymtrack export csv                       # Everything as CSV
  gymtrack export json --weeks 4 -o m.json  # Last month to a file
  gymtrack export xlsx --weeks 12 -o q.xlsx # Last quarter as a spreadsheet`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"csv", "json", "yaml", "xlsx"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		write, ok := exportWriters[format]
		if !ok {
			return fmt.Errorf("unknown format: %s (use csv, json, yaml, or xlsx)", format)
		}
		if format == "xlsx" && exportOutput == "" {
			return fmt.Errorf("xlsx export needs --output")
		}
		if exportWeeks < 0 {
			return fmt.Errorf("--weeks must not be negative")
		}

		sessions, err := app.store.History(cmd.Context(), storage.ExportCutoff(time.Now(), exportWeeks))
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		var buf bytes.Buffer
		if err := write(&buf, sessions); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, buf.Bytes(), 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported %d workouts to %s", len(sessions), exportOutput)
		} else {
			_, err = os.Stdout.Write(buf.Bytes())
			return err
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().IntVarP(&exportWeeks, "weeks", "w", 0, "only the trailing N weeks (0 = all)")

	rootCmd.AddCommand(exportCmd)
}
