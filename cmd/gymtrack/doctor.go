// ABOUTME: CLI command for checking the local database.
// ABOUTME: Reports dangling references and rows that have not reached the server.
package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local database",
	Long: `Check the local database for problems.

Lists rows pointing at rows that no longer exist, substitute prescriptions
without a valid parent, and rows still waiting to sync. Templates and
programs are only pushed when they are saved, so a pending one means that
push failed; save it again while online to retry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Println("Database:", app.store.Path())

		issues, err := app.store.CheckConsistency(ctx)
		if err != nil {
			return fmt.Errorf("consistency check failed: %w", err)
		}
		if len(issues) == 0 {
			color.Green("✓ No broken references")
		} else {
			color.Red("✗ %d problems", len(issues))
			for _, issue := range issues {
				fmt.Printf("  %s\n", issue)
			}
		}

		pending, err := app.store.PendingCounts(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			color.Green("✓ Everything synced")
			return nil
		}
		color.Yellow("⚠ Rows waiting to sync")
		for _, table := range slices.Sorted(maps.Keys(pending)) {
			hint := ""
			switch table {
			case storage.Templates.Name, storage.TemplateExercises.Name, storage.Programs.Name, storage.ProgramRoutines.Name:
				hint = " (not retried automatically)"
			}
			fmt.Printf("  %-20s %d%s\n", table, pending[table], hint)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
