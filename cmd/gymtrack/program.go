// ABOUTME: CLI commands for training programs.
// ABOUTME: Supports list, show, create, activate, deactivate, today and delete.
package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/service"
)

var (
	programDeloadEvery int
	programReplace     string
)

var programCmd = &cobra.Command{
	Use:     "program",
	Aliases: []string{"p"},
	Short:   "Manage training programs",
	Long: `Manage training programs.

A program rotates through a list of templates. Finishing a workout started
from the active program moves to the next routine; completing the last
routine counts a week. Every Nth week is a deload week, which switches the
prescriptions to their deload values.

WORKFLOW:

  1. Create:    gymtrack program create "PPL" push pull legs --deload-every 4
  2. Activate:  gymtrack program activate PPL
  3. Train:     gymtrack workout start --program

COMMANDS:

  list        List programs
  show        Show a program's rotation
  create      Create a program (or replace one with --replace)
  activate    Make a program the active one
  deactivate  Stop the active program
  today       Show the next routine and week
  delete      Delete a program`,
}

var programListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List programs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		programs, err := app.svc.Programs(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list programs: %w", err)
		}
		if len(programs) == 0 {
			fmt.Println("No programs found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, p := range programs {
			active := ""
			if p.IsActive {
				active = color.GreenString(" active")
			}
			week := models.WeekIndicator(p.WeeksCompleted, p.DeloadEveryNWeeks)
			fmt.Printf("%s %s %s%s%s\n", faint.Sprint(shortID(p.ID)), padRight(p.Name, 24),
				faint.Sprint(week.String()), active, pendingMark(p.SyncStatus))
		}
		return nil
	},
}

var programShowCmd = &cobra.Command{
	Use:   "show <program>",
	Short: "Show a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		prog, err := app.svc.ResolveProgram(ctx, args[0])
		if err != nil {
			return lookupErr("program", args[0], err)
		}
		detail, err := app.svc.Program(ctx, prog.ID)
		if err != nil {
			return err
		}
		p := detail.Program

		faint := color.New(color.Faint)
		fmt.Printf("Program: %s%s\n", p.Name, pendingMark(p.SyncStatus))
		faint.Printf("ID: %s\n", p.ID)
		fmt.Printf("Deload: every %d weeks\n", p.DeloadEveryNWeeks)
		fmt.Printf("Active: %t\n", p.IsActive)
		if p.StartedAt != nil {
			fmt.Printf("Started: %s\n", p.StartedAt.Local().Format("2006-01-02"))
		}
		fmt.Printf("Weeks completed: %d (%s)\n", p.WeeksCompleted,
			models.WeekIndicator(p.WeeksCompleted, p.DeloadEveryNWeeks))
		if p.LastWorkoutAt != nil {
			fmt.Printf("Last workout: %s\n", p.LastWorkoutAt.Local().Format("2006-01-02 15:04"))
		}

		fmt.Println("\nRotation:")
		for i, r := range detail.Routines {
			name := shortID(r.TemplateID)
			if d, err := app.svc.Template(ctx, r.TemplateID); err == nil {
				name = d.Template.Name
			}
			marker := "  "
			if i == p.CurrentRoutineIndex {
				marker = color.CyanString("→ ")
			}
			fmt.Printf("%s%d. %s\n", marker, i+1, name)
		}
		return nil
	},
}

var programCreateCmd = &cobra.Command{
	Use:   "create <name> <template>...",
	Short: "Create a program",
	Long: `Create a program rotating through the given templates in order.

Pass --replace with an existing program to rewrite its name, deload
interval and rotation. Its rotation position is kept when still valid.

Examples:
  gymtrack program create "PPL" push pull legs --deload-every 4
  gymtrack program create "PPL v2" push pull legs arms --replace PPL`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()

		draft := &models.ProgramDraft{Name: args[0], DeloadEveryNWeeks: programDeloadEvery}
		for _, ref := range args[1:] {
			tmpl, err := app.svc.ResolveTemplate(ctx, ref)
			if err != nil {
				return lookupErr("template", ref, err)
			}
			draft.TemplateIDs = append(draft.TemplateIDs, tmpl.ID)
		}
		if programReplace != "" {
			existing, err := app.svc.ResolveProgram(ctx, programReplace)
			if err != nil {
				return lookupErr("program", programReplace, err)
			}
			draft.ID = existing.ID
		}

		prog, err := app.svc.SaveProgram(ctx, draft)
		if err != nil {
			return err
		}
		color.Green("✓ Saved program %s", prog.Name)
		fmt.Printf("  ID: %s\n", shortID(prog.ID))
		fmt.Printf("  Routines: %d, deload every %d weeks\n", len(draft.TemplateIDs), prog.DeloadEveryNWeeks)
		if !prog.IsActive {
			fmt.Printf("\nRun 'gymtrack program activate %s' to start it.\n", shortID(prog.ID))
		}
		return nil
	},
}

func programActivation(active bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		prog, err := app.svc.ResolveProgram(ctx, args[0])
		if err != nil {
			return lookupErr("program", args[0], err)
		}
		prog, err = app.svc.SetProgramActive(ctx, prog.ID, active)
		if err != nil {
			return err
		}
		if active {
			color.Green("✓ %s is now active", prog.Name)
		} else {
			color.Green("✓ %s deactivated", prog.Name)
		}
		return nil
	}
}

var programActivateCmd = &cobra.Command{
	Use:   "activate <program>",
	Short: "Activate a program",
	Long:  `Activate a program. Any other active program is deactivated.`,
	Args:  cobra.ExactArgs(1),
	RunE:  programActivation(true),
}

var programDeactivateCmd = &cobra.Command{
	Use:   "deactivate <program>",
	Short: "Deactivate a program",
	Args:  cobra.ExactArgs(1),
	RunE:  programActivation(false),
}

var programTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show the next routine of the active program",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		today, err := app.svc.TodayRoutine(cmd.Context())
		if errors.Is(err, service.ErrNoActiveProgram) {
			fmt.Println("No active program. Run 'gymtrack program activate <program>'.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Program: %s\n", today.Program.Name)
		if today.Week.IsDeload {
			color.Yellow("%s", today.Week.String())
		} else {
			fmt.Println(today.Week.String())
		}
		fmt.Printf("Routine %d of %d: %s\n", today.Position, today.Count, today.Template.Name)
		fmt.Println("\nRun 'gymtrack workout start --program' to begin.")
		return nil
	},
}

var programDeleteCmd = &cobra.Command{
	Use:     "delete <program>",
	Aliases: []string{"rm"},
	Short:   "Delete a program",
	Long:    `Delete a program and its rotation. Past workouts are kept.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		prog, err := app.svc.ResolveProgram(ctx, args[0])
		if err != nil {
			return lookupErr("program", args[0], err)
		}
		if err := app.svc.DeleteProgram(ctx, prog.ID); err != nil {
			return err
		}
		color.Green("✓ Deleted program %s", prog.Name)
		return nil
	},
}

func init() {
	programCreateCmd.Flags().IntVar(&programDeloadEvery, "deload-every", 4, "deload every N weeks")
	programCreateCmd.Flags().StringVar(&programReplace, "replace", "", "existing program to replace")

	programCmd.AddCommand(programListCmd, programShowCmd, programCreateCmd,
		programActivateCmd, programDeactivateCmd, programTodayCmd, programDeleteCmd)
	rootCmd.AddCommand(programCmd)
}
