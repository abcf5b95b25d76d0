// ABOUTME: CLI commands for workout sessions.
// ABOUTME: Supports start, log, finish, plan, list and show subcommands.
package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/service"
)

var (
	workoutTemplate    string
	workoutFromProgram bool
	workoutWeek        string
	workoutNotes       string
	workoutLimit       int
	workoutSince       string

	setWarmup  bool
	setRPE     float64
	setNotes   string
	setSession string
)

var workoutCmd = &cobra.Command{
	Use:     "workout",
	Aliases: []string{"w"},
	Short:   "Track workout sessions",
	Long: `Track workout sessions and the sets you perform.

Only one workout can be in progress at a time. Sets are logged against the
workout in progress unless --session names another one.

WORKFLOW:

  1. Start a workout:   gymtrack workout start --template "Push Day"
  2. See the plan:      gymtrack workout plan
  3. Log each set:      gymtrack workout log bench 100 6 --rpe 8
  4. Finish it:         gymtrack workout finish

Finishing records the best working weight per exercise for the week and,
for program workouts, moves the program to its next routine.

COMMANDS:

  start    Start a workout
  log      Log a set
  finish   Finish a workout
  plan     Show prescriptions, substitutes and progress for a workout
  list     List recent workouts
  show     View a workout with all its sets`,
}

var workoutStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a workout",
	Long: `Start a workout, optionally from a template or the active program.

Examples:
  gymtrack workout start --template "Push Day"
  gymtrack workout start --template push --week deload
  gymtrack workout start --program
  gymtrack workout start --notes "Hotel gym"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()

		if workoutFromProgram {
			if workoutTemplate != "" {
				return fmt.Errorf("--program and --template cannot be combined")
			}
			ws, today, err := app.svc.StartFromProgram(ctx, workoutNotes)
			if err != nil {
				return startErr(err)
			}
			color.Green("✓ Started %s (%s)", today.Template.Name, today.Week)
			fmt.Printf("  ID: %s\n", shortID(ws.ID))
			fmt.Printf("  Program: %s, routine %d of %d\n", today.Program.Name, today.Position, today.Count)
			return nil
		}

		opts := service.StartOptions{Notes: workoutNotes}
		if workoutWeek != "" {
			wt, err := models.ParseWeekType(workoutWeek)
			if err != nil {
				return err
			}
			opts.WeekType = wt
		}
		name := "freestyle workout"
		if workoutTemplate != "" {
			tmpl, err := app.svc.ResolveTemplate(ctx, workoutTemplate)
			if err != nil {
				return lookupErr("template", workoutTemplate, err)
			}
			opts.TemplateID, name = tmpl.ID, tmpl.Name
		}

		ws, err := app.svc.StartSession(ctx, opts)
		if err != nil {
			return startErr(err)
		}
		color.Green("✓ Started %s", name)
		fmt.Printf("  ID: %s\n", shortID(ws.ID))
		fmt.Printf("  Week: %s\n", ws.WeekType)
		return nil
	},
}

func startErr(err error) error {
	switch {
	case errors.Is(err, service.ErrActiveSessionExists):
		return fmt.Errorf("a workout is already in progress, finish it with 'gymtrack workout finish'")
	case errors.Is(err, service.ErrNoActiveProgram):
		return fmt.Errorf("no active program, run 'gymtrack program activate <program>'")
	}
	return err
}

var workoutLogCmd = &cobra.Command{
	Use:   "log <exercise> <weight> <reps>",
	Short: "Log a set",
	Long: `Log a set in the workout in progress.

The exercise can be a name or an id prefix. Sets are numbered per exercise
and set type in the order they are logged.

Examples:
  gymtrack workout log "Bench Press" 100 6
  gymtrack workout log bench 60 10 --warmup
  gymtrack workout log ohp 50 8 --rpe 9 --notes "paused"`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()

		weight, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid weight: %s", args[1])
		}
		reps, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid reps: %s", args[2])
		}

		ws, err := app.svc.ResolveSession(ctx, setSession)
		if err != nil {
			if setSession == "" {
				return fmt.Errorf("no workout in progress, start one with 'gymtrack workout start'")
			}
			return lookupErr("workout", setSession, err)
		}
		ex, err := app.svc.ResolveExercise(ctx, args[0])
		if err != nil {
			return lookupErr("exercise", args[0], err)
		}

		in := service.SetInput{
			SessionID:  ws.ID,
			ExerciseID: ex.ID,
			SetType:    models.SetWorking,
			Reps:       reps,
			Weight:     weight,
			Notes:      setNotes,
		}
		if setWarmup {
			in.SetType = models.SetWarmup
		}
		if cmd.Flags().Changed("rpe") {
			in.RPE = &setRPE
		}

		set, err := app.svc.LogSet(ctx, in)
		if errors.Is(err, service.ErrSessionFinished) {
			return fmt.Errorf("workout %s is already finished", shortID(ws.ID))
		}
		if err != nil {
			return err
		}

		color.Green("✓ %s %s #%d: %s × %d", ex.Name, set.SetType, set.SetNumber, formatWeight(set.Weight), set.Reps)
		return nil
	},
}

var workoutFinishCmd = &cobra.Command{
	Use:   "finish [workout]",
	Short: "Finish a workout",
	Long: `Finish the workout in progress, or the one named.

Finishing twice is harmless: the first finish time is kept and the program
only advances once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}
		ws, err := app.svc.ResolveSession(ctx, ref)
		if err != nil {
			if ref == "" {
				return fmt.Errorf("no workout in progress")
			}
			return lookupErr("workout", ref, err)
		}

		res, err := app.svc.FinishSession(ctx, ws.ID)
		if err != nil {
			return err
		}
		names, err := exerciseNames(ctx)
		if err != nil {
			return err
		}

		dur := res.Session.FinishedAt.Sub(res.Session.StartedAt).Round(time.Minute)
		color.Green("✓ Workout finished (%s)", dur)
		for _, p := range res.Progress {
			fmt.Printf("  %s %s\n", padRight(nameOr(names, p.ExerciseID), 24),
				color.CyanString("best %s", formatWeight(p.MaxWeight)))
		}
		if res.Program != nil {
			fmt.Printf("  Program %s: %s next\n", res.Program.Name,
				models.WeekIndicator(res.Program.WeeksCompleted, res.Program.DeloadEveryNWeeks))
		}
		return nil
	},
}

var workoutPlanCmd = &cobra.Command{
	Use:   "plan [workout]",
	Short: "Show what to do in a workout",
	Long: `Show the prescriptions for a workout's week type in order, with
substitutes, the last recorded best weight and the sets logged so far.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}
		ws, err := app.svc.ResolveSession(ctx, ref)
		if err != nil {
			return lookupErr("workout", ref, err)
		}
		plan, err := app.svc.LoadPlan(ctx, ws.ID)
		if err != nil {
			return err
		}
		if plan.Template == nil {
			fmt.Println("Freestyle workout, no plan.")
			return nil
		}

		faint := color.New(color.Faint)
		fmt.Printf("%s (%s week)\n\n", plan.Template.Name, plan.Session.WeekType)
		for i, item := range plan.Items {
			last := "never"
			if item.LastMaxWeight != nil {
				last = formatWeight(*item.LastMaxWeight)
			}
			fmt.Printf("%d. %s %s\n", i+1, padRight(item.Exercise.Name, 24), describePrescription(item.Prescription.Prescription))
			faint.Printf("   last best %s, %d/%d working sets logged\n", last, workingSets(item.Logged), item.Prescription.WorkingSets)
			for _, sub := range item.Substitutes {
				faint.Printf("   or %s %s\n", padRight(sub.Exercise.Name, 21), describePrescription(sub.Prescription))
			}
		}
		return nil
	},
}

func workingSets(sets []*models.WorkoutSet) int {
	n := 0
	for _, s := range sets {
		if s.SetType == models.SetWorking {
			n++
		}
	}
	return n
}

var workoutListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()

		var since time.Time
		if workoutSince != "" {
			t, err := parseTime(workoutSince)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			since = t
		}

		sessions, err := app.svc.RecentSessions(ctx, workoutLimit)
		if err != nil {
			return fmt.Errorf("failed to list workouts: %w", err)
		}
		templates, err := app.svc.Templates(ctx)
		if err != nil {
			return err
		}
		names := make(map[string]string, len(templates))
		for _, t := range templates {
			names[t.ID] = t.Name
		}

		shown := 0
		faint := color.New(color.Faint)
		for _, ws := range sessions {
			if ws.StartedAt.Before(since) {
				continue
			}
			name := "freestyle"
			if ws.TemplateID != nil {
				name = nameOr(names, *ws.TemplateID)
			}
			state := ""
			if ws.IsActive() {
				state = color.GreenString(" in progress")
			}
			fmt.Printf("%s %s %s %s%s%s\n",
				faint.Sprint(shortID(ws.ID)),
				faint.Sprint(ws.StartedAt.Local().Format("2006-01-02 15:04")),
				padRight(truncate(name, 24), 24),
				faint.Sprint(ws.WeekType), state, pendingMark(ws.SyncStatus))
			shown++
		}
		if shown == 0 {
			fmt.Println("No workouts found.")
		}
		return nil
	},
}

var workoutShowCmd = &cobra.Command{
	Use:   "show <workout>",
	Short: "Show workout details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		ws, err := app.svc.ResolveSession(ctx, args[0])
		if err != nil {
			return lookupErr("workout", args[0], err)
		}
		detail, err := app.svc.Session(ctx, ws.ID)
		if err != nil {
			return err
		}
		names, err := exerciseNames(ctx)
		if err != nil {
			return err
		}

		s := detail.Session
		fmt.Printf("Workout: %s%s\n", shortID(s.ID), pendingMark(s.SyncStatus))
		fmt.Printf("Started: %s\n", s.StartedAt.Local().Format("2006-01-02 15:04"))
		if s.FinishedAt != nil {
			fmt.Printf("Finished: %s\n", s.FinishedAt.Local().Format("2006-01-02 15:04"))
		} else {
			color.Green("In progress")
		}
		fmt.Printf("Week: %s\n", s.WeekType)
		if s.Notes != nil {
			fmt.Printf("Notes: %s\n", *s.Notes)
		}

		if len(detail.Sets) > 0 {
			faint := color.New(color.Faint)
			fmt.Println("\nSets:")
			for _, set := range detail.Sets {
				extra := ""
				if set.RPE != nil {
					extra += " @" + formatWeight(*set.RPE)
				}
				if set.Notes != nil {
					extra += " " + faint.Sprint(*set.Notes)
				}
				kind := ""
				if set.SetType == models.SetWarmup {
					kind = faint.Sprint(" warmup")
				}
				fmt.Printf("  %s #%d %s × %d%s%s\n", padRight(nameOr(names, set.ExerciseID), 24),
					set.SetNumber, formatWeight(set.Weight), set.Reps, extra, kind)
			}
		}
		return nil
	},
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
		time.RFC3339,
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func init() {
	workoutStartCmd.Flags().StringVarP(&workoutTemplate, "template", "t", "", "template to follow")
	workoutStartCmd.Flags().BoolVarP(&workoutFromProgram, "program", "p", false, "start the active program's next routine")
	workoutStartCmd.Flags().StringVar(&workoutWeek, "week", "", "week type (normal or deload)")
	workoutStartCmd.Flags().StringVarP(&workoutNotes, "notes", "n", "", "workout notes")

	workoutLogCmd.Flags().BoolVarP(&setWarmup, "warmup", "w", false, "log a warmup set")
	workoutLogCmd.Flags().Float64Var(&setRPE, "rpe", 0, "rate of perceived exertion (1-10)")
	workoutLogCmd.Flags().StringVarP(&setNotes, "notes", "n", "", "set notes")
	workoutLogCmd.Flags().StringVarP(&setSession, "session", "s", "", "workout to log into (default: in progress)")

	workoutListCmd.Flags().IntVarP(&workoutLimit, "limit", "n", 20, "max number of results")
	workoutListCmd.Flags().StringVar(&workoutSince, "since", "", "only workouts started after (YYYY-MM-DD)")

	workoutCmd.AddCommand(workoutStartCmd, workoutLogCmd, workoutFinishCmd,
		workoutPlanCmd, workoutListCmd, workoutShowCmd)
	rootCmd.AddCommand(workoutCmd)
}
