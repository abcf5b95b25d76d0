// ABOUTME: CLI commands for workout templates.
// ABOUTME: Templates are defined in YAML files and applied as a full replace.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/service"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"t"},
	Short:   "Manage workout templates",
	Long: `Manage workout templates.

A template lists exercises in order, each with a normal-week and a
deload-week prescription and optional substitutes. Templates are written
as YAML and applied with 'gymtrack template apply':

  name: Push Day
  exercises:
    - exercise: Bench Press
      normal: {working_sets: 3, min_reps: 6, max_reps: 8}
      deload: {working_sets: 2, last_set_rpe: [7, 8]}
      substitutes:
        - exercise: Dumbbell Bench Press
          prescription: {min_reps: 8, max_reps: 12}
    - exercise: Overhead Press

Omitted fields take the defaults (2 working sets, 6-10 reps, RPE 7-8 then
9-10, 2-3 mins rest, 2 warmup sets; deload drops RPE by two).

COMMANDS:

  list     List templates
  show     Show a template's prescriptions
  apply    Create or replace a template from a YAML file
  delete   Delete a template`,
}

// templateFile is the YAML shape accepted by 'template apply'.
type templateFile struct {
	Name      string      `yaml:"name"`
	Exercises []entryFile `yaml:"exercises"`
}

type entryFile struct {
	Exercise    string            `yaml:"exercise"`
	Normal      *prescriptionFile `yaml:"normal"`
	Deload      *prescriptionFile `yaml:"deload"`
	Substitutes []substituteFile  `yaml:"substitutes"`
}

type substituteFile struct {
	Exercise     string            `yaml:"exercise"`
	Prescription *prescriptionFile `yaml:"prescription"`
}

type prescriptionFile struct {
	WorkingSets *int      `yaml:"working_sets"`
	MinReps     *int      `yaml:"min_reps"`
	MaxReps     *int      `yaml:"max_reps"`
	EarlySetRPE []float64 `yaml:"early_set_rpe"`
	LastSetRPE  []float64 `yaml:"last_set_rpe"`
	Rest        *string   `yaml:"rest"`
	Technique   *string   `yaml:"technique"`
	WarmupSets  *int      `yaml:"warmup_sets"`
}

// apply overlays the file's fields on base.
func (p *prescriptionFile) apply(base models.Prescription) (models.Prescription, error) {
	if p == nil {
		return base, nil
	}
	if p.WorkingSets != nil {
		base.WorkingSets = *p.WorkingSets
	}
	if p.MinReps != nil {
		base.MinReps = *p.MinReps
	}
	if p.MaxReps != nil {
		base.MaxReps = *p.MaxReps
	}
	if p.Rest != nil {
		base.RestPeriod = *p.Rest
	}
	if p.Technique != nil {
		base.IntensityTechnique = p.Technique
	}
	if p.WarmupSets != nil {
		base.WarmupSets = *p.WarmupSets
	}
	var err error
	if base.EarlySetRPEMin, base.EarlySetRPEMax, err = rpeRange(p.EarlySetRPE, base.EarlySetRPEMin, base.EarlySetRPEMax); err != nil {
		return base, fmt.Errorf("early_set_rpe: %w", err)
	}
	if base.LastSetRPEMin, base.LastSetRPEMax, err = rpeRange(p.LastSetRPE, base.LastSetRPEMin, base.LastSetRPEMax); err != nil {
		return base, fmt.Errorf("last_set_rpe: %w", err)
	}
	return base, nil
}

func rpeRange(v []float64, lo, hi float64) (float64, float64, error) {
	switch len(v) {
	case 0:
		return lo, hi, nil
	case 1:
		return v[0], v[0], nil
	case 2:
		return v[0], v[1], nil
	}
	return lo, hi, fmt.Errorf("want [min, max], got %d values", len(v))
}

// parseTemplateFile decodes a template definition.
func parseTemplateFile(r io.Reader) (*templateFile, error) {
	var tf templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &tf, nil
}

// draft resolves exercise references and builds the builder input.
func (tf *templateFile) draft(ctx context.Context, resolve func(context.Context, string) (*models.Exercise, error)) (*models.TemplateDraft, error) {
	d := &models.TemplateDraft{Name: tf.Name}
	for i, e := range tf.Exercises {
		ex, err := resolve(ctx, e.Exercise)
		if err != nil {
			return nil, fmt.Errorf("exercise %d %q: %w", i+1, e.Exercise, err)
		}
		entry := models.TemplateEntry{ExerciseID: ex.ID}
		if entry.Normal, err = e.Normal.apply(models.DefaultPrescription()); err != nil {
			return nil, fmt.Errorf("%s normal: %w", ex.Name, err)
		}
		if entry.Deload, err = e.Deload.apply(models.DefaultDeloadPrescription()); err != nil {
			return nil, fmt.Errorf("%s deload: %w", ex.Name, err)
		}
		for _, s := range e.Substitutes {
			sub, err := resolve(ctx, s.Exercise)
			if err != nil {
				return nil, fmt.Errorf("substitute %q: %w", s.Exercise, err)
			}
			p, err := s.Prescription.apply(entry.Normal)
			if err != nil {
				return nil, fmt.Errorf("%s substitute: %w", sub.Name, err)
			}
			entry.Substitutes = append(entry.Substitutes, models.SubstituteEntry{ExerciseID: sub.ID, Prescription: p})
		}
		d.Entries = append(d.Entries, entry)
	}
	return d, nil
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		templates, err := app.svc.Templates(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
		if len(templates) == 0 {
			fmt.Println("No templates found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, t := range templates {
			fmt.Printf("%s %s%s\n", faint.Sprint(shortID(t.ID)), t.Name, pendingMark(t.SyncStatus))
		}
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <template>",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		tmpl, err := app.svc.ResolveTemplate(ctx, args[0])
		if err != nil {
			return lookupErr("template", args[0], err)
		}
		detail, err := app.svc.Template(ctx, tmpl.ID)
		if err != nil {
			return err
		}
		names, err := exerciseNames(ctx)
		if err != nil {
			return err
		}

		faint := color.New(color.Faint)
		fmt.Printf("Template: %s%s\n", detail.Template.Name, pendingMark(detail.Template.SyncStatus))
		faint.Printf("ID: %s\n\n", detail.Template.ID)

		for _, row := range detail.Exercises {
			if row.IsSubstitute() {
				continue
			}
			fmt.Printf("%d. %s %s %s\n", row.Order+1, padRight(nameOr(names, row.ExerciseID), 24),
				faint.Sprint(padRight(string(row.WeekType), 7)), describePrescription(row.Prescription))
			if row.WeekType != models.WeekNormal {
				continue
			}
			for _, sub := range detail.Exercises {
				if sub.ParentExerciseID != nil && *sub.ParentExerciseID == row.ID {
					faint.Printf("     or %s %s\n", padRight(nameOr(names, sub.ExerciseID), 21), describePrescription(sub.Prescription))
				}
			}
		}
		return nil
	},
}

func describePrescription(p models.Prescription) string {
	s := fmt.Sprintf("%d×%d-%d  RPE %s-%s / %s-%s  rest %s",
		p.WorkingSets, p.MinReps, p.MaxReps,
		formatWeight(p.EarlySetRPEMin), formatWeight(p.EarlySetRPEMax),
		formatWeight(p.LastSetRPEMin), formatWeight(p.LastSetRPEMax), p.RestPeriod)
	if p.WarmupSets > 0 {
		s += fmt.Sprintf("  +%d warmup", p.WarmupSets)
	}
	if p.IntensityTechnique != nil && *p.IntensityTechnique != "" {
		s += "  (" + *p.IntensityTechnique + ")"
	}
	return s
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <file.yaml>",
	Short: "Create or replace a template from YAML",
	Long: `Create a template from a YAML file, or replace the template with the
same name. A replace rewrites every prescription of the template.

Use "-" to read from standard input.

Example:
  gymtrack template apply push.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		tf, err := parseTemplateFile(r)
		if err != nil {
			return err
		}
		draft, err := tf.draft(ctx, app.svc.ResolveExercise)
		if err != nil {
			return err
		}
		if existing, err := app.svc.ResolveTemplate(ctx, draft.Name); err == nil {
			draft.ID = existing.ID
		}

		tmpl, err := app.svc.SaveTemplate(ctx, draft)
		if err != nil {
			return err
		}
		verb := "Created"
		if draft.ID != "" {
			verb = "Updated"
		}
		color.Green("✓ %s template %s", verb, tmpl.Name)
		fmt.Printf("  ID: %s\n", shortID(tmpl.ID))
		fmt.Printf("  Exercises: %d\n", len(draft.Entries))
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete <template>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Long: `Delete a template. Past workouts keep their sets but lose the link.
Templates used by a program cannot be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		ctx := cmd.Context()
		tmpl, err := app.svc.ResolveTemplate(ctx, args[0])
		if err != nil {
			return lookupErr("template", args[0], err)
		}
		if err := app.svc.DeleteTemplate(ctx, tmpl.ID); err != nil {
			if errors.Is(err, service.ErrTemplateInUse) {
				return fmt.Errorf("%s is used by a program, remove it from the program first", tmpl.Name)
			}
			return err
		}
		color.Green("✓ Deleted template %s", tmpl.Name)
		return nil
	},
}

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List available exercises",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireUser(); err != nil {
			return err
		}
		all, err := app.svc.Exercises(cmd.Context())
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("No exercises found. Run 'gymtrack hydrate' to download the catalog.")
			return nil
		}
		faint := color.New(color.Faint)
		for _, ex := range all {
			custom := ""
			if !ex.IsGlobal() {
				custom = color.CyanString(" custom")
			}
			fmt.Printf("%s %s %s%s\n", faint.Sprint(shortID(ex.ID)), padRight(truncate(ex.Name, 32), 32),
				faint.Sprint(ex.MuscleGroup), custom)
		}
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd, templateShowCmd, templateApplyCmd, templateDeleteCmd)
	rootCmd.AddCommand(templateCmd, exercisesCmd)
}
