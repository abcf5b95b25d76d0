// ABOUTME: Workout plan loading for an active session: prescriptions, substitutes and last maxima.
// ABOUTME: Substitutes come from one of two sources, chosen once per template load.
package service

import (
	"context"
	"errors"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/storage"
)

// Substitute is an alternative exercise for a plan slot.
type Substitute struct {
	Exercise     *models.Exercise
	Prescription models.Prescription
}

// Substitutes resolves the alternatives of a main prescription. It is either
// PerPrescriptionSubstitutes or LegacyGlobalSubstitutes.
type Substitutes interface {
	For(slot *models.TemplateExercise) []Substitute
	Kind() string
	substitutes()
}

// PerPrescriptionSubstitutes reads substitute rows attached to the template's
// normal-week prescriptions. Each substitute carries its own prescription.
type PerPrescriptionSubstitutes struct {
	// byOrder holds the substitutes of each slot, keyed by slot order.
	byOrder map[int][]Substitute
}

func (PerPrescriptionSubstitutes) substitutes() {}

// Kind names the strategy.
func (PerPrescriptionSubstitutes) Kind() string { return "per-prescription" }

// For returns the substitutes attached to slot's position in the template.
func (p PerPrescriptionSubstitutes) For(slot *models.TemplateExercise) []Substitute {
	return p.byOrder[slot.Order]
}

// LegacyGlobalSubstitutes reads the exercise-level substitution list. Its
// entries reuse the main prescription.
type LegacyGlobalSubstitutes struct {
	byExercise map[string][]*models.Exercise
}

func (LegacyGlobalSubstitutes) substitutes() {}

// Kind names the strategy.
func (LegacyGlobalSubstitutes) Kind() string { return "legacy-global" }

// For returns the listed alternatives of slot's exercise in priority order.
func (l LegacyGlobalSubstitutes) For(slot *models.TemplateExercise) []Substitute {
	var out []Substitute
	for _, ex := range l.byExercise[slot.ExerciseID] {
		out = append(out, Substitute{Exercise: ex, Prescription: slot.Prescription})
	}
	return out
}

// PlanItem is one exercise slot of the plan.
type PlanItem struct {
	Prescription  *models.TemplateExercise
	Exercise      *models.Exercise
	Substitutes   []Substitute
	LastMaxWeight *float64 // best weekly max ever recorded, nil when never trained
	Logged        []*models.WorkoutSet
}

// Plan is what the user should do in a session.
type Plan struct {
	Session  *models.WorkoutSession
	Template *models.WorkoutTemplate // nil for a freestyle session
	Strategy Substitutes
	Items    []PlanItem
}

// LoadPlan builds the plan of a session: its template's prescriptions for the
// session's week type in order, each slot's substitutes and the last
// recorded max weight per exercise.
func (s *Service) LoadPlan(ctx context.Context, sessionID string) (*Plan, error) {
	plan := &Plan{}
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		ws, err := storage.Get(ctx, tx, storage.Sessions, sessionID)
		if err != nil {
			return err
		}
		plan.Session = ws
		if ws.TemplateID == nil {
			return nil
		}
		if plan.Template, err = storage.Get(ctx, tx, storage.Templates, *ws.TemplateID); err != nil {
			return err
		}

		rows, err := storage.Collect(ctx, tx, storage.TemplateExercises,
			storage.Eq("template_id", plan.Template.ID), storage.OrderBy("sort_order", false))
		if err != nil {
			return err
		}
		exercises := make(map[string]*models.Exercise)
		exercise := func(id string) (*models.Exercise, error) {
			if ex, ok := exercises[id]; ok {
				return ex, nil
			}
			ex, err := storage.Get(ctx, tx, storage.Exercises, id)
			if err != nil {
				return nil, err
			}
			exercises[id] = ex
			return ex, nil
		}

		if plan.Strategy, err = resolveSubstitutes(ctx, tx, rows, exercise); err != nil {
			return err
		}

		for _, row := range rows {
			if row.IsSubstitute() || row.WeekType != ws.WeekType {
				continue
			}
			ex, err := exercise(row.ExerciseID)
			if err != nil {
				return err
			}
			item := PlanItem{Prescription: row, Exercise: ex, Substitutes: plan.Strategy.For(row)}
			if item.LastMaxWeight, err = lastMaxWeight(ctx, tx, s.userID, row.ExerciseID); err != nil {
				return err
			}
			if item.Logged, err = storage.Collect(ctx, tx, storage.Sets,
				storage.Eq("session_id", ws.ID), storage.Eq("exercise_id", row.ExerciseID),
				storage.OrderBy("created_at", false)); err != nil {
				return err
			}
			plan.Items = append(plan.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// resolveSubstitutes picks the per-prescription source when the template has
// any substitute rows, and the legacy exercise-level list otherwise.
func resolveSubstitutes(ctx context.Context, tx *storage.Tx, rows []*models.TemplateExercise, exercise func(string) (*models.Exercise, error)) (Substitutes, error) {
	order := make(map[string]int)
	var children []*models.TemplateExercise
	for _, row := range rows {
		if row.IsSubstitute() {
			children = append(children, row)
		} else {
			order[row.ID] = row.Order
		}
	}

	if len(children) > 0 {
		pp := PerPrescriptionSubstitutes{byOrder: make(map[int][]Substitute)}
		for _, c := range children {
			slot, ok := order[*c.ParentExerciseID]
			if !ok {
				continue
			}
			ex, err := exercise(c.ExerciseID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			pp.byOrder[slot] = append(pp.byOrder[slot], Substitute{Exercise: ex, Prescription: c.Prescription})
		}
		return pp, nil
	}

	legacy := LegacyGlobalSubstitutes{byExercise: make(map[string][]*models.Exercise)}
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.ExerciseID] {
			continue
		}
		seen[row.ExerciseID] = true
		subs, err := storage.Collect(ctx, tx, storage.Substitutions,
			storage.Eq("exercise_id", row.ExerciseID), storage.OrderBy("priority", false))
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			ex, err := exercise(sub.SubstituteExerciseID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			legacy.byExercise[row.ExerciseID] = append(legacy.byExercise[row.ExerciseID], ex)
		}
	}
	return legacy, nil
}

// LastMaxWeight returns the highest weekly max ever recorded for an exercise,
// or nil when there is none. A light week does not lower it.
func (s *Service) LastMaxWeight(ctx context.Context, exerciseID string) (*float64, error) {
	return lastMaxWeight(ctx, s.store, s.userID, exerciseID)
}

func lastMaxWeight(ctx context.Context, q storage.Querier, userID, exerciseID string) (*float64, error) {
	row, err := storage.First(ctx, q, storage.Progress,
		storage.Eq("user_id", userID), storage.Eq("exercise_id", exerciseID), storage.OrderBy("max_weight", true))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row.MaxWeight, nil
}
