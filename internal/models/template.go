// ABOUTME: WorkoutTemplate and TemplateExercise models plus the builder draft types.
// ABOUTME: A template holds one prescription row per exercise and week type.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkoutTemplate is a named, ordered list of exercise prescriptions.
type WorkoutTemplate struct {
	ID         string
	UserID     string
	Name       string
	CreatedAt  time.Time
	SyncStatus SyncStatus
}

// Prescription holds the per-week-type targets for one exercise slot.
type Prescription struct {
	WorkingSets        int
	MinReps            int
	MaxReps            int
	EarlySetRPEMin     float64
	EarlySetRPEMax     float64
	LastSetRPEMin      float64
	LastSetRPEMax      float64
	RestPeriod         string
	IntensityTechnique *string
	WarmupSets         int
}

// DefaultPrescription returns the normal-week prescription used for new slots.
func DefaultPrescription() Prescription {
	return Prescription{
		WorkingSets:    2,
		MinReps:        6,
		MaxReps:        10,
		EarlySetRPEMin: 7,
		EarlySetRPEMax: 8,
		LastSetRPEMin:  9,
		LastSetRPEMax:  10,
		RestPeriod:     "2-3 mins",
		WarmupSets:     2,
	}
}

// DefaultDeloadPrescription returns the deload-week prescription used for new slots.
func DefaultDeloadPrescription() Prescription {
	p := DefaultPrescription()
	p.EarlySetRPEMin, p.EarlySetRPEMax = 5, 6
	p.LastSetRPEMin, p.LastSetRPEMax = 7, 8
	return p
}

// Validate checks the prescription ranges.
func (p Prescription) Validate(field string) error {
	switch {
	case p.WorkingSets < 1:
		return invalid(field+".working_sets", "must be at least 1")
	case p.MinReps < 1:
		return invalid(field+".min_reps", "must be at least 1")
	case p.MinReps > p.MaxReps:
		return invalid(field+".min_reps", "must be <= max_reps")
	case p.WarmupSets < 0:
		return invalid(field+".warmup_sets", "must not be negative")
	case strings.TrimSpace(p.RestPeriod) == "":
		return invalid(field+".rest_period", "is required")
	}
	for _, r := range []struct {
		name     string
		min, max float64
	}{
		{"early_set_rpe", p.EarlySetRPEMin, p.EarlySetRPEMax},
		{"last_set_rpe", p.LastSetRPEMin, p.LastSetRPEMax},
	} {
		if r.min < 1 || r.max > 10 || r.min > r.max {
			return invalid(field+"."+r.name, "range %.1f-%.1f must lie within 1-10", r.min, r.max)
		}
	}
	return nil
}

// TemplateExercise is one prescription row of a template.
// A non-nil ParentExerciseID marks a substitute prescription attached to
// the main normal-week row with that id.
type TemplateExercise struct {
	ID               string
	TemplateID       string
	ExerciseID       string
	WeekType         WeekType
	Order            int
	Prescription
	ParentExerciseID *string
	SyncStatus       SyncStatus
}

// IsSubstitute reports whether the row is a substitute prescription.
func (te *TemplateExercise) IsSubstitute() bool {
	return te.ParentExerciseID != nil
}

// TemplateDraft is the builder input for creating or replacing a template.
type TemplateDraft struct {
	ID      string // empty for a new template
	Name    string
	Entries []TemplateEntry
}

// TemplateEntry is one exercise slot in a draft, in display order.
type TemplateEntry struct {
	ExerciseID  string
	Normal      Prescription
	Deload      Prescription
	Substitutes []SubstituteEntry
}

// SubstituteEntry is an alternative exercise for a slot with its own prescription.
type SubstituteEntry struct {
	ExerciseID   string
	Prescription Prescription
}

// Validate checks the draft before any write happens.
func (d *TemplateDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", "template name is required")
	}
	if len(d.Entries) == 0 {
		return invalid("exercises", "add at least one exercise")
	}
	for _, e := range d.Entries {
		if e.ExerciseID == "" {
			return invalid("exercise_id", "is required")
		}
		if err := e.Normal.Validate("normal"); err != nil {
			return err
		}
		if err := e.Deload.Validate("deload"); err != nil {
			return err
		}
		for _, s := range e.Substitutes {
			if s.ExerciseID == "" || s.ExerciseID == e.ExerciseID {
				return invalid("substitute", "substitute must name a different exercise")
			}
			if err := s.Prescription.Validate("substitute"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rows expands the draft into template exercise rows, all pending.
// Each entry yields a normal row, a deload row and one normal-week row per
// substitute pointing at the normal row through ParentExerciseID.
func (d *TemplateDraft) Rows(templateID string) []*TemplateExercise {
	var rows []*TemplateExercise
	for i, e := range d.Entries {
		normal := &TemplateExercise{
			ID:           uuid.NewString(),
			TemplateID:   templateID,
			ExerciseID:   e.ExerciseID,
			WeekType:     WeekNormal,
			Order:        i,
			Prescription: e.Normal,
			SyncStatus:   StatusPending,
		}
		deload := &TemplateExercise{
			ID:           uuid.NewString(),
			TemplateID:   templateID,
			ExerciseID:   e.ExerciseID,
			WeekType:     WeekDeload,
			Order:        i,
			Prescription: e.Deload,
			SyncStatus:   StatusPending,
		}
		rows = append(rows, normal, deload)
		for _, s := range e.Substitutes {
			parent := normal.ID
			rows = append(rows, &TemplateExercise{
				ID:               uuid.NewString(),
				TemplateID:       templateID,
				ExerciseID:       s.ExerciseID,
				WeekType:         WeekNormal,
				Order:            i,
				Prescription:     s.Prescription,
				ParentExerciseID: &parent,
				SyncStatus:       StatusPending,
			})
		}
	}
	return rows
}
