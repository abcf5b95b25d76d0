// ABOUTME: Tests for session, set and template models.
// ABOUTME: Validates constructors, year-week bucketing and draft expansion.
package models

import (
	"testing"
	"time"
)

func TestYearWeek(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-01-01", "2024-01"},
		{"2024-01-07", "2024-01"},
		{"2024-01-08", "2024-02"},
		{"2024-03-15", "2024-11"},
		{"2024-12-31", "2024-53"},
	}

	for _, tt := range tests {
		d, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := YearWeek(d); got != tt.want {
			t.Errorf("YearWeek(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestNewWorkoutSession(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	s := NewWorkoutSession("user-1", WeekNormal, now)

	if s.ID == "" {
		t.Error("expected ID to be set")
	}
	if !s.IsActive() {
		t.Error("new session should be active")
	}
	if s.YearWeek == nil || *s.YearWeek != "2024-11" {
		t.Errorf("YearWeek = %v, want 2024-11", s.YearWeek)
	}
	if s.SyncStatus != StatusPending {
		t.Errorf("SyncStatus = %s, want pending", s.SyncStatus)
	}
}

func TestWorkoutSetValidate(t *testing.T) {
	good := NewWorkoutSet("s", "e", SetWorking, 1, 8, 80).WithRPE(8)
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := NewWorkoutSet("s", "e", SetWorking, 1, 8, 80).WithRPE(11)
	if err := bad.Validate(); err == nil {
		t.Error("expected rpe error")
	}

	neg := NewWorkoutSet("s", "e", SetWorking, 1, 8, -5)
	if err := neg.Validate(); err == nil {
		t.Error("expected weight error")
	}
}

func TestParseEnums(t *testing.T) {
	if wt, err := ParseWeekType("Deload"); err != nil || wt != WeekDeload {
		t.Errorf("ParseWeekType(Deload) = %s, %v", wt, err)
	}
	if _, err := ParseWeekType("heavy"); err == nil {
		t.Error("expected error for unknown week type")
	}
	if st, err := ParseSetType("working"); err != nil || st != SetWorking {
		t.Errorf("ParseSetType(working) = %s, %v", st, err)
	}
	if u, err := ParseUnit("lb"); err != nil || u != UnitLbs {
		t.Errorf("ParseUnit(lb) = %s, %v", u, err)
	}
}

func TestTemplateDraftRows(t *testing.T) {
	d := TemplateDraft{
		Name: "Push Day",
		Entries: []TemplateEntry{
			{
				ExerciseID: "bench",
				Normal:     DefaultPrescription(),
				Deload:     DefaultDeloadPrescription(),
				Substitutes: []SubstituteEntry{
					{ExerciseID: "db-bench", Prescription: DefaultPrescription()},
				},
			},
			{ExerciseID: "ohp", Normal: DefaultPrescription(), Deload: DefaultDeloadPrescription()},
		},
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	rows := d.Rows("tmpl-1")
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}

	normal, sub := rows[0], rows[2]
	if normal.WeekType != WeekNormal || normal.IsSubstitute() {
		t.Error("first row should be the main normal prescription")
	}
	if rows[1].WeekType != WeekDeload {
		t.Error("second row should be the deload prescription")
	}
	if !sub.IsSubstitute() || *sub.ParentExerciseID != normal.ID {
		t.Error("substitute should point at the main normal row")
	}
	if rows[3].Order != 1 || rows[4].Order != 1 {
		t.Error("second entry rows should carry order 1")
	}
	for _, r := range rows {
		if r.TemplateID != "tmpl-1" || r.SyncStatus != StatusPending {
			t.Errorf("row %s not stamped correctly", r.ID)
		}
	}
}

func TestTemplateDraftValidate(t *testing.T) {
	empty := TemplateDraft{Name: "Legs"}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for zero exercises")
	}

	p := DefaultPrescription()
	p.MinReps, p.MaxReps = 12, 8
	bad := TemplateDraft{Name: "Legs", Entries: []TemplateEntry{{ExerciseID: "squat", Normal: p, Deload: DefaultDeloadPrescription()}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected rep range error")
	}
}
