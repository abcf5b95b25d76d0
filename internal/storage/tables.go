// ABOUTME: Table descriptors for every gym entity: column lists, value binding and row scanning.
// ABOUTME: Times are stored as fixed-width UTC text so lexical order matches time order.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/gymtracker/internal/models"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// Users holds the single authenticated identity row.
var Users = &Table[models.User]{
	Name:    "users",
	Columns: []string{"id", "email", "display_name", "preferred_unit", "created_at", "sync_status"},
	values: func(u *models.User) []any {
		return []any{u.ID, u.Email, u.DisplayName, string(u.PreferredUnit), formatTime(u.CreatedAt), string(u.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.User, error) {
		var u models.User
		var unit, createdAt, status string
		if err := r.Scan(&u.ID, &u.Email, &u.DisplayName, &unit, &createdAt, &status); err != nil {
			return nil, err
		}
		u.PreferredUnit = models.Unit(unit)
		u.CreatedAt = parseTime(createdAt)
		u.SyncStatus = models.SyncStatus(status)
		return &u, nil
	},
}

// Exercises holds the global catalog and the user's custom exercises.
var Exercises = &Table[models.Exercise]{
	Name: "exercises",
	Columns: []string{"id", "user_id", "name", "muscle_group", "equipment", "is_custom",
		"youtube_url", "notes", "created_at", "sync_status"},
	values: func(e *models.Exercise) []any {
		return []any{e.ID, nullString(e.UserID), e.Name, e.MuscleGroup, nullString(e.Equipment), bind(e.IsCustom),
			nullString(e.YoutubeURL), nullString(e.Notes), formatTime(e.CreatedAt), string(e.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.Exercise, error) {
		var e models.Exercise
		var userID, equipment, youtube, notes sql.NullString
		var createdAt, status string
		if err := r.Scan(&e.ID, &userID, &e.Name, &e.MuscleGroup, &equipment, &e.IsCustom,
			&youtube, &notes, &createdAt, &status); err != nil {
			return nil, err
		}
		e.UserID = strPtr(userID)
		e.Equipment = strPtr(equipment)
		e.YoutubeURL = strPtr(youtube)
		e.Notes = strPtr(notes)
		e.CreatedAt = parseTime(createdAt)
		e.SyncStatus = models.SyncStatus(status)
		return &e, nil
	},
}

// Substitutions holds the legacy global substitute list.
var Substitutions = &Table[models.ExerciseSubstitution]{
	Name:    "exercise_substitutions",
	Columns: []string{"id", "exercise_id", "substitute_exercise_id", "priority", "sync_status"},
	values: func(s *models.ExerciseSubstitution) []any {
		return []any{s.ID, s.ExerciseID, s.SubstituteExerciseID, s.Priority, string(s.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.ExerciseSubstitution, error) {
		var s models.ExerciseSubstitution
		var status string
		if err := r.Scan(&s.ID, &s.ExerciseID, &s.SubstituteExerciseID, &s.Priority, &status); err != nil {
			return nil, err
		}
		s.SyncStatus = models.SyncStatus(status)
		return &s, nil
	},
}

// Templates holds workout templates.
var Templates = &Table[models.WorkoutTemplate]{
	Name:    "workout_templates",
	Columns: []string{"id", "user_id", "name", "created_at", "sync_status"},
	values: func(t *models.WorkoutTemplate) []any {
		return []any{t.ID, t.UserID, t.Name, formatTime(t.CreatedAt), string(t.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.WorkoutTemplate, error) {
		var t models.WorkoutTemplate
		var createdAt, status string
		if err := r.Scan(&t.ID, &t.UserID, &t.Name, &createdAt, &status); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(createdAt)
		t.SyncStatus = models.SyncStatus(status)
		return &t, nil
	},
}

// TemplateExercises holds per-week-type prescriptions, including substitute rows.
var TemplateExercises = &Table[models.TemplateExercise]{
	Name: "template_exercises",
	Columns: []string{"id", "template_id", "exercise_id", "week_type", "sort_order", "working_sets",
		"min_reps", "max_reps", "early_set_rpe_min", "early_set_rpe_max", "last_set_rpe_min", "last_set_rpe_max",
		"rest_period", "intensity_technique", "warmup_sets", "parent_exercise_id", "sync_status"},
	values: func(te *models.TemplateExercise) []any {
		return []any{te.ID, te.TemplateID, te.ExerciseID, string(te.WeekType), te.Order, te.WorkingSets,
			te.MinReps, te.MaxReps, te.EarlySetRPEMin, te.EarlySetRPEMax, te.LastSetRPEMin, te.LastSetRPEMax,
			te.RestPeriod, nullString(te.IntensityTechnique), te.WarmupSets, nullString(te.ParentExerciseID),
			string(te.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.TemplateExercise, error) {
		var te models.TemplateExercise
		var weekType, status string
		var technique, parent sql.NullString
		if err := r.Scan(&te.ID, &te.TemplateID, &te.ExerciseID, &weekType, &te.Order, &te.WorkingSets,
			&te.MinReps, &te.MaxReps, &te.EarlySetRPEMin, &te.EarlySetRPEMax, &te.LastSetRPEMin, &te.LastSetRPEMax,
			&te.RestPeriod, &technique, &te.WarmupSets, &parent, &status); err != nil {
			return nil, err
		}
		te.WeekType = models.WeekType(weekType)
		te.IntensityTechnique = strPtr(technique)
		te.ParentExerciseID = strPtr(parent)
		te.SyncStatus = models.SyncStatus(status)
		return &te, nil
	},
}

// Programs holds multi-week programs.
var Programs = &Table[models.Program]{
	Name: "programs",
	Columns: []string{"id", "user_id", "name", "deload_every_n_weeks", "is_active", "started_at",
		"current_routine_index", "weeks_completed", "last_workout_at", "created_at", "sync_status"},
	values: func(p *models.Program) []any {
		return []any{p.ID, p.UserID, p.Name, p.DeloadEveryNWeeks, bind(p.IsActive), nullTime(p.StartedAt),
			p.CurrentRoutineIndex, p.WeeksCompleted, nullTime(p.LastWorkoutAt), formatTime(p.CreatedAt),
			string(p.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.Program, error) {
		var p models.Program
		var startedAt, lastWorkout sql.NullString
		var createdAt, status string
		if err := r.Scan(&p.ID, &p.UserID, &p.Name, &p.DeloadEveryNWeeks, &p.IsActive, &startedAt,
			&p.CurrentRoutineIndex, &p.WeeksCompleted, &lastWorkout, &createdAt, &status); err != nil {
			return nil, err
		}
		p.StartedAt = timePtr(startedAt)
		p.LastWorkoutAt = timePtr(lastWorkout)
		p.CreatedAt = parseTime(createdAt)
		p.SyncStatus = models.SyncStatus(status)
		return &p, nil
	},
}

// ProgramRoutines holds the ordered template slots of each program.
var ProgramRoutines = &Table[models.ProgramRoutine]{
	Name:    "program_routines",
	Columns: []string{"id", "program_id", "template_id", "sort_order", "sync_status"},
	values: func(r *models.ProgramRoutine) []any {
		return []any{r.ID, r.ProgramID, r.TemplateID, r.Order, string(r.SyncStatus)}
	},
	scan: func(s rowScanner) (*models.ProgramRoutine, error) {
		var r models.ProgramRoutine
		var status string
		if err := s.Scan(&r.ID, &r.ProgramID, &r.TemplateID, &r.Order, &status); err != nil {
			return nil, err
		}
		r.SyncStatus = models.SyncStatus(status)
		return &r, nil
	},
}

// Sessions holds performed workouts.
var Sessions = &Table[models.WorkoutSession]{
	Name: "workout_sessions",
	Columns: []string{"id", "user_id", "template_id", "year_week", "week_type", "started_at",
		"finished_at", "notes", "program_id", "sync_status"},
	values: func(s *models.WorkoutSession) []any {
		return []any{s.ID, s.UserID, nullString(s.TemplateID), nullString(s.YearWeek), string(s.WeekType),
			formatTime(s.StartedAt), nullTime(s.FinishedAt), nullString(s.Notes), nullString(s.ProgramID),
			string(s.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.WorkoutSession, error) {
		var s models.WorkoutSession
		var templateID, yearWeek, finishedAt, notes, programID sql.NullString
		var weekType, startedAt, status string
		if err := r.Scan(&s.ID, &s.UserID, &templateID, &yearWeek, &weekType, &startedAt,
			&finishedAt, &notes, &programID, &status); err != nil {
			return nil, err
		}
		s.TemplateID = strPtr(templateID)
		s.YearWeek = strPtr(yearWeek)
		s.WeekType = models.WeekType(weekType)
		s.StartedAt = parseTime(startedAt)
		s.FinishedAt = timePtr(finishedAt)
		s.Notes = strPtr(notes)
		s.ProgramID = strPtr(programID)
		s.SyncStatus = models.SyncStatus(status)
		return &s, nil
	},
}

// Sets holds logged sets.
var Sets = &Table[models.WorkoutSet]{
	Name: "workout_sets",
	Columns: []string{"id", "session_id", "exercise_id", "set_type", "set_number", "reps", "weight",
		"rpe", "notes", "created_at", "sync_status"},
	values: func(s *models.WorkoutSet) []any {
		return []any{s.ID, s.SessionID, s.ExerciseID, string(s.SetType), s.SetNumber, s.Reps, s.Weight,
			nullFloat(s.RPE), nullString(s.Notes), formatTime(s.CreatedAt), string(s.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.WorkoutSet, error) {
		var s models.WorkoutSet
		var rpe sql.NullFloat64
		var notes sql.NullString
		var setType, createdAt, status string
		if err := r.Scan(&s.ID, &s.SessionID, &s.ExerciseID, &setType, &s.SetNumber, &s.Reps, &s.Weight,
			&rpe, &notes, &createdAt, &status); err != nil {
			return nil, err
		}
		s.SetType = models.SetType(setType)
		s.RPE = floatPtr(rpe)
		s.Notes = strPtr(notes)
		s.CreatedAt = parseTime(createdAt)
		s.SyncStatus = models.SyncStatus(status)
		return &s, nil
	},
}

// Progress holds weekly max-weight rows, unique per (user_id, exercise_id, year_week).
var Progress = &Table[models.ExerciseProgress]{
	Name:    "exercise_progress",
	Columns: []string{"id", "user_id", "exercise_id", "year_week", "max_weight", "created_at", "sync_status"},
	values: func(p *models.ExerciseProgress) []any {
		return []any{p.ID, p.UserID, p.ExerciseID, p.YearWeek, p.MaxWeight, formatTime(p.CreatedAt), string(p.SyncStatus)}
	},
	scan: func(r rowScanner) (*models.ExerciseProgress, error) {
		var p models.ExerciseProgress
		var createdAt, status string
		if err := r.Scan(&p.ID, &p.UserID, &p.ExerciseID, &p.YearWeek, &p.MaxWeight, &createdAt, &status); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		p.SyncStatus = models.SyncStatus(status)
		return &p, nil
	},
}

// tableNames lists every table, children before parents.
var tableNames = []string{
	Sets.Name,
	Sessions.Name,
	Progress.Name,
	ProgramRoutines.Name,
	Programs.Name,
	TemplateExercises.Name,
	Templates.Name,
	Substitutions.Name,
	Exercises.Name,
	Users.Name,
}

// PendingCounts returns the number of pending rows per table, omitting tables with none.
func (d *DB) PendingCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, name := range tableNames {
		var n int
		err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name+" WHERE sync_status = ?",
			string(models.StatusPending)).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("count pending %s: %w", name, err)
		}
		if n > 0 {
			counts[name] = n
		}
	}
	return counts, nil
}
