// ABOUTME: Tests for the referential consistency check.
// ABOUTME: Seeds dangling references and checks each one is reported.
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gymtracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConsistencyCleanStore(t *testing.T) {
	db := setupTestDB(t)

	ex := newExercise("Bench")
	mustPut(t, db, Exercises, ex)
	tmpl := newTemplate("u", "Push")
	mustPut(t, db, Templates, tmpl)
	main := newTemplateExercise(tmpl.ID, ex.ID, models.WeekNormal)
	mustPut(t, db, TemplateExercises, main)
	sub := newTemplateExercise(tmpl.ID, ex.ID, models.WeekNormal)
	sub.ParentExerciseID = &main.ID
	mustPut(t, db, TemplateExercises, sub)

	issues, err := db.CheckConsistency(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestCheckConsistencyFindsProblems(t *testing.T) {
	db := setupTestDB(t)

	ex := newExercise("Bench")
	mustPut(t, db, Exercises, ex)

	// Template exercise whose template is gone.
	orphan := newTemplateExercise("missing-template", ex.ID, models.WeekNormal)
	mustPut(t, db, TemplateExercises, orphan)

	// Substitute whose parent is itself a substitute.
	tmpl := newTemplate("u", "Push")
	mustPut(t, db, Templates, tmpl)
	main := newTemplateExercise(tmpl.ID, ex.ID, models.WeekNormal)
	mustPut(t, db, TemplateExercises, main)
	sub := newTemplateExercise(tmpl.ID, ex.ID, models.WeekNormal)
	sub.ParentExerciseID = &main.ID
	mustPut(t, db, TemplateExercises, sub)
	subOfSub := newTemplateExercise(tmpl.ID, ex.ID, models.WeekNormal)
	subOfSub.ParentExerciseID = &sub.ID
	mustPut(t, db, TemplateExercises, subOfSub)

	// Set referencing a missing session, and two active sessions.
	mustPut(t, db, Sets, models.NewWorkoutSet("missing-session", ex.ID, models.SetWorking, 1, 5, 100))
	for i := 0; i < 2; i++ {
		mustPut(t, db, Sessions, &models.WorkoutSession{
			ID: uuid.NewString(), UserID: "u", WeekType: models.WeekNormal,
			StartedAt: time.Now().UTC(), SyncStatus: models.StatusPending,
		})
	}

	issues, err := db.CheckConsistency(context.Background())
	require.NoError(t, err)

	found := map[string]bool{}
	for _, i := range issues {
		found[i.Table+": "+i.Problem] = true
	}
	assert.True(t, found["template_exercises: template missing"])
	assert.True(t, found["template_exercises: substitute parent missing or not a main prescription of the same template"])
	assert.True(t, found["workout_sets: session missing"])
	assert.True(t, found["workout_sessions: more than one active session for user"])
	assert.Len(t, issues, 5)
}
