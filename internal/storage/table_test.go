// ABOUTME: Tests for the generic record operations.
// ABOUTME: Covers put vs add, atomic bulk writes, lazy queries, deletes and status flips.
package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gymtracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutReplacesAndAddRejectsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ex := newExercise("Bench Press")
	ex.Equipment = strp("barbell")
	require.NoError(t, Add(ctx, db, Exercises, ex))

	ex.Name = "Flat Bench Press"
	ex.Equipment = nil
	require.NoError(t, Put(ctx, db, Exercises, ex))

	got, err := Get(ctx, db, Exercises, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flat Bench Press", got.Name)
	assert.Nil(t, got.Equipment)

	err = Add(ctx, db, Exercises, ex)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "exercises", cerr.Table)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := Get(context.Background(), db, Sessions, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoundTripNullableFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	finished := started.Add(time.Hour)
	s := &models.WorkoutSession{
		ID:         uuid.NewString(),
		UserID:     "user-1",
		TemplateID: strp("tmpl-1"),
		YearWeek:   strp("2024-11"),
		WeekType:   models.WeekDeload,
		StartedAt:  started,
		FinishedAt: &finished,
		ProgramID:  strp("prog-1"),
		SyncStatus: models.StatusPending,
	}
	mustPut(t, db, Sessions, s)

	got, err := Get(ctx, db, Sessions, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WeekDeload, got.WeekType)
	assert.True(t, got.StartedAt.Equal(started))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(finished))
	assert.Nil(t, got.Notes)
	assert.Equal(t, "prog-1", *got.ProgramID)

	set := models.NewWorkoutSet(s.ID, "ex-1", models.SetWorking, 1, 8, 82.5).WithRPE(8.5)
	mustPut(t, db, Sets, set)
	gotSet, err := Get(ctx, db, Sets, set.ID)
	require.NoError(t, err)
	assert.Equal(t, 82.5, gotSet.Weight)
	require.NotNil(t, gotSet.RPE)
	assert.Equal(t, 8.5, *gotSet.RPE)

	p := &models.Program{ID: uuid.NewString(), UserID: "user-1", Name: "PPL", DeloadEveryNWeeks: 4,
		IsActive: true, CreatedAt: started, SyncStatus: models.StatusPending}
	mustPut(t, db, Programs, p)
	gotProgram, err := Get(ctx, db, Programs, p.ID)
	require.NoError(t, err)
	assert.True(t, gotProgram.IsActive)
	assert.Nil(t, gotProgram.StartedAt)
}

func TestBulkPutIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []*models.ExerciseProgress{
		{ID: "p1", UserID: "u", ExerciseID: "e", YearWeek: "2024-01", MaxWeight: 80, CreatedAt: now, SyncStatus: models.StatusSynced},
		{ID: "p2", UserID: "u", ExerciseID: "e", YearWeek: "2024-02", MaxWeight: 85, CreatedAt: now, SyncStatus: models.StatusSynced},
		// Same (user, exercise, year_week) as p1 under a different id.
		{ID: "p3", UserID: "u", ExerciseID: "e", YearWeek: "2024-01", MaxWeight: 90, CreatedAt: now, SyncStatus: models.StatusSynced},
	}

	err := BulkPut(ctx, db, Progress, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintViolation)

	n, err := Count(ctx, db, Progress)
	require.NoError(t, err)
	assert.Zero(t, n, "no rows may land when one fails")

	require.NoError(t, BulkPut(ctx, db, Progress, rows[:2]))
	n, err = Count(ctx, db, Progress)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueryClauses(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sessionID := uuid.NewString()
	for i, w := range []float64{60, 80, 100} {
		set := models.NewWorkoutSet(sessionID, "bench", models.SetWorking, i+1, 5, w)
		if i == 0 {
			set.SetType = models.SetWarmup
		}
		mustPut(t, db, Sets, set)
	}
	mustPut(t, db, Sets, models.NewWorkoutSet(uuid.NewString(), "bench", models.SetWorking, 1, 5, 120))

	working, err := Collect(ctx, db, Sets,
		Eq("session_id", sessionID), Eq("set_type", models.SetWorking), OrderBy("weight", true))
	require.NoError(t, err)
	require.Len(t, working, 2)
	assert.Equal(t, 100.0, working[0].Weight)
	assert.Equal(t, 80.0, working[1].Weight)

	some, err := Collect(ctx, db, Sets, In("set_number", []int{1}))
	require.NoError(t, err)
	assert.Len(t, some, 2)

	none, err := Collect(ctx, db, Sets, In("id", []string{}))
	require.NoError(t, err)
	assert.Empty(t, none)

	first, err := First(ctx, db, Sets, OrderBy("weight", true))
	require.NoError(t, err)
	assert.Equal(t, 120.0, first.Weight)

	_, err = Collect(ctx, db, Sets, Eq("weight; DROP TABLE workout_sets", 1))
	assert.Error(t, err, "unknown columns are rejected")
}

func TestQueryStopsEarly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustPut(t, db, Exercises, newExercise("Curl"))
	}

	seen := 0
	for ex, err := range Query(ctx, db, Exercises) {
		require.NoError(t, err)
		require.NotNil(t, ex)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// The connection is released after breaking out of the loop.
	n, err := Count(ctx, db, Exercises, Eq("name", "Curl"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestDeleteWhereAndSetStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tmpl := newTemplate("user-1", "Push")
	mustPut(t, db, Templates, tmpl)
	var ids []string
	for i := 0; i < 3; i++ {
		te := newTemplateExercise(tmpl.ID, "ex", models.WeekNormal)
		mustPut(t, db, TemplateExercises, te)
		ids = append(ids, te.ID)
	}
	mustPut(t, db, TemplateExercises, newTemplateExercise("other", "ex", models.WeekNormal))

	n, err := SetStatus(ctx, db, TemplateExercises, models.StatusSynced, ids[:2])
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	pending, err := Count(ctx, db, TemplateExercises, Eq("sync_status", models.StatusPending))
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	_, err = DeleteWhere(ctx, db, TemplateExercises)
	assert.Error(t, err, "unconditional delete is refused")

	deleted, err := DeleteWhere(ctx, db, TemplateExercises, Eq("template_id", tmpl.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	require.NoError(t, Delete(ctx, db, Templates, tmpl.ID))
	_, err = Get(ctx, db, Templates, tmpl.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := newTemplate("u", "A")
	a.ID = "aaaa1111-0000-0000-0000-000000000000"
	b := newTemplate("u", "B")
	b.ID = "aaaa2222-0000-0000-0000-000000000000"
	mustPut(t, db, Templates, a)
	mustPut(t, db, Templates, b)

	id, err := ResolveID(ctx, db, Templates, "aaaa1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, err = ResolveID(ctx, db, Templates, "aaaa")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = ResolveID(ctx, db, Templates, "ffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveIDMatchesLiterally(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	under := newTemplate("u", "Under")
	under.ID = "ab_c-1"
	plain := newTemplate("u", "Plain")
	plain.ID = "abxc-2"
	mustPut(t, db, Templates, under)
	mustPut(t, db, Templates, plain)

	id, err := ResolveID(ctx, db, Templates, "ab_")
	require.NoError(t, err)
	assert.Equal(t, under.ID, id)

	_, err = ResolveID(ctx, db, Templates, "%")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ResolveID(ctx, db, Templates, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
