// ABOUTME: Tests for the versioned schema migrator.
// ABOUTME: Covers the v1 data transforms and idempotent re-runs of the whole chain.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedV1(t *testing.T, d *DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO exercises (id, user_id, name, muscle_group, is_custom, created_at, sync_status)
		 VALUES ('ex-1', NULL, 'Bench Press', 'chest', 0, '2024-01-01T00:00:00.000Z', 'synced')`,
		`INSERT INTO workout_templates (id, user_id, name, created_at, sync_status)
		 VALUES ('tmpl-1', 'user-1', 'Push Day', '2024-01-01T00:00:00.000Z', 'synced')`,
		`INSERT INTO template_exercises (id, template_id, exercise_id, week_type, sort_order, working_sets,
		   min_reps, max_reps, early_set_rpe_min, early_set_rpe_max, last_set_rpe_min, last_set_rpe_max,
		   rest_period, min_warmup_sets, max_warmup_sets, sync_status)
		 VALUES ('te-1', 'tmpl-1', 'ex-1', 'normal', 0, 3, 6, 10, 7, 8, 9, 10, '2-3 mins', 1, 3, 'synced')`,
		`INSERT INTO workout_sessions (id, user_id, template_id, year_week, week_type, started_at, sync_status)
		 VALUES ('sess-1', 'user-1', 'tmpl-1', '2024-01', 'normal', '2024-01-02T10:00:00.000Z', 'pending')`,
		`INSERT INTO exercise_progress (id, user_id, exercise_id, year_week, max_weight, warmup_weight_range,
		   warmup_sets_done, created_at, sync_status)
		 VALUES ('prog-1', 'user-1', 'ex-1', '2024-01', 80, '40-60', 2, '2024-01-02T11:00:00.000Z', 'synced')`,
	}
	for _, s := range stmts {
		_, err := d.db.Exec(s)
		require.NoError(t, err, s)
	}
}

// dumpState renders schema and every row so two stores can be compared.
func dumpState(t *testing.T, d *DB) string {
	t.Helper()
	var b strings.Builder

	rows, err := d.db.Query(`SELECT type, name, COALESCE(sql, '') FROM sqlite_master ORDER BY type, name`)
	require.NoError(t, err)
	for rows.Next() {
		var typ, name, sqlText string
		require.NoError(t, rows.Scan(&typ, &name, &sqlText))
		fmt.Fprintf(&b, "%s %s %s\n", typ, name, sqlText)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	for _, table := range tableNames {
		rows, err := d.db.Query("SELECT * FROM " + table + " ORDER BY id")
		require.NoError(t, err)
		cols, err := rows.Columns()
		require.NoError(t, err)
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			require.NoError(t, rows.Scan(ptrs...))
			fmt.Fprintf(&b, "%s %v\n", table, vals)
		}
		require.NoError(t, rows.Err())
		rows.Close()
	}
	return b.String()
}

func columnNames(t *testing.T, d *DB, table string) []string {
	t.Helper()
	rows, err := d.db.Query("SELECT name FROM pragma_table_info('" + table + "')")
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	return names
}

func TestMigrateFromV1TransformsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymtrack.db")
	ctx := context.Background()

	v1 := openAtVersion(t, path, 1)
	seedV1(t, v1)
	require.NoError(t, v1.Close())

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	te, err := Get(ctx, db, TemplateExercises, "te-1")
	require.NoError(t, err)
	assert.Equal(t, 3, te.WarmupSets, "warmup_sets takes max_warmup_sets")
	assert.Nil(t, te.ParentExerciseID)

	sess, err := Get(ctx, db, Sessions, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, sess.ProgramID)

	p, err := Get(ctx, db, Progress, "prog-1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, p.MaxWeight)

	teCols := columnNames(t, db, "template_exercises")
	assert.NotContains(t, teCols, "min_warmup_sets")
	assert.NotContains(t, teCols, "max_warmup_sets")
	assert.Contains(t, teCols, "warmup_sets")
	progressCols := columnNames(t, db, "exercise_progress")
	assert.NotContains(t, progressCols, "warmup_weight_range")
	assert.NotContains(t, progressCols, "warmup_sets_done")
	assert.Contains(t, columnNames(t, db, "workout_sessions"), "program_id")
}

func TestMigrationChainIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymtrack.db")
	ctx := context.Background()

	v1 := openAtVersion(t, path, 1)
	seedV1(t, v1)
	require.NoError(t, v1.Close())

	db, err := Open(path)
	require.NoError(t, err)
	once := dumpState(t, db)

	// Second run of the full chain against the migrated store.
	require.NoError(t, db.migrate(ctx, SchemaVersion()))
	assert.Equal(t, once, dumpState(t, db))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, once, dumpState(t, db))

	v, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion(), v)
}

func TestMigrationStepsAreOrdered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymtrack.db")

	d := openAtVersion(t, path, 2)
	defer d.Close()

	cols := columnNames(t, d, "template_exercises")
	assert.Contains(t, cols, "min_warmup_sets", "v2 still carries the warm-up range")
	assert.Contains(t, columnNames(t, d, "workout_sessions"), "program_id")
}
