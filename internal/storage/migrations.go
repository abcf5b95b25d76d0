// ABOUTME: Versioned schema definitions and upgrade transforms tracked by PRAGMA user_version.
// ABOUTME: Each version runs in one transaction; re-running against a current store is a no-op.
package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationStep is one DDL statement or data transform inside a version upgrade.
type migrationStep func(ctx context.Context, tx *sql.Tx) error

type migration struct {
	name  string
	steps []migrationStep
}

// exec returns a step running the given statements in order.
func exec(stmts ...string) migrationStep {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
		}
		return nil
	}
}

// migrations[i] upgrades the store from version i to version i+1.
var migrations = []migration{
	{
		name: "initial tables",
		steps: []migrationStep{exec(
			`CREATE TABLE users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				display_name TEXT NOT NULL,
				preferred_unit TEXT NOT NULL DEFAULT 'kg',
				created_at TEXT NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE exercises (
				id TEXT PRIMARY KEY,
				user_id TEXT,
				name TEXT NOT NULL,
				muscle_group TEXT NOT NULL,
				equipment TEXT,
				is_custom INTEGER NOT NULL DEFAULT 0,
				youtube_url TEXT,
				notes TEXT,
				created_at TEXT NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE exercise_substitutions (
				id TEXT PRIMARY KEY,
				exercise_id TEXT NOT NULL,
				substitute_exercise_id TEXT NOT NULL,
				priority INTEGER NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE workout_templates (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at TEXT NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE template_exercises (
				id TEXT PRIMARY KEY,
				template_id TEXT NOT NULL,
				exercise_id TEXT NOT NULL,
				week_type TEXT NOT NULL,
				sort_order INTEGER NOT NULL,
				working_sets INTEGER NOT NULL,
				min_reps INTEGER NOT NULL,
				max_reps INTEGER NOT NULL,
				early_set_rpe_min REAL NOT NULL,
				early_set_rpe_max REAL NOT NULL,
				last_set_rpe_min REAL NOT NULL,
				last_set_rpe_max REAL NOT NULL,
				rest_period TEXT NOT NULL,
				intensity_technique TEXT,
				min_warmup_sets INTEGER NOT NULL DEFAULT 0,
				max_warmup_sets INTEGER NOT NULL DEFAULT 0,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE workout_sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				template_id TEXT,
				year_week TEXT,
				week_type TEXT NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT,
				notes TEXT,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE workout_sets (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				exercise_id TEXT NOT NULL,
				set_type TEXT NOT NULL,
				set_number INTEGER NOT NULL,
				reps INTEGER NOT NULL,
				weight REAL NOT NULL,
				rpe REAL,
				notes TEXT,
				created_at TEXT NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE exercise_progress (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				exercise_id TEXT NOT NULL,
				year_week TEXT NOT NULL,
				max_weight REAL NOT NULL,
				warmup_weight_range TEXT,
				warmup_sets_done INTEGER,
				created_at TEXT NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE INDEX idx_users_sync ON users(sync_status)`,
			`CREATE INDEX idx_exercises_user ON exercises(user_id)`,
			`CREATE INDEX idx_exercises_muscle ON exercises(muscle_group)`,
			`CREATE INDEX idx_exercises_sync ON exercises(sync_status)`,
			`CREATE INDEX idx_substitutions_exercise ON exercise_substitutions(exercise_id)`,
			`CREATE INDEX idx_substitutions_substitute ON exercise_substitutions(substitute_exercise_id)`,
			`CREATE INDEX idx_templates_user ON workout_templates(user_id)`,
			`CREATE INDEX idx_templates_sync ON workout_templates(sync_status)`,
			`CREATE INDEX idx_template_exercises_template ON template_exercises(template_id)`,
			`CREATE INDEX idx_template_exercises_exercise ON template_exercises(exercise_id)`,
			`CREATE INDEX idx_template_exercises_sync ON template_exercises(sync_status)`,
			`CREATE INDEX idx_sessions_user ON workout_sessions(user_id)`,
			`CREATE INDEX idx_sessions_template ON workout_sessions(template_id)`,
			`CREATE INDEX idx_sessions_year_week ON workout_sessions(year_week)`,
			`CREATE INDEX idx_sessions_sync ON workout_sessions(sync_status)`,
			`CREATE INDEX idx_sets_session ON workout_sets(session_id)`,
			`CREATE INDEX idx_sets_exercise ON workout_sets(exercise_id)`,
			`CREATE INDEX idx_sets_sync ON workout_sets(sync_status)`,
			`CREATE UNIQUE INDEX idx_progress_user_exercise_week ON exercise_progress(user_id, exercise_id, year_week)`,
			`CREATE INDEX idx_progress_sync ON exercise_progress(sync_status)`,
		)},
	},
	{
		name: "programs",
		steps: []migrationStep{exec(
			`CREATE TABLE programs (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				deload_every_n_weeks INTEGER NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 0,
				started_at TEXT,
				current_routine_index INTEGER NOT NULL DEFAULT 0,
				weeks_completed INTEGER NOT NULL DEFAULT 0,
				last_workout_at TEXT,
				created_at TEXT NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE TABLE program_routines (
				id TEXT PRIMARY KEY,
				program_id TEXT NOT NULL,
				template_id TEXT NOT NULL,
				sort_order INTEGER NOT NULL,
				sync_status TEXT NOT NULL
			)`,
			`CREATE INDEX idx_programs_user ON programs(user_id)`,
			`CREATE INDEX idx_programs_active ON programs(user_id, is_active)`,
			`CREATE INDEX idx_programs_sync ON programs(sync_status)`,
			`CREATE INDEX idx_routines_program ON program_routines(program_id)`,
			`CREATE INDEX idx_routines_template ON program_routines(template_id)`,
			`CREATE INDEX idx_routines_sync ON program_routines(sync_status)`,
			// Existing sessions get a null program_id.
			`ALTER TABLE workout_sessions ADD COLUMN program_id TEXT`,
			`CREATE INDEX idx_sessions_program ON workout_sessions(program_id)`,
		)},
	},
	{
		name: "single warm-up count and substitute prescriptions",
		steps: []migrationStep{
			exec(
				`ALTER TABLE template_exercises ADD COLUMN warmup_sets INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE template_exercises ADD COLUMN parent_exercise_id TEXT`,
			),
			exec(`UPDATE template_exercises SET warmup_sets = max_warmup_sets`),
			exec(
				`ALTER TABLE template_exercises DROP COLUMN min_warmup_sets`,
				`ALTER TABLE template_exercises DROP COLUMN max_warmup_sets`,
				`ALTER TABLE exercise_progress DROP COLUMN warmup_weight_range`,
				`ALTER TABLE exercise_progress DROP COLUMN warmup_sets_done`,
				`CREATE INDEX idx_template_exercises_parent ON template_exercises(parent_exercise_id)`,
			),
		},
	},
}

// SchemaVersion is the version a freshly migrated store reports.
func SchemaVersion() int {
	return len(migrations)
}

// Version returns the on-disk schema version.
func (d *DB) Version(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate brings the store up to target, one version per transaction.
func (d *DB) migrate(ctx context.Context, target int) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	current, err := d.Version(ctx)
	if err != nil {
		return &MigrationError{Version: target, Name: "read version", Err: err}
	}
	if current > len(migrations) {
		return &MigrationError{
			Version: current,
			Name:    "unknown",
			Err:     fmt.Errorf("store version %d is newer than supported version %d", current, len(migrations)),
		}
	}

	for v := current; v < target; v++ {
		m := migrations[v]
		if err := d.applyMigration(ctx, v+1, m); err != nil {
			return &MigrationError{Version: v + 1, Name: m.name, Err: err}
		}
		d.logger.Info("applied schema migration", "version", v+1, "name", m.name)
	}
	return nil
}

func (d *DB) applyMigration(ctx context.Context, version int, m migration) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, step := range m.steps {
		if err := step(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}
