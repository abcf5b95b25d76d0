// ABOUTME: Referential consistency check over the local store.
// ABOUTME: Finds dangling foreign keys, bad substitute parents and duplicate active rows.
package storage

import (
	"context"
	"fmt"
)

// Issue is one consistency problem found in the store.
type Issue struct {
	Table   string
	ID      string
	Problem string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Table, i.ID, i.Problem)
}

type consistencyCheck struct {
	table   string
	problem string
	query   string
}

var consistencyChecks = []consistencyCheck{
	{"exercise_substitutions", "exercise missing",
		`SELECT s.id FROM exercise_substitutions s LEFT JOIN exercises e ON e.id = s.exercise_id WHERE e.id IS NULL`},
	{"exercise_substitutions", "substitute exercise missing",
		`SELECT s.id FROM exercise_substitutions s LEFT JOIN exercises e ON e.id = s.substitute_exercise_id WHERE e.id IS NULL`},
	{"template_exercises", "template missing",
		`SELECT te.id FROM template_exercises te LEFT JOIN workout_templates t ON t.id = te.template_id WHERE t.id IS NULL`},
	{"template_exercises", "exercise missing",
		`SELECT te.id FROM template_exercises te LEFT JOIN exercises e ON e.id = te.exercise_id WHERE e.id IS NULL`},
	{"template_exercises", "substitute parent missing or not a main prescription of the same template",
		`SELECT te.id FROM template_exercises te
		 LEFT JOIN template_exercises p ON p.id = te.parent_exercise_id
		   AND p.template_id = te.template_id AND p.parent_exercise_id IS NULL
		 WHERE te.parent_exercise_id IS NOT NULL AND p.id IS NULL`},
	{"program_routines", "program missing",
		`SELECT r.id FROM program_routines r LEFT JOIN programs p ON p.id = r.program_id WHERE p.id IS NULL`},
	{"program_routines", "template missing",
		`SELECT r.id FROM program_routines r LEFT JOIN workout_templates t ON t.id = r.template_id WHERE t.id IS NULL`},
	{"workout_sessions", "template missing",
		`SELECT s.id FROM workout_sessions s LEFT JOIN workout_templates t ON t.id = s.template_id
		 WHERE s.template_id IS NOT NULL AND t.id IS NULL`},
	{"workout_sessions", "program missing",
		`SELECT s.id FROM workout_sessions s LEFT JOIN programs p ON p.id = s.program_id
		 WHERE s.program_id IS NOT NULL AND p.id IS NULL`},
	{"workout_sessions", "more than one active session for user",
		`SELECT s.id FROM workout_sessions s WHERE s.finished_at IS NULL AND s.user_id IN (
		   SELECT user_id FROM workout_sessions WHERE finished_at IS NULL GROUP BY user_id HAVING COUNT(*) > 1)`},
	{"workout_sets", "session missing",
		`SELECT w.id FROM workout_sets w LEFT JOIN workout_sessions s ON s.id = w.session_id WHERE s.id IS NULL`},
	{"workout_sets", "exercise missing",
		`SELECT w.id FROM workout_sets w LEFT JOIN exercises e ON e.id = w.exercise_id WHERE e.id IS NULL`},
	{"exercise_progress", "exercise missing",
		`SELECT p.id FROM exercise_progress p LEFT JOIN exercises e ON e.id = p.exercise_id WHERE e.id IS NULL`},
	{"programs", "more than one active program for user",
		`SELECT p.id FROM programs p WHERE p.is_active = 1 AND p.user_id IN (
		   SELECT user_id FROM programs WHERE is_active = 1 GROUP BY user_id HAVING COUNT(*) > 1)`},
}

// CheckConsistency runs every check against one snapshot and returns the issues found.
func (d *DB) CheckConsistency(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	err := d.View(ctx, func(tx *Tx) error {
		for _, c := range consistencyChecks {
			rows, err := tx.QueryContext(ctx, c.query)
			if err != nil {
				return fmt.Errorf("check %s (%s): %w", c.table, c.problem, err)
			}
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return fmt.Errorf("scan %s id: %w", c.table, err)
				}
				issues = append(issues, Issue{Table: c.table, ID: id, Problem: c.problem})
			}
			err = rows.Err()
			rows.Close()
			if err != nil {
				return fmt.Errorf("check %s: %w", c.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}
