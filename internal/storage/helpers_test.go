// ABOUTME: Shared fixtures for storage tests.
// ABOUTME: Opens throwaway databases and seeds a minimal exercise/template/session graph.
package storage

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gymtracker/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "gymtrack.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// openAtVersion opens a raw database migrated only up to version.
func openAtVersion(t *testing.T, path string, version int) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := &DB{db: sqlDB, dbPath: path, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if err := d.migrate(context.Background(), version); err != nil {
		t.Fatalf("migrate to %d: %v", version, err)
	}
	return d
}

func strp(s string) *string { return &s }

func newExercise(name string) *models.Exercise {
	return &models.Exercise{
		ID:          uuid.NewString(),
		Name:        name,
		MuscleGroup: "chest",
		CreatedAt:   time.Now().UTC(),
		SyncStatus:  models.StatusSynced,
	}
}

func newTemplate(userID, name string) *models.WorkoutTemplate {
	return &models.WorkoutTemplate{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		SyncStatus: models.StatusPending,
	}
}

func newTemplateExercise(templateID, exerciseID string, wt models.WeekType) *models.TemplateExercise {
	return &models.TemplateExercise{
		ID:           uuid.NewString(),
		TemplateID:   templateID,
		ExerciseID:   exerciseID,
		WeekType:     wt,
		Prescription: models.DefaultPrescription(),
		SyncStatus:   models.StatusPending,
	}
}

func mustPut[T any](t *testing.T, db *DB, table *Table[T], v *T) {
	t.Helper()
	if err := Put(context.Background(), db, table, v); err != nil {
		t.Fatalf("put %s: %v", table.Name, err)
	}
}
