// ABOUTME: User, Exercise and ExerciseSubstitution models.
// ABOUTME: Exercises with a nil UserID belong to the shared global catalog.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated identity. Only one row exists locally.
type User struct {
	ID            string
	Email         string
	DisplayName   string
	PreferredUnit Unit
	CreatedAt     time.Time
	SyncStatus    SyncStatus
}

// Exercise is a movement from the global catalog or a user's custom list.
type Exercise struct {
	ID          string
	UserID      *string // nil for global catalog rows
	Name        string
	MuscleGroup string
	Equipment   *string
	IsCustom    bool
	YoutubeURL  *string
	Notes       *string
	CreatedAt   time.Time
	SyncStatus  SyncStatus
}

// NewExercise creates a custom exercise owned by userID.
func NewExercise(userID, name, muscleGroup string) *Exercise {
	return &Exercise{
		ID:          uuid.NewString(),
		UserID:      &userID,
		Name:        name,
		MuscleGroup: muscleGroup,
		IsCustom:    true,
		CreatedAt:   time.Now().UTC(),
		SyncStatus:  StatusPending,
	}
}

// IsGlobal reports whether the exercise is part of the shared catalog.
func (e *Exercise) IsGlobal() bool {
	return e.UserID == nil
}

// ExerciseSubstitution is an entry of the legacy global substitute list.
// Lower priority values are preferred.
type ExerciseSubstitution struct {
	ID                   string
	ExerciseID           string
	SubstituteExerciseID string
	Priority             int
	SyncStatus           SyncStatus
}
