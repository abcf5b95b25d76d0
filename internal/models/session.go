// ABOUTME: WorkoutSession, WorkoutSet and ExerciseProgress models.
// ABOUTME: Includes YearWeek, the bucket key used for weekly progress rows.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkoutSession is one performed workout. A nil FinishedAt marks the active session.
type WorkoutSession struct {
	ID         string
	UserID     string
	TemplateID *string
	YearWeek   *string
	WeekType   WeekType
	StartedAt  time.Time
	FinishedAt *time.Time
	Notes      *string
	ProgramID  *string
	SyncStatus SyncStatus
}

// NewWorkoutSession creates a pending, active session stamped with the year-week
// of now in now's location. StartedAt is stored in UTC.
func NewWorkoutSession(userID string, weekType WeekType, now time.Time) *WorkoutSession {
	yw := YearWeek(now)
	return &WorkoutSession{
		ID:         uuid.NewString(),
		UserID:     userID,
		YearWeek:   &yw,
		WeekType:   weekType,
		StartedAt:  now.UTC(),
		SyncStatus: StatusPending,
	}
}

// IsActive reports whether the session has not been finished.
func (s *WorkoutSession) IsActive() bool {
	return s.FinishedAt == nil
}

// WorkoutSet is a single logged set. Sets are append-only within a session.
type WorkoutSet struct {
	ID         string
	SessionID  string
	ExerciseID string
	SetType    SetType
	SetNumber  int
	Reps       int
	Weight     float64
	RPE        *float64
	Notes      *string
	CreatedAt  time.Time
	SyncStatus SyncStatus
}

// NewWorkoutSet creates a pending set.
func NewWorkoutSet(sessionID, exerciseID string, setType SetType, number, reps int, weight float64) *WorkoutSet {
	return &WorkoutSet{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		ExerciseID: exerciseID,
		SetType:    setType,
		SetNumber:  number,
		Reps:       reps,
		Weight:     weight,
		CreatedAt:  time.Now().UTC(),
		SyncStatus: StatusPending,
	}
}

// WithRPE sets the rate of perceived exertion.
func (s *WorkoutSet) WithRPE(rpe float64) *WorkoutSet {
	s.RPE = &rpe
	return s
}

// WithNotes sets notes on the set.
func (s *WorkoutSet) WithNotes(notes string) *WorkoutSet {
	s.Notes = &notes
	return s
}

// Validate checks logged values.
func (s *WorkoutSet) Validate() error {
	switch {
	case s.SetNumber < 1:
		return invalid("set_number", "must be at least 1")
	case s.Reps < 0:
		return invalid("reps", "must not be negative")
	case s.Weight < 0:
		return invalid("weight", "must not be negative")
	case s.RPE != nil && (*s.RPE < 1 || *s.RPE > 10):
		return invalid("rpe", "must be between 1 and 10")
	}
	return nil
}

// ExerciseProgress is the running maximum working weight for an exercise in one week.
type ExerciseProgress struct {
	ID         string
	UserID     string
	ExerciseID string
	YearWeek   string
	MaxWeight  float64
	CreatedAt  time.Time
	SyncStatus SyncStatus
}

// YearWeek formats t as "YYYY-WW" where WW is ceil(dayOfYear/7), zero padded.
// The date is taken in t's own location.
func YearWeek(t time.Time) string {
	week := (t.YearDay() + 6) / 7
	return fmt.Sprintf("%d-%02d", t.Year(), week)
}
