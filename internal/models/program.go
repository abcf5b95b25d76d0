// ABOUTME: Program and ProgramRoutine models with the pure rotation arithmetic.
// ABOUTME: AdvanceRoutine and WeekIndicator are shared by the workout and program flows.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Program is a multi-week rotation of templates with periodic deload weeks.
type Program struct {
	ID                  string
	UserID              string
	Name                string
	DeloadEveryNWeeks   int
	IsActive            bool
	StartedAt           *time.Time
	CurrentRoutineIndex int
	WeeksCompleted      int
	LastWorkoutAt       *time.Time
	CreatedAt           time.Time
	SyncStatus          SyncStatus
}

// ProgramRoutine points one program slot at a template.
type ProgramRoutine struct {
	ID         string
	ProgramID  string
	TemplateID string
	Order      int
	SyncStatus SyncStatus
}

// ProgramDraft is the builder input for creating or replacing a program.
type ProgramDraft struct {
	ID                string // empty for a new program
	Name              string
	DeloadEveryNWeeks int
	TemplateIDs       []string // routine order
}

// Validate checks the draft before any write happens.
func (d *ProgramDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", "program name is required")
	}
	if len(d.TemplateIDs) == 0 {
		return invalid("routines", "add at least one routine")
	}
	if d.DeloadEveryNWeeks < 1 {
		return invalid("deload_every_n_weeks", "must be at least 1")
	}
	for _, id := range d.TemplateIDs {
		if id == "" {
			return invalid("routines", "routine template is required")
		}
	}
	return nil
}

// AdvanceRoutine returns the routine index after completing the routine at
// index. When the rotation wraps back to zero, wrapped is true and the caller
// counts one more completed week.
func AdvanceRoutine(index, routineCount int) (next int, wrapped bool) {
	next = index + 1
	if next >= routineCount {
		return 0, true
	}
	return next, false
}

// WeekInfo describes where a program currently sits in its deload cycle.
type WeekInfo struct {
	IsDeload bool
	Week     int // 1-based position within the cycle
	Of       int
}

// WeekIndicator computes the deload-cycle position from completed weeks.
func WeekIndicator(weeksCompleted, deloadEvery int) WeekInfo {
	if deloadEvery < 1 {
		deloadEvery = 1
	}
	pos := weeksCompleted % deloadEvery
	return WeekInfo{
		IsDeload: pos == deloadEvery-1,
		Week:     pos + 1,
		Of:       deloadEvery,
	}
}

// WeekType returns the prescription set that applies this week.
func (w WeekInfo) WeekType() WeekType {
	if w.IsDeload {
		return WeekDeload
	}
	return WeekNormal
}

func (w WeekInfo) String() string {
	if w.IsDeload {
		return "DELOAD WEEK"
	}
	return fmt.Sprintf("Week %d of %d", w.Week, w.Of)
}
