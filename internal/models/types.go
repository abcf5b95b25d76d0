// ABOUTME: Enumerations shared by every gym entity (sync status, week type, set type, unit).
// ABOUTME: Parse helpers normalize user and wire input into the typed constants.
package models

import (
	"fmt"
	"strings"
)

// SyncStatus records whether a local row is confirmed durable on the server.
type SyncStatus string

const (
	// StatusPending means the row exists locally but the server has not confirmed it.
	StatusPending SyncStatus = "pending"
	// StatusSynced means the row's last known state matches the server.
	StatusSynced SyncStatus = "synced"
)

// WeekType selects which prescription set of a template applies.
type WeekType string

const (
	WeekNormal WeekType = "normal"
	WeekDeload WeekType = "deload"
)

// ParseWeekType converts a string into a WeekType.
func ParseWeekType(s string) (WeekType, error) {
	switch WeekType(strings.ToLower(strings.TrimSpace(s))) {
	case WeekNormal:
		return WeekNormal, nil
	case WeekDeload:
		return WeekDeload, nil
	}
	return "", &ValidationError{Field: "week_type", Message: fmt.Sprintf("unknown week type %q (use normal or deload)", s)}
}

// SetType distinguishes warm-up sets from working sets.
type SetType string

const (
	SetWarmup  SetType = "warmup"
	SetWorking SetType = "working"
)

// ParseSetType converts a string into a SetType.
func ParseSetType(s string) (SetType, error) {
	switch SetType(strings.ToLower(strings.TrimSpace(s))) {
	case SetWarmup:
		return SetWarmup, nil
	case SetWorking:
		return SetWorking, nil
	}
	return "", &ValidationError{Field: "set_type", Message: fmt.Sprintf("unknown set type %q (use warmup or working)", s)}
}

// Unit is the user's preferred weight unit.
type Unit string

const (
	UnitKg  Unit = "kg"
	UnitLbs Unit = "lbs"
)

// ParseUnit converts a string into a Unit.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitKg:
		return UnitKg, nil
	case UnitLbs, "lb":
		return UnitLbs, nil
	}
	return "", &ValidationError{Field: "preferred_unit", Message: fmt.Sprintf("unknown unit %q (use kg or lbs)", s)}
}
