// ABOUTME: Store error taxonomy: not found, constraint violations and migration failures.
// ABOUTME: SQLite driver errors are classified here so callers only see these types.
package storage

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConstraintViolation matches every *ConstraintError via errors.Is.
var ErrConstraintViolation = errors.New("constraint violation")

// ConstraintError reports a uniqueness or other constraint failure, typically
// an Add of a primary key that already exists.
type ConstraintError struct {
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation on %s: %v", e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{ErrConstraintViolation, e.Err}
}

// MigrationError is fatal: the store refuses to open.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate to version %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// classify wraps driver constraint failures in a *ConstraintError.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return &ConstraintError{Table: table, Err: err}
	}
	return err
}
