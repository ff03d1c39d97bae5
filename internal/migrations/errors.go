package migrations

import (
	"fmt"
	"strings"
)

// Kind classifies a migration error.
type Kind string

const (
	ErrIO                        Kind = "io"
	ErrParse                     Kind = "parse"
	ErrDuplicateID               Kind = "duplicate_id"
	ErrDanglingReference         Kind = "dangling_reference"
	ErrBranchingDetected         Kind = "branching_detected"
	ErrCycleDetected             Kind = "cycle_detected"
	ErrMissingDependency         Kind = "missing_dependency"
	ErrNoInitialMigration        Kind = "no_initial_migration"
	ErrMultipleInitialMigrations Kind = "multiple_initial_migrations"
	ErrAmbiguousInitialMigration Kind = "ambiguous_initial_migration"
	ErrInvalidInitialMigration   Kind = "invalid_initial_migration"
	ErrInvalidMigrationName      Kind = "invalid_migration_name"
	ErrUnknownAnnotationValue    Kind = "unknown_annotation_value"
	ErrOrphanedMigration         Kind = "orphaned_migration"
)

// Error is the single error type of the migration subsystem. Kind is always
// set; the remaining fields carry whatever context the kind calls for
// (offending file and key for parse errors, record id for graph errors, the
// traversal path for cycles).
type Error struct {
	Kind     Kind
	File     string
	Key      string
	Expected string
	ID       string
	Path     []string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.File != "" {
		fmt.Fprintf(&b, " in %s", e.File)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if e.Expected != "" {
		fmt.Fprintf(&b, " (expected %s)", e.Expected)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, ": migration %q", e.ID)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Path, " -> "))
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so callers can compare against a bare
// &Error{Kind: ...} sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether err is a migration *Error of the given kind.
func IsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == k
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func ioError(file, message string, cause error) *Error {
	return &Error{Kind: ErrIO, File: file, Message: message, Cause: cause}
}

func parseError(file, key, expected string) *Error {
	return &Error{Kind: ErrParse, File: file, Key: key, Expected: expected}
}
