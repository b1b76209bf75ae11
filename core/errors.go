package core

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/xstater/tablex/dialect"
)

var (
	// ErrNotFound is returned when a statement expects a row but none were produced.
	ErrNotFound = errors.New("record not found")
	// ErrIntegrity is returned when a single-row statement produces more than one row.
	ErrIntegrity = errors.New("more than one row returned")
	// ErrConflict is returned when a database unique, not-null or check constraint is violated.
	ErrConflict = errors.New("constraint conflict")
	// ErrForeignKey is returned when a database foreign key constraint is violated.
	ErrForeignKey = errors.New("foreign key constraint")
	// ErrMissingParam is returned when a placeholder has no bound value.
	ErrMissingParam = errors.New("missing parameter")
	// ErrStatementExecuted is returned when a statement is executed twice or after Close.
	ErrStatementExecuted = errors.New("statement already executed")
	// ErrUnknownDialect is returned by Open for a driver without a registered dialect.
	ErrUnknownDialect = errors.New("unknown dialect")
	// ErrInvalidSQL is returned when a raw SQL statement is empty.
	ErrInvalidSQL = errors.New("invalid sql")
	// ErrUnsupported is returned when the dialect cannot express a statement.
	ErrUnsupported = dialect.ErrUnsupported
)

// ErrKind classifies statement failures.
type ErrKind int

const (
	// KindEngine is an error passed through from the driver unchanged.
	KindEngine ErrKind = iota
	KindNotFound
	KindIntegrity
	KindConflict
	KindForeignKey
)

func (k ErrKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindIntegrity:
		return "integrity"
	case KindConflict:
		return "conflict"
	case KindForeignKey:
		return "foreign key"
	}
	return "engine"
}

func (k ErrKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindIntegrity:
		return ErrIntegrity
	case KindConflict:
		return ErrConflict
	case KindForeignKey:
		return ErrForeignKey
	}
	return nil
}

// StatementError carries the SQL text of a failed statement.
type StatementError struct {
	Kind ErrKind
	SQL  string
	Err  error
}

func (e *StatementError) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Kind != KindEngine && e.Err != nil {
		msg = e.Kind.String() + ": " + msg
	}
	if e.SQL == "" {
		return "tablex: " + msg
	}
	return fmt.Sprintf("tablex: %s [sql: %s]", msg, e.SQL)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *StatementError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// IsNotFound reports whether err means no row was produced.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrity reports whether err means more rows were produced than allowed.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsConflict reports whether err is a unique, not-null or check constraint violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsForeignKey reports whether err is a foreign key constraint violation.
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// wrapError attaches the SQL text to err and classifies constraint violations.
// Errors that are already classified are returned unchanged.
func wrapError(d dialect.Dialect, query string, err error) error {
	if err == nil {
		return nil
	}
	var se *StatementError
	if errors.As(err, &se) {
		return err
	}
	kind := KindEngine
	switch d.Classify(err) {
	case dialect.ViolationUnique, dialect.ViolationNotNull, dialect.ViolationCheck:
		kind = KindConflict
	case dialect.ViolationForeignKey:
		kind = KindForeignKey
	}
	return &StatementError{Kind: kind, SQL: query, Err: err}
}

func notFound(query string) error {
	return &StatementError{Kind: KindNotFound, SQL: query, Err: sql.ErrNoRows}
}

func tooManyRows(query string) error {
	return &StatementError{Kind: KindIntegrity, SQL: query, Err: errors.New("statement returned more than one row")}
}
