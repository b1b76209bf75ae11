package dialect

import (
	"errors"
	"sync"

	"github.com/xstater/tablex/model"
)

// ErrUnsupported is returned when a dialect cannot express a requested clause.
var ErrUnsupported = errors.New("not supported by dialect")

// Dialect represents the interface for database-specific SQL generation and type mapping.
// Each database (SQLite, PostgreSQL, MySQL) must implement this interface to be supported.
type Dialect interface {
	// Name returns the canonical dialect name.
	Name() string
	// ColumnType returns the SQL type used for the column in CREATE TABLE.
	ColumnType(col *model.Column) string
	// AutoIncrement returns the column keyword for auto-increment columns, or "".
	AutoIncrement() string
	// Placeholder returns the INSERT bind marker for a field at the given 1-based position.
	Placeholder(field string, ordinal int) string
	// BindVar returns the positional bind marker for the given 1-based position.
	BindVar(ordinal int) string
	// NamedArgs reports whether placeholders are bound by name.
	NamedArgs() bool
	// Insert returns the statement head ("INSERT OR IGNORE") and an optional
	// trailing clause for the given conflict policy.
	Insert(c Conflict) (head, tail string, err error)
	// Returning reports whether INSERT ... RETURNING is available.
	Returning() bool
	// Literal renders v as an SQL literal for diagnostics.
	Literal(v any) string
	// HasTableSQL generates the SQL to check if a table exists
	HasTableSQL(tableName string) (string, []any)
	// Classify maps an engine error to the constraint it violated.
	Classify(err error) Violation
}

// Violation is the kind of constraint an engine error reports.
type Violation int

const (
	ViolationNone Violation = iota
	ViolationUnique
	ViolationForeignKey
	ViolationNotNull
	ViolationCheck
)

func (v Violation) String() string {
	switch v {
	case ViolationUnique:
		return "unique"
	case ViolationForeignKey:
		return "foreign key"
	case ViolationNotNull:
		return "not null"
	case ViolationCheck:
		return "check"
	}
	return "none"
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}
