package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xstater/tablex/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteDialect binds inserts by name using ":Field" markers.
type sqliteDialect struct{}

func init() {
	d := &sqliteDialect{}
	Register("sqlite", d)
	Register("sqlite3", d)
}

func (d *sqliteDialect) Name() string {
	return "sqlite"
}

func (d *sqliteDialect) ColumnType(col *model.Column) string {
	return col.DataType
}

func (d *sqliteDialect) AutoIncrement() string {
	return "AUTOINCREMENT"
}

func (d *sqliteDialect) Placeholder(field string, _ int) string {
	return ":" + field
}

func (d *sqliteDialect) BindVar(int) string {
	return "?"
}

func (d *sqliteDialect) NamedArgs() bool {
	return true
}

func (d *sqliteDialect) Insert(c Conflict) (string, string, error) {
	switch c {
	case ConflictNone:
		return "INSERT", "", nil
	case ConflictRollback, ConflictAbort, ConflictFail, ConflictIgnore, ConflictReplace:
		return "INSERT OR " + c.String(), "", nil
	}
	return "", "", fmt.Errorf("sqlite: conflict policy %d: %w", c, ErrUnsupported)
}

func (d *sqliteDialect) Returning() bool {
	return true
}

func (d *sqliteDialect) Literal(v any) string {
	return formatLiteral(v, "1", "0")
}

func (d *sqliteDialect) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?", []any{tableName}
}

func (d *sqliteDialect) Classify(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ViolationUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ViolationForeignKey
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return ViolationNotNull
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return ViolationCheck
		}
	}

	// other drivers report the same messages
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ViolationUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ViolationForeignKey
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return ViolationNotNull
	case strings.Contains(msg, "CHECK constraint failed"):
		return ViolationCheck
	}
	return ViolationNone
}
