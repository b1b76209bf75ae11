package dialect

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/xstater/tablex/model"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// PostgreSQL dialect implementation, shared by the lib/pq and pgx drivers.
type postgresDialect struct{}

func init() {
	d := &postgresDialect{}
	Register("postgres", d)
	Register("pgx", d)
}

func (d *postgresDialect) Name() string {
	return "postgres"
}

func (d *postgresDialect) ColumnType(col *model.Column) string {
	if col.Declared {
		return col.DataType
	}
	wide := col.Type != nil && isWide(col.Type)
	if col.AutoIncrement && col.Kind == model.KindInteger {
		// PostgreSQL uses SERIAL for auto-incrementing integer columns
		if wide {
			return "BIGSERIAL"
		}
		return "SERIAL"
	}
	switch col.Kind {
	case model.KindInteger:
		if wide {
			return "BIGINT"
		}
		return "INTEGER"
	case model.KindBool:
		return "BOOLEAN"
	case model.KindReal:
		return "DOUBLE PRECISION"
	case model.KindText:
		return "TEXT"
	case model.KindBlob:
		return "BYTEA"
	case model.KindTime:
		return "TIMESTAMP WITH TIME ZONE"
	case model.KindUUID:
		return "UUID"
	}
	return col.DataType
}

func (d *postgresDialect) AutoIncrement() string {
	return ""
}

func (d *postgresDialect) Placeholder(_ string, ordinal int) string {
	return fmt.Sprintf("$%d", ordinal)
}

func (d *postgresDialect) BindVar(ordinal int) string {
	return fmt.Sprintf("$%d", ordinal)
}

func (d *postgresDialect) NamedArgs() bool {
	return false
}

func (d *postgresDialect) Insert(c Conflict) (string, string, error) {
	switch c {
	case ConflictNone, ConflictAbort:
		return "INSERT", "", nil
	case ConflictIgnore:
		return "INSERT", "ON CONFLICT DO NOTHING", nil
	}
	return "", "", fmt.Errorf("postgres: conflict policy %s: %w", c, ErrUnsupported)
}

func (d *postgresDialect) Returning() bool {
	return true
}

func (d *postgresDialect) Literal(v any) string {
	return formatLiteral(v, "TRUE", "FALSE")
}

func (d *postgresDialect) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", []any{tableName}
}

func (d *postgresDialect) Classify(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	var code string
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return ViolationNone
	}
	switch code {
	case pgUniqueViolation:
		return ViolationUnique
	case pgForeignKeyViolation:
		return ViolationForeignKey
	case pgNotNullViolation:
		return ViolationNotNull
	case pgCheckViolation:
		return ViolationCheck
	}
	return ViolationNone
}

// isWide reports whether an integer field needs 64 bits.
func isWide(typ reflect.Type) bool {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	switch typ.Kind() {
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Struct:
		// sql.NullInt64 and friends
		return typ.Size() > 8
	}
	return false
}
