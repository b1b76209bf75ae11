package dialect

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/xstater/tablex/model"
)

// MySQL error numbers for constraint violations.
const (
	mysqlNotNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// MySQL dialect implementation
type mysqlDialect struct{}

func init() {
	Register("mysql", &mysqlDialect{})
}

func (d *mysqlDialect) Name() string {
	return "mysql"
}

func (d *mysqlDialect) ColumnType(col *model.Column) string {
	if col.Declared {
		return col.DataType
	}
	switch col.Kind {
	case model.KindInteger:
		if col.Type != nil && isWide(col.Type) {
			return "BIGINT"
		}
		return "INT"
	case model.KindBool:
		return "BOOLEAN"
	case model.KindReal:
		return "DOUBLE"
	case model.KindText:
		return "VARCHAR(255)"
	case model.KindBlob:
		return "BLOB"
	case model.KindTime:
		return "DATETIME"
	case model.KindUUID:
		return "CHAR(36)"
	}
	return col.DataType
}

func (d *mysqlDialect) AutoIncrement() string {
	return "AUTO_INCREMENT"
}

func (d *mysqlDialect) Placeholder(string, int) string {
	return "?"
}

func (d *mysqlDialect) BindVar(int) string {
	return "?"
}

func (d *mysqlDialect) NamedArgs() bool {
	return false
}

func (d *mysqlDialect) Insert(c Conflict) (string, string, error) {
	switch c {
	case ConflictNone, ConflictAbort:
		return "INSERT", "", nil
	case ConflictIgnore:
		return "INSERT IGNORE", "", nil
	case ConflictReplace:
		return "REPLACE", "", nil
	}
	return "", "", fmt.Errorf("mysql: conflict policy %s: %w", c, ErrUnsupported)
}

func (d *mysqlDialect) Returning() bool {
	return false
}

func (d *mysqlDialect) Literal(v any) string {
	return formatLiteral(v, "TRUE", "FALSE")
}

func (d *mysqlDialect) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{tableName}
}

func (d *mysqlDialect) Classify(err error) Violation {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return ViolationNone
	}
	switch myErr.Number {
	case mysqlDuplicateEntry:
		return ViolationUnique
	case mysqlForeignKeyParent, mysqlForeignKeyChild:
		return ViolationForeignKey
	case mysqlNotNull:
		return ViolationNotNull
	case mysqlCheckConstraintViolate:
		return ViolationCheck
	}
	return ViolationNone
}
