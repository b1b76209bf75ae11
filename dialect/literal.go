package dialect

import (
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// formatLiteral renders v the way it would appear if written inline in SQL.
func formatLiteral(v any, trueLit, falseLit string) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case sql.NamedArg:
		return formatLiteral(x.Value, trueLit, falseLit)
	case string:
		return quote(x)
	case []byte:
		if x == nil {
			return "NULL"
		}
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case bool:
		if x {
			return trueLit
		}
		return falseLit
	case time.Time:
		return quote(x.Format("2006-01-02 15:04:05.999999999-07:00"))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case driver.Valuer:
		rv := reflect.ValueOf(x)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "NULL"
		}
		dv, err := x.Value()
		if err != nil {
			return "NULL"
		}
		return formatLiteral(dv, trueLit, falseLit)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "NULL"
		}
		return formatLiteral(rv.Elem().Interface(), trueLit, falseLit)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Bool:
		return formatLiteral(rv.Bool(), trueLit, falseLit)
	case reflect.String:
		return quote(rv.String())
	}
	if s, ok := v.(fmt.Stringer); ok {
		return quote(s.String())
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
