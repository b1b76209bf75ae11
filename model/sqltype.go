package model

import (
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the storage class of a mapped field, independent of any engine.
type Kind int

const (
	KindInvalid Kind = iota
	KindInteger
	KindBool
	KindReal
	KindText
	KindBlob
	KindTime
	KindUUID
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindInteger: "integer",
	KindBool:    "bool",
	KindReal:    "real",
	KindText:    "text",
	KindBlob:    "blob",
	KindTime:    "time",
	KindUUID:    "uuid",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// DataType returns the default SQL type name for the kind, as understood by SQLite.
func (k Kind) DataType() string {
	switch k {
	case KindInteger, KindBool:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText, KindUUID:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	case KindTime:
		return "DATETIME"
	}
	return ""
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	bytesType    = reflect.TypeFor[[]byte]()
	rawBytesType = reflect.TypeFor[sql.RawBytes]()
)

// nullables maps the database/sql wrapper types onto the kind they carry.
var nullables = map[reflect.Type]Kind{
	reflect.TypeFor[sql.NullString]():  KindText,
	reflect.TypeFor[sql.NullInt64]():   KindInteger,
	reflect.TypeFor[sql.NullInt32]():   KindInteger,
	reflect.TypeFor[sql.NullInt16]():   KindInteger,
	reflect.TypeFor[sql.NullByte]():    KindInteger,
	reflect.TypeFor[sql.NullFloat64](): KindReal,
	reflect.TypeFor[sql.NullBool]():    KindBool,
	reflect.TypeFor[sql.NullTime]():    KindTime,
	reflect.TypeFor[uuid.NullUUID]():   KindUUID,
}

// kindOf classifies a Go field type. nullable is true for pointers and the
// sql.Null family, which can carry NULL.
func kindOf(typ reflect.Type) (kind Kind, nullable bool) {
	if typ.Kind() == reflect.Ptr {
		k, _ := kindOf(typ.Elem())
		return k, true
	}
	if k, ok := nullables[typ]; ok {
		return k, true
	}
	// sql.Null[T]
	if typ.PkgPath() == "database/sql" && strings.HasPrefix(typ.Name(), "Null[") {
		if v, ok := typ.FieldByName("V"); ok {
			k, _ := kindOf(v.Type)
			return k, true
		}
	}

	switch typ {
	case timeType:
		return KindTime, false
	case uuidType:
		return KindUUID, false
	case bytesType, rawBytesType:
		return KindBlob, false
	}

	switch typ.Kind() {
	case reflect.Bool:
		return KindBool, false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger, false
	case reflect.Float32, reflect.Float64:
		return KindReal, false
	case reflect.String:
		return KindText, false
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return KindBlob, false
		}
	}
	return KindInvalid, false
}
