// Package tablex maps Go structs to database tables and runs typed,
// prepared statements against them.
//
// A record type derives its table from its fields and tablex struct tags:
//
//	type UserInfo struct {
//		ID       int64 `tablex:"pk;auto"`
//		UserName string
//		Age      int32
//	}
//
//	db, err := tablex.Open("sqlite", "app.db", nil)
//	_, err = tablex.Execute[tablex.Result](ctx, db, tablex.CreateTable[UserInfo](), nil)
//	u, err := tablex.Execute[UserInfo](ctx, db,
//		tablex.ReturningRow[UserInfo]().ExcludeAutoIncrement(), tablex.Named(&user))
package tablex

import (
	"context"

	"github.com/xstater/tablex/core"
	"github.com/xstater/tablex/model"
)

// Re-export core types and functions
type (
	DB             = core.DB
	Tx             = core.Tx
	Options        = core.Options
	Conn           = core.Conn
	Result         = core.Result
	Params         = core.Params
	Binding        = core.Binding
	Conflict       = core.Conflict
	StatementError = core.StatementError
	Migration      = core.Migration
	Migrator       = core.Migrator
	Middleware     = core.Middleware
	Call           = core.Call
	Handler        = core.Handler
)

// Re-export schema types
type (
	Table     = model.Table
	Column    = model.Column
	Reference = model.Reference
)

const (
	ConflictNone     = core.ConflictNone
	ConflictRollback = core.ConflictRollback
	ConflictAbort    = core.ConflictAbort
	ConflictFail     = core.ConflictFail
	ConflictIgnore   = core.ConflictIgnore
	ConflictReplace  = core.ConflictReplace
)

var (
	Open        = core.Open
	OpenDB      = core.OpenDB
	NewMigrator = core.NewMigrator

	Named      = core.Named
	Positional = core.Positional
	Raw        = core.Raw

	IsNotFound   = core.IsNotFound
	IsIntegrity  = core.IsIntegrity
	IsConflict   = core.IsConflict
	IsForeignKey = core.IsForeignKey

	ErrNotFound          = core.ErrNotFound
	ErrIntegrity         = core.ErrIntegrity
	ErrConflict          = core.ErrConflict
	ErrForeignKey        = core.ErrForeignKey
	ErrMissingParam      = core.ErrMissingParam
	ErrStatementExecuted = core.ErrStatementExecuted
	ErrUnsupported       = core.ErrUnsupported

	Register     = model.Register
	MustRegister = model.MustRegister
	Of           = model.Of
	Lookup       = model.Lookup
)

// For returns the table derived from T.
func For[T any]() (*Table, error) { return model.For[T]() }

// ValueRef reads the field of record described by col.
func ValueRef[T any](record any, col *Column) (T, bool) { return model.ValueRef[T](record, col) }

// ValueMut returns a pointer to the field of record described by col.
func ValueMut[T any](record any, col *Column) (*T, bool) { return model.ValueMut[T](record, col) }

func CreateTable[T any]() core.CreateTableBuilder[T]   { return core.CreateTable[T]() }
func DropTable[T any]() core.DropTableBuilder[T]       { return core.DropTable[T]() }
func InsertRow[T any]() core.InsertRowBuilder[T]       { return core.InsertRow[T]() }
func ReturningRow[T any]() core.ReturningRowBuilder[T] { return core.ReturningRow[T]() }
func SelectRows[T any]() core.SelectRowsBuilder[T]     { return core.SelectRows[T]() }
func Query[R any](query string) core.QueryBuilder[R]   { return core.Query[R](query) }

// Execute builds b on conn and runs it once.
func Execute[O any](ctx context.Context, conn Conn, b core.Builder[O], params Params) (O, error) {
	return core.Execute[O](ctx, conn, b, params)
}
