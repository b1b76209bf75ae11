package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xstater/tablex/dialect"
	"github.com/xstater/tablex/model"
)

// Conflict is the policy applied when an INSERT violates a constraint.
type Conflict = dialect.Conflict

const (
	ConflictNone     = dialect.ConflictNone
	ConflictRollback = dialect.ConflictRollback
	ConflictAbort    = dialect.ConflictAbort
	ConflictFail     = dialect.ConflictFail
	ConflictIgnore   = dialect.ConflictIgnore
	ConflictReplace  = dialect.ConflictReplace
)

var sbPool = sync.Pool{
	New: func() any {
		return new(strings.Builder)
	},
}

func getBuilder() *strings.Builder {
	sb := sbPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

func putBuilder(sb *strings.Builder) {
	sbPool.Put(sb)
}

// CreateTableBuilder emits CREATE TABLE for the table of T.
type CreateTableBuilder[T any] struct {
	ifNotExists bool
}

// CreateTable returns a builder for the table of T.
func CreateTable[T any]() CreateTableBuilder[T] {
	return CreateTableBuilder[T]{}
}

// IfNotExists adds IF NOT EXISTS.
func (b CreateTableBuilder[T]) IfNotExists() CreateTableBuilder[T] {
	b.ifNotExists = true
	return b
}

// SQL renders the statement for d.
func (b CreateTableBuilder[T]) SQL(d dialect.Dialect) (string, error) {
	table, err := model.For[T]()
	if err != nil {
		return "", err
	}
	return createTableSQL(d, table, b.ifNotExists)
}

func (b CreateTableBuilder[T]) Build(ctx context.Context, conn Conn, _ Params) (*Statement[Result], error) {
	table, err := model.For[T]()
	if err != nil {
		return nil, err
	}
	query, err := createTableSQL(conn.Dialect(), table, b.ifNotExists)
	if err != nil {
		return nil, err
	}
	return prepare[Result](ctx, conn, OpExec, table, query, nil, execRun)
}

// createTableSQL writes each column as
// name type [PRIMARY KEY] [AUTOINCREMENT] [UNIQUE] [NOT NULL] [REFERENCES t(c)].
func createTableSQL(d dialect.Dialect, table *model.Table, ifNotExists bool) (string, error) {
	sb := getBuilder()
	defer putBuilder(sb)

	sb.WriteString("CREATE TABLE ")
	if ifNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(table.Name)
	sb.WriteString(" (")
	for i, col := range table.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		sb.WriteByte(' ')
		sb.WriteString(d.ColumnType(col))
		if col.Primary {
			sb.WriteString(" PRIMARY KEY")
		}
		if col.AutoIncrement {
			if kw := d.AutoIncrement(); kw != "" {
				sb.WriteByte(' ')
				sb.WriteString(kw)
			}
		}
		if col.Unique {
			sb.WriteString(" UNIQUE")
		}
		if col.NotNull {
			sb.WriteString(" NOT NULL")
		}
		ref, err := col.ResolveReference()
		if err != nil {
			return "", err
		}
		if ref != nil {
			fmt.Fprintf(sb, " REFERENCES %s(%s)", ref.Table.Name, ref.Column.Name)
		}
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// DropTableBuilder emits DROP TABLE for the table of T.
type DropTableBuilder[T any] struct {
	ifExists bool
}

// DropTable returns a builder for the table of T.
func DropTable[T any]() DropTableBuilder[T] {
	return DropTableBuilder[T]{}
}

// IfExists adds IF EXISTS.
func (b DropTableBuilder[T]) IfExists() DropTableBuilder[T] {
	b.ifExists = true
	return b
}

func (b DropTableBuilder[T]) SQL(_ dialect.Dialect) (string, error) {
	table, err := model.For[T]()
	if err != nil {
		return "", err
	}
	return dropTableSQL(table, b.ifExists), nil
}

func (b DropTableBuilder[T]) Build(ctx context.Context, conn Conn, _ Params) (*Statement[Result], error) {
	table, err := model.For[T]()
	if err != nil {
		return nil, err
	}
	return prepare[Result](ctx, conn, OpExec, table, dropTableSQL(table, b.ifExists), nil, execRun)
}

func dropTableSQL(table *model.Table, ifExists bool) string {
	if ifExists {
		return "DROP TABLE IF EXISTS " + table.Name
	}
	return "DROP TABLE " + table.Name
}

// InsertRowBuilder emits INSERT for one record of T. Values are bound from
// ":Field" keys of the params, usually Named(record).
type InsertRowBuilder[T any] struct {
	conflict    Conflict
	excludeAuto bool
}

// InsertRow returns a builder for the table of T.
func InsertRow[T any]() InsertRowBuilder[T] {
	return InsertRowBuilder[T]{}
}

// Or sets the conflict policy, rendered as INSERT OR <policy> on SQLite.
func (b InsertRowBuilder[T]) Or(c Conflict) InsertRowBuilder[T] {
	b.conflict = c
	return b
}

// ExcludeAutoIncrement leaves auto-increment columns out of the column list
// and the bound values so the engine assigns them.
func (b InsertRowBuilder[T]) ExcludeAutoIncrement() InsertRowBuilder[T] {
	b.excludeAuto = true
	return b
}

// Returning turns the insert into one that decodes the inserted row.
func (b InsertRowBuilder[T]) Returning() ReturningRowBuilder[T] {
	return ReturningRowBuilder[T]{insert: b}
}

func (b InsertRowBuilder[T]) columns(table *model.Table) []*model.Column {
	if !b.excludeAuto {
		return table.Columns
	}
	cols := make([]*model.Column, 0, len(table.Columns))
	for _, c := range table.Columns {
		if !c.AutoIncrement {
			cols = append(cols, c)
		}
	}
	return cols
}

func (b InsertRowBuilder[T]) SQL(d dialect.Dialect) (string, error) {
	table, err := model.For[T]()
	if err != nil {
		return "", err
	}
	return b.render(d, table, b.columns(table), false)
}

func (b InsertRowBuilder[T]) render(d dialect.Dialect, table *model.Table, cols []*model.Column, returning bool) (string, error) {
	head, tail, err := d.Insert(b.conflict)
	if err != nil {
		return "", err
	}
	if returning && !d.Returning() {
		return "", fmt.Errorf("%s: INSERT ... RETURNING: %w", d.Name(), ErrUnsupported)
	}

	sb := getBuilder()
	defer putBuilder(sb)

	sb.WriteString(head)
	sb.WriteString(" INTO ")
	sb.WriteString(table.Name)
	sb.WriteString(" (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
	}
	sb.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Placeholder(col.Field, i+1))
	}
	sb.WriteString(")")
	if tail != "" {
		sb.WriteByte(' ')
		sb.WriteString(tail)
	}
	if returning {
		sb.WriteString(" RETURNING *")
	}
	return sb.String(), nil
}

func (b InsertRowBuilder[T]) Build(ctx context.Context, conn Conn, params Params) (*Statement[Result], error) {
	table, err := model.For[T]()
	if err != nil {
		return nil, err
	}
	d := conn.Dialect()
	cols := b.columns(table)
	query, err := b.render(d, table, cols, false)
	if err != nil {
		return nil, err
	}
	args, err := columnArgs(d, cols, params)
	if err != nil {
		return nil, err
	}
	return prepare[Result](ctx, conn, OpExec, table, query, args, execRun)
}

// ReturningRowBuilder inserts one record and decodes exactly one returned row.
// No row is ErrNotFound, more than one is ErrIntegrity.
type ReturningRowBuilder[T any] struct {
	insert InsertRowBuilder[T]
}

// ReturningRow is shorthand for InsertRow[T]().Returning().
func ReturningRow[T any]() ReturningRowBuilder[T] {
	return InsertRow[T]().Returning()
}

func (b ReturningRowBuilder[T]) Or(c Conflict) ReturningRowBuilder[T] {
	b.insert = b.insert.Or(c)
	return b
}

func (b ReturningRowBuilder[T]) ExcludeAutoIncrement() ReturningRowBuilder[T] {
	b.insert = b.insert.ExcludeAutoIncrement()
	return b
}

func (b ReturningRowBuilder[T]) SQL(d dialect.Dialect) (string, error) {
	table, err := model.For[T]()
	if err != nil {
		return "", err
	}
	return b.insert.render(d, table, b.insert.columns(table), true)
}

func (b ReturningRowBuilder[T]) Build(ctx context.Context, conn Conn, params Params) (*Statement[T], error) {
	table, err := model.For[T]()
	if err != nil {
		return nil, err
	}
	d := conn.Dialect()
	cols := b.insert.columns(table)
	query, err := b.insert.render(d, table, cols, true)
	if err != nil {
		return nil, err
	}
	args, err := columnArgs(d, cols, params)
	if err != nil {
		return nil, err
	}
	return prepare[T](ctx, conn, OpReturning, table, query, args, returningRun[T])
}

// SelectRowsBuilder emits SELECT * for the table of T.
type SelectRowsBuilder[T any] struct {
	where string
}

// SelectRows returns a builder for the table of T.
func SelectRows[T any]() SelectRowsBuilder[T] {
	return SelectRowsBuilder[T]{}
}

// Where sets the WHERE clause. The fragment is inserted verbatim and must not
// carry untrusted input; pass values through params instead.
func (b SelectRowsBuilder[T]) Where(fragment string) SelectRowsBuilder[T] {
	b.where = fragment
	return b
}

func (b SelectRowsBuilder[T]) SQL(_ dialect.Dialect) (string, error) {
	table, err := model.For[T]()
	if err != nil {
		return "", err
	}
	return b.render(table), nil
}

func (b SelectRowsBuilder[T]) render(table *model.Table) string {
	if b.where == "" {
		return "SELECT * FROM " + table.Name
	}
	return "SELECT * FROM " + table.Name + " WHERE " + b.where
}

func (b SelectRowsBuilder[T]) Build(ctx context.Context, conn Conn, params Params) (*Statement[[]T], error) {
	table, err := model.For[T]()
	if err != nil {
		return nil, err
	}
	args, err := freeArgs(conn.Dialect(), params)
	if err != nil {
		return nil, err
	}
	return prepare[[]T](ctx, conn, OpQuery, table, b.render(table), args, queryRun[T])
}

// RawBuilder runs a caller-written statement for its side effects.
type RawBuilder struct {
	query string
}

// Raw returns a builder for query.
func Raw(query string) RawBuilder {
	return RawBuilder{query: query}
}

func (b RawBuilder) SQL(_ dialect.Dialect) (string, error) {
	if strings.TrimSpace(b.query) == "" {
		return "", ErrInvalidSQL
	}
	return b.query, nil
}

func (b RawBuilder) Build(ctx context.Context, conn Conn, params Params) (*Statement[Result], error) {
	if strings.TrimSpace(b.query) == "" {
		return nil, ErrInvalidSQL
	}
	args, err := freeArgs(conn.Dialect(), params)
	if err != nil {
		return nil, err
	}
	return prepare[Result](ctx, conn, OpExec, nil, b.query, args, execRun)
}

// QueryBuilder runs a caller-written query and decodes every row into R.
// R is either a mapped record, decoded by column name, or a scalar read from
// the first column.
type QueryBuilder[R any] struct {
	query string
}

// Query returns a builder for query.
func Query[R any](query string) QueryBuilder[R] {
	return QueryBuilder[R]{query: query}
}

func (b QueryBuilder[R]) SQL(_ dialect.Dialect) (string, error) {
	if strings.TrimSpace(b.query) == "" {
		return "", ErrInvalidSQL
	}
	return b.query, nil
}

func (b QueryBuilder[R]) Build(ctx context.Context, conn Conn, params Params) (*Statement[[]R], error) {
	if strings.TrimSpace(b.query) == "" {
		return nil, ErrInvalidSQL
	}
	args, err := freeArgs(conn.Dialect(), params)
	if err != nil {
		return nil, err
	}
	return prepare[[]R](ctx, conn, OpQuery, nil, b.query, args, queryRun[R])
}
