package core

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/xstater/tablex/dialect"
	"github.com/xstater/tablex/model"
)

// Conn is a connection statements can be prepared on. *DB and *Tx implement it.
type Conn interface {
	Dialect() dialect.Dialect
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	// Dispatch runs call through the connection's middleware chain, ending in next.
	Dispatch(ctx context.Context, call *Call, next Handler) (*Result, error)
}

// Builder elaborates into a prepared statement producing O.
type Builder[O any] interface {
	Build(ctx context.Context, conn Conn, params Params) (*Statement[O], error)
}

// Execute builds b on conn and runs it once.
func Execute[O any](ctx context.Context, conn Conn, b Builder[O], params Params) (O, error) {
	stmt, err := b.Build(ctx, conn, params)
	if err != nil {
		var zero O
		return zero, err
	}
	return stmt.Execute(ctx)
}

// State is the lifecycle state of a Statement.
type State int

const (
	StatePrepared State = iota
	StateExecuted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateExecuted:
		return "executed"
	case StateClosed:
		return "closed"
	}
	return "prepared"
}

type runner func(ctx context.Context, stmt *sql.Stmt, call *Call) (*Result, error)

// Statement is a prepared statement with its bound values. It runs at most
// once and is not safe for concurrent use.
type Statement[O any] struct {
	conn    Conn
	dialect dialect.Dialect
	stmt    *sql.Stmt
	op      Op
	table   *model.Table
	query   string
	args    []any
	run     runner
	state   State
}

func prepare[O any](ctx context.Context, conn Conn, op Op, table *model.Table, query string, args []any, run runner) (*Statement[O], error) {
	d := conn.Dialect()
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, wrapError(d, query, err)
	}
	return &Statement[O]{
		conn:    conn,
		dialect: d,
		stmt:    stmt,
		op:      op,
		table:   table,
		query:   query,
		args:    args,
		run:     run,
	}, nil
}

// Execute runs the statement and releases it. A second call returns
// ErrStatementExecuted.
func (s *Statement[O]) Execute(ctx context.Context) (O, error) {
	var out O
	if s.state != StatePrepared {
		return out, ErrStatementExecuted
	}
	s.state = StateExecuted
	defer s.stmt.Close()

	call := &Call{Op: s.op, SQL: s.query, Args: s.args, Table: s.table, Dest: &out}
	_, err := s.conn.Dispatch(ctx, call, func(ctx context.Context, call *Call) (*Result, error) {
		return s.run(ctx, s.stmt, call)
	})
	if err != nil {
		var zero O
		return zero, err
	}
	return out, nil
}

// Close releases the statement without running it.
func (s *Statement[O]) Close() error {
	if s.state != StatePrepared {
		return nil
	}
	s.state = StateClosed
	return s.stmt.Close()
}

// State reports where the statement is in its lifecycle.
func (s *Statement[O]) State() State {
	return s.state
}

// Query returns the statement text with its placeholders.
func (s *Statement[O]) Query() string {
	return s.query
}

// Args returns the values bound to the statement.
func (s *Statement[O]) Args() []any {
	return s.args
}

// SQL returns the statement text with every bound value written inline as a
// literal. It is meant for diagnostics and is available in any state.
func (s *Statement[O]) SQL() string {
	return expand(s.dialect, s.query, s.args)
}

func execRun(ctx context.Context, stmt *sql.Stmt, call *Call) (*Result, error) {
	res, err := stmt.ExecContext(ctx, call.Args...)
	if err != nil {
		return nil, err
	}
	out := Result{}
	out.RowsAffected, _ = res.RowsAffected()
	// not every driver reports insert ids
	out.LastInsertID, _ = res.LastInsertId()
	if dest, ok := call.Dest.(*Result); ok {
		*dest = out
	}
	return &out, nil
}

func queryRun[T any](ctx context.Context, stmt *sql.Stmt, call *Call) (*Result, error) {
	rows, err := stmt.QueryContext(ctx, call.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanAll[T](rows)
	if err != nil {
		return nil, err
	}
	if dest, ok := call.Dest.(*[]T); ok {
		*dest = items
	}
	return &Result{RowsAffected: int64(len(items)), Data: call.Dest}, nil
}

func returningRun[T any](ctx context.Context, stmt *sql.Stmt, call *Call) (*Result, error) {
	rows, err := stmt.QueryContext(ctx, call.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		// constraint failures surface here on some drivers
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, notFound(call.SQL)
	}
	scan, err := newScanner[T](rows)
	if err != nil {
		return nil, err
	}
	var item T
	if err := scan(rows, &item); err != nil {
		return nil, err
	}
	if rows.Next() {
		return nil, tooManyRows(call.SQL)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if dest, ok := call.Dest.(*T); ok {
		*dest = item
	}
	return &Result{RowsAffected: 1, Data: call.Dest}, nil
}

// expand substitutes bound values for the placeholders in query. Quoted
// strings and identifiers are copied unchanged.
func expand(d dialect.Dialect, query string, args []any) string {
	named := make(map[string]any)
	var positional []any
	for _, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			named[na.Name] = na.Value
			continue
		}
		positional = append(positional, a)
	}

	var sb strings.Builder
	sb.Grow(len(query))
	next := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(query, i)
			sb.WriteString(query[i:j])
			i = j
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			sb.WriteString("::")
			i += 2
		case (c == ':' || c == '@') && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdent(query[j]) {
				j++
			}
			if v, ok := named[query[i+1:j]]; ok {
				sb.WriteString(d.Literal(v))
			} else {
				sb.WriteString(query[i:j])
			}
			i = j
		case (c == '$' || c == '?') && i+1 < len(query) && isDigit(query[i+1]):
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			if n >= 1 && n <= len(positional) {
				sb.WriteString(d.Literal(positional[n-1]))
			} else {
				sb.WriteString(query[i:j])
			}
			// a bare ? after ?NNN takes the next index
			if c == '?' && n > next {
				next = n
			}
			i = j
		case c == '?':
			if next < len(positional) {
				sb.WriteString(d.Literal(positional[next]))
				next++
			} else {
				sb.WriteByte(c)
			}
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// skipQuoted returns the index just past the quoted run starting at i.
// A doubled quote character is an escape.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
