package core

import (
	"context"

	"github.com/xstater/tablex/model"
)

// Component is the base interface for all tablex components/middleware.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// Op tells middleware what kind of statement a Call runs.
type Op int

const (
	// OpExec runs a statement for its side effects.
	OpExec Op = iota
	// OpQuery runs a read-only statement and decodes rows into Dest.
	OpQuery
	// OpReturning runs a write that decodes the affected row into Dest.
	OpReturning
)

func (o Op) String() string {
	switch o {
	case OpQuery:
		return "query"
	case OpReturning:
		return "returning"
	}
	return "exec"
}

// Call describes one statement execution as it passes through middleware.
type Call struct {
	Op    Op
	SQL   string
	Args  []any
	Table *model.Table // nil for raw statements
	// Dest points at the statement's output value and is filled by the handler.
	Dest any
}

// Result represents the result of a statement execution.
type Result struct {
	RowsAffected int64
	LastInsertID int64
	// Data is the decoded output of query and returning calls (the Call's Dest).
	Data any
}

// Handler is the function type for the next step in the middleware chain.
type Handler func(ctx context.Context, call *Call) (*Result, error)

// Middleware is the interface for statement interceptors.
type Middleware interface {
	Component
	Process(ctx context.Context, call *Call, next Handler) (*Result, error)
}
