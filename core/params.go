package core

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/xstater/tablex/dialect"
	"github.com/xstater/tablex/model"
)

// Binding is one value to bind. Key is set for named bindings (":Field"),
// Ordinal for positional ones (1-based).
type Binding struct {
	Key     string
	Ordinal int
	Value   any
}

// Params supplies the values bound to a statement.
type Params interface {
	Bindings() []Binding
}

// paramsErr is implemented by Params that failed to collect their values.
type paramsErr interface {
	Err() error
}

// KeyPrefix is the sigil in front of a field name in a named binding key.
const KeyPrefix = ":"

type namedParams struct {
	bindings []Binding
	err      error
}

func (p *namedParams) Bindings() []Binding { return p.bindings }
func (p *namedParams) Err() error          { return p.err }

// Named exposes the fields of record as named bindings keyed ":Field", in
// column order. A record that already implements Params is returned as is.
func Named(record any) Params {
	if p, ok := record.(Params); ok {
		return p
	}
	table, err := model.Of(record)
	if err != nil {
		return &namedParams{err: err}
	}
	p := &namedParams{bindings: make([]Binding, 0, len(table.Columns))}
	for i, col := range table.Columns {
		v, ok := model.FieldValue(record, col)
		if !ok {
			p.err = fmt.Errorf("field %s of %s is not accessible", col.Field, table.Type)
			return p
		}
		p.bindings = append(p.bindings, Binding{Key: KeyPrefix + col.Field, Ordinal: i + 1, Value: v})
	}
	return p
}

type positional []any

func (p positional) Bindings() []Binding {
	b := make([]Binding, len(p))
	for i, v := range p {
		b[i] = Binding{Ordinal: i + 1, Value: v}
	}
	return b
}

// Positional binds values by position, starting at 1.
func Positional(values ...any) Params {
	return positional(values)
}

func collect(params Params) ([]Binding, error) {
	if params == nil {
		return nil, nil
	}
	if pe, ok := params.(paramsErr); ok && pe.Err() != nil {
		return nil, pe.Err()
	}
	return params.Bindings(), nil
}

// columnArgs binds one value per column, looked up by ":Field" key.
// Bindings for other keys are dropped.
func columnArgs(d dialect.Dialect, cols []*model.Column, params Params) ([]any, error) {
	bindings, err := collect(params)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]any, len(bindings))
	for _, b := range bindings {
		if b.Key != "" {
			byKey[b.Key] = b.Value
		}
	}
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		v, ok := byKey[KeyPrefix+col.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s%s", ErrMissingParam, KeyPrefix, col.Field)
		}
		if d.NamedArgs() {
			v = sql.Named(col.Field, v)
		}
		args = append(args, v)
	}
	return args, nil
}

// freeArgs places unnamed bindings by ordinal: the binding with ordinal n
// becomes the n-th argument. Named bindings become sql.NamedArg on dialects
// that bind by name and are placed by ordinal elsewhere. Gaps and duplicate
// ordinals are errors.
func freeArgs(d dialect.Dialect, params Params) ([]any, error) {
	bindings, err := collect(params)
	if err != nil {
		return nil, err
	}
	var (
		slots []any
		set   []bool
		named []any
	)
	for _, b := range bindings {
		if b.Key != "" && d.NamedArgs() {
			named = append(named, sql.Named(strings.TrimPrefix(b.Key, KeyPrefix), b.Value))
			continue
		}
		if b.Ordinal < 1 {
			return nil, fmt.Errorf("%w: binding has no ordinal", ErrMissingParam)
		}
		for len(slots) < b.Ordinal {
			slots = append(slots, nil)
			set = append(set, false)
		}
		if set[b.Ordinal-1] {
			return nil, fmt.Errorf("%w: ordinal %d bound twice", ErrMissingParam, b.Ordinal)
		}
		slots[b.Ordinal-1] = b.Value
		set[b.Ordinal-1] = true
	}
	for i, ok := range set {
		if !ok {
			return nil, fmt.Errorf("%w: ?%d", ErrMissingParam, i+1)
		}
	}
	return append(slots, named...), nil
}
