package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrSchema matches every error produced while deriving a table.
var ErrSchema = errors.New("invalid schema")

// SchemaError describes a record type that cannot be mapped.
// A type that fails derivation never yields a usable Table.
type SchemaError struct {
	Type   reflect.Type
	Table  string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	var sb strings.Builder
	sb.WriteString("tablex: ")
	if e.Type != nil {
		fmt.Fprintf(&sb, "%s: ", e.Type)
	}
	switch {
	case e.Table != "" && e.Column != "":
		fmt.Fprintf(&sb, "column %s.%s: ", e.Table, e.Column)
	case e.Table != "":
		fmt.Fprintf(&sb, "table %s: ", e.Table)
	}
	sb.WriteString(e.Reason)
	return sb.String()
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}
