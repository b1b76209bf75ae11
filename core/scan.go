package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/xstater/tablex/model"
)

var (
	timeType    = reflect.TypeFor[time.Time]()
	scannerType = reflect.TypeFor[sql.Scanner]()
)

type scanFunc[T any] func(rows *sql.Rows, dest *T) error

// isRecord reports whether values of typ are decoded column by column.
// Everything else is a scalar read from the first column.
func isRecord(typ reflect.Type) bool {
	return typ.Kind() == reflect.Struct &&
		typ != timeType &&
		!reflect.PointerTo(typ).Implements(scannerType)
}

// newScanner returns a decoder for the current row layout of rows. Records
// are filled by column name; result columns without a mapped field are
// discarded.
func newScanner[T any](rows *sql.Rows) (scanFunc[T], error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("statement returned no columns")
	}

	if !isRecord(reflect.TypeFor[T]()) {
		return func(rows *sql.Rows, dest *T) error {
			values := make([]any, len(columns))
			values[0] = dest
			for i := 1; i < len(values); i++ {
				values[i] = new(any)
			}
			return rows.Scan(values...)
		}, nil
	}

	table, err := model.For[T]()
	if err != nil {
		return nil, err
	}
	cols := make([]*model.Column, len(columns))
	for i, name := range columns {
		cols[i] = table.ColumnByName(name)
	}
	return func(rows *sql.Rows, dest *T) error {
		values := make([]any, len(cols))
		for i, col := range cols {
			if col == nil {
				values[i] = new(any)
				continue
			}
			p, ok := model.FieldAddr(dest, col)
			if !ok {
				return fmt.Errorf("column %s is not addressable on %s", col, table.Type)
			}
			values[i] = p
		}
		return rows.Scan(values...)
	}, nil
}

func scanAll[T any](rows *sql.Rows) ([]T, error) {
	scan, err := newScanner[T](rows)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	for rows.Next() {
		var item T
		if err := scan(rows, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
