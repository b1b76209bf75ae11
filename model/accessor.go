package model

import (
	"reflect"
)

// FieldPointer is implemented by generated record types to hand out field
// addresses without reflection. FieldPointer returns a pointer to the named
// struct field, or nil if the record has no such field.
type FieldPointer interface {
	FieldPointer(field string) any
}

// ValueRef returns the current value of the field described by col.
// It reports false when col does not belong to the record's table or when the
// field's declared type is not exactly T. record may be a struct or a pointer
// to one.
func ValueRef[T any](record any, col *Column) (T, bool) {
	var zero T
	p, ok := fieldAddr(record, col, false)
	if !ok {
		return zero, false
	}
	tp, ok := p.(*T)
	if !ok {
		return zero, false
	}
	return *tp, true
}

// ValueMut returns a pointer to the live field described by col, under the
// same rules as ValueRef. record must be a non-nil pointer to a struct.
func ValueMut[T any](record any, col *Column) (*T, bool) {
	p, ok := fieldAddr(record, col, true)
	if !ok {
		return nil, false
	}
	tp, ok := p.(*T)
	return tp, ok
}

// FieldAddr returns a pointer to the field described by col, typed as the
// field's declared type. record must be a non-nil pointer to a struct.
func FieldAddr(record any, col *Column) (any, bool) {
	return fieldAddr(record, col, true)
}

// FieldValue returns the value of the field described by col.
func FieldValue(record any, col *Column) (any, bool) {
	p, ok := fieldAddr(record, col, false)
	if !ok {
		return nil, false
	}
	return reflect.ValueOf(p).Elem().Interface(), true
}

func fieldAddr(record any, col *Column, mustPtr bool) (any, bool) {
	if record == nil || col == nil {
		return nil, false
	}
	t, err := Of(record)
	if err != nil || !t.HasColumn(col) {
		return nil, false
	}

	if fp, ok := record.(FieldPointer); ok {
		if p := fp.FieldPointer(col.Field); p != nil {
			return p, true
		}
	}

	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	} else {
		if mustPtr {
			return nil, false
		}
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	return v.FieldByIndex(col.index).Addr().Interface(), true
}
