package model

import (
	"fmt"
	"reflect"
	"sync"
	"unicode"
)

// Table describes the storage layout of one record type. Tables are derived
// once per type and shared; callers must not modify them.
type Table struct {
	Name    string
	Columns []*Column
	// Extra carries engine-specific table metadata supplied by a TableExtra method.
	Extra any
	Type  reflect.Type

	byField  map[string]*Column
	byColumn map[string]*Column
}

// ColumnByField returns the column mapped from the named struct field, or nil.
func (t *Table) ColumnByField(field string) *Column {
	return t.byField[field]
}

// ColumnByName returns the column with the given storage name, or nil.
func (t *Table) ColumnByName(name string) *Column {
	return t.byColumn[name]
}

// HasColumn reports whether col is one of this table's columns.
// Membership is by identity.
func (t *Table) HasColumn(col *Column) bool {
	return col != nil && col.table == t
}

// PrimaryKey returns the primary key columns in declaration order.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.Primary {
			pk = append(pk, c)
		}
	}
	return pk
}

// Dependencies returns the distinct tables referenced by this table's foreign
// keys, excluding the table itself.
func (t *Table) Dependencies() ([]*Table, error) {
	var deps []*Table
	seen := map[*Table]bool{t: true}
	for _, c := range t.Columns {
		ref, err := c.ResolveReference()
		if err != nil {
			return nil, err
		}
		if ref == nil || seen[ref.Table] {
			continue
		}
		seen[ref.Table] = true
		deps = append(deps, ref.Table)
	}
	return deps, nil
}

func (t *Table) String() string {
	return t.Name
}

// Column describes one mapped struct field.
type Column struct {
	Name  string // storage name
	Field string // Go struct field name
	// Offset and Size locate the field inside its struct.
	Offset uintptr
	Size   uintptr

	Primary       bool
	Unique        bool
	AutoIncrement bool
	NotNull       bool

	Kind Kind
	// DataType is the SQL type: either the declared type tag or Kind.DataType().
	DataType string
	// Declared is true when DataType came from a type tag.
	Declared bool
	Type     reflect.Type

	index  []int
	table  *Table
	refTab string
	refCol string

	refMu sync.Mutex
	ref   *Reference
}

// Table returns the table this column belongs to.
func (c *Column) Table() *Table {
	return c.table
}

// HasReference reports whether the column declares a foreign key.
func (c *Column) HasReference() bool {
	return c.refTab != ""
}

// ResolveReference returns the foreign key target of the column, or nil when
// it has none. The target table is looked up by name in the registry; only a
// successful lookup is memoised, so a target registered later still resolves.
func (c *Column) ResolveReference() (*Reference, error) {
	if c.refTab == "" {
		return nil, nil
	}
	c.refMu.Lock()
	defer c.refMu.Unlock()
	if c.ref != nil {
		return c.ref, nil
	}
	target, ok := Lookup(c.refTab)
	if !ok {
		return nil, c.schemaError(fmt.Sprintf("referenced table %q is not registered", c.refTab))
	}
	col := target.ColumnByName(c.refCol)
	if col == nil {
		return nil, c.schemaError(fmt.Sprintf("referenced column %s(%s) does not exist", c.refTab, c.refCol))
	}
	c.ref = &Reference{Table: target, Column: col}
	return c.ref, nil
}

// Reference is like ResolveReference but panics if the target cannot be resolved.
func (c *Column) Reference() *Reference {
	ref, err := c.ResolveReference()
	if err != nil {
		panic(err)
	}
	return ref
}

func (c *Column) String() string {
	if c.table == nil {
		return c.Name
	}
	return c.table.Name + "." + c.Name
}

func (c *Column) schemaError(reason string) *SchemaError {
	e := &SchemaError{Column: c.Name, Reason: reason}
	if c.table != nil {
		e.Type, e.Table = c.table.Type, c.table.Name
	}
	return e
}

// Reference is a foreign key target. Both fields point at registry singletons.
type Reference struct {
	Table  *Table
	Column *Column
}

func (r *Reference) String() string {
	return fmt.Sprintf("%s(%s)", r.Table.Name, r.Column.Name)
}

// Namer lets a record type choose its table name.
type Namer interface {
	TableName() string
}

// Extender lets a record type attach engine-specific metadata to its table.
type Extender interface {
	TableExtra() any
}

type entry struct {
	once  sync.Once
	table *Table
	err   error
}

var (
	tableCache sync.Map // reflect.Type -> *entry
	tableNames sync.Map // string -> *Table
)

// For returns the table derived from T, which must be a struct type.
func For[T any]() (*Table, error) {
	return typeTable(reflect.TypeFor[T]())
}

// MustFor is like For but panics on a schema error.
func MustFor[T any]() *Table {
	t, err := For[T]()
	if err != nil {
		panic(err)
	}
	return t
}

// Of returns the table for the type of value, a struct or pointer to struct.
func Of(value any) (*Table, error) {
	if value == nil {
		return nil, &SchemaError{Reason: "value is nil"}
	}
	if typ, ok := value.(reflect.Type); ok {
		return typeTable(typ)
	}
	return typeTable(reflect.TypeOf(value))
}

// Register derives the tables of the given values so that foreign keys naming
// them can be resolved.
func Register(values ...any) error {
	for _, v := range values {
		if _, err := Of(v); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on a schema error.
func MustRegister(values ...any) {
	if err := Register(values...); err != nil {
		panic(err)
	}
}

// Lookup returns a registered table by its storage name.
func Lookup(name string) (*Table, bool) {
	v, ok := tableNames.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Table), true
}

func typeTable(typ reflect.Type) (*Table, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, &SchemaError{Type: typ, Reason: fmt.Sprintf("value must be a struct or pointer to struct, got %s", typ.Kind())}
	}

	v, ok := tableCache.Load(typ)
	if !ok {
		v, _ = tableCache.LoadOrStore(typ, &entry{})
	}
	e := v.(*entry)
	e.once.Do(func() {
		e.table, e.err = parseTable(typ)
		if e.err != nil {
			return
		}
		if prev, loaded := tableNames.LoadOrStore(e.table.Name, e.table); loaded && prev.(*Table) != e.table {
			e.err = &SchemaError{
				Type:   typ,
				Table:  e.table.Name,
				Reason: fmt.Sprintf("table name already used by %s", prev.(*Table).Type),
			}
			e.table = nil
		}
	})
	return e.table, e.err
}

func parseTable(typ reflect.Type) (*Table, error) {
	t := &Table{
		Name:     camelToSnake(typ.Name()),
		Type:     typ,
		byField:  make(map[string]*Column),
		byColumn: make(map[string]*Column),
	}

	zero := reflect.New(typ).Interface()
	if n, ok := zero.(Namer); ok {
		if name := n.TableName(); name != "" {
			t.Name = name
		}
	}
	if x, ok := zero.(Extender); ok {
		t.Extra = x.TableExtra()
	}

	if err := t.addFields(typ, nil, 0); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, &SchemaError{Type: typ, Table: t.Name, Reason: "no mapped fields"}
	}
	return t, nil
}

func (t *Table) addFields(typ reflect.Type, parent []int, base uintptr) error {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		tagStr, hasTag := sf.Tag.Lookup(TagName)
		embedded := sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct && sf.Type != timeType
		if !sf.IsExported() && !embedded {
			continue
		}
		tag, err := ParseTag(tagStr)
		if err != nil {
			return &SchemaError{Type: t.Type, Table: t.Name, Column: sf.Name, Reason: err.Error()}
		}
		if tag.Skip {
			continue
		}

		index := append(append([]int(nil), parent...), i)
		if embedded {
			if err := t.addFields(sf.Type, index, base+sf.Offset); err != nil {
				return err
			}
			continue
		}

		col := &Column{
			Name:          tag.Column,
			Field:         sf.Name,
			Offset:        base + sf.Offset,
			Size:          sf.Type.Size(),
			Primary:       tag.PrimaryKey,
			Unique:        tag.Unique,
			AutoIncrement: tag.AutoIncrement,
			Type:          sf.Type,
			index:         index,
			table:         t,
			refTab:        tag.RefTable,
			refCol:        tag.RefColumn,
		}
		if col.Name == "" {
			col.Name = camelToSnake(sf.Name)
		}

		kind, nullable := kindOf(sf.Type)
		col.Kind = kind
		col.NotNull = !nullable || tag.NotNull
		switch {
		case tag.Type != "":
			col.DataType, col.Declared = tag.Type, true
		case kind != KindInvalid:
			col.DataType = kind.DataType()
		default:
			return &SchemaError{Type: t.Type, Table: t.Name, Column: col.Name,
				Reason: fmt.Sprintf("unsupported field type %s; declare one with type:<name>", sf.Type)}
		}

		if _, dup := t.byColumn[col.Name]; dup {
			return &SchemaError{Type: t.Type, Table: t.Name, Column: col.Name, Reason: "duplicate column name"}
		}
		if _, dup := t.byField[col.Field]; dup {
			return &SchemaError{Type: t.Type, Table: t.Name, Column: col.Name, Reason: fmt.Sprintf("duplicate field %s", col.Field)}
		}
		t.Columns = append(t.Columns, col)
		t.byColumn[col.Name] = col
		t.byField[col.Field] = col
	}
	return nil
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	runes := []rune(s)
	var res []rune
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}
