package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/go-openapi/inflect"
	"github.com/xstater/tablex/logger"
	"github.com/xstater/tablex/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

const modelTemplate = `// Code generated by tablex-gen. DO NOT EDIT.

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.StructName}} maps table {{.Table}}.
type {{.StructName}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} ` + "`" + `tablex:"{{.Tag}}"` + "`" + `{{if .Comment}} // {{.Comment}}{{end}}
{{- end}}
}

// TableName returns the table name.
func (*{{.StructName}}) TableName() string {
	return "{{.Table}}"
}

// FieldPointer returns the address of the named field, or nil.
func (m *{{.StructName}}) FieldPointer(field string) any {
	switch field {
{{- range .Fields}}
	case "{{.Name}}":
		return &m.{{.Name}}
{{- end}}
	}
	return nil
}
`

var tmpl = template.Must(template.New("model").Parse(modelTemplate))

// Field is one struct field of a generated model.
type Field struct {
	Name    string
	Type    string
	Tag     string
	Comment string
}

// ModelData is the template input for one table.
type ModelData struct {
	Package    string
	StructName string
	Table      string
	Imports    []string
	Fields     []Field
}

// initialisms are rendered in upper case inside Go names.
var initialisms = map[string]bool{
	"id": true, "ip": true, "url": true, "uri": true, "uuid": true, "api": true,
	"http": true, "json": true, "sql": true, "html": true, "xml": true,
}

// goName converts a snake_case database name to an exported Go identifier.
func goName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var sb strings.Builder
	for _, p := range parts {
		if initialisms[strings.ToLower(p)] {
			sb.WriteString(strings.ToUpper(p))
			continue
		}
		sb.WriteString(inflect.Capitalize(p))
	}
	name := sb.String()
	if name == "" {
		return "X"
	}
	if r := rune(name[0]); !unicode.IsLetter(r) {
		name = "X" + name
	}
	return name
}

// structName names the record type of a table after its singular form.
func structName(table string) string {
	return goName(inflect.Singularize(table))
}

// baseType strips the size and modifiers off a declared column type.
func baseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.Index(t, "("); i != -1 {
		t = t[:i]
	}
	return strings.TrimSpace(strings.TrimSuffix(t, " UNSIGNED"))
}

// mapType returns the Go type for a declared column type, and the import it
// needs.
func mapType(dbType string) (string, string) {
	t := baseType(dbType)
	switch {
	case t == "TINYINT" && strings.Contains(strings.ToUpper(dbType), "(1)"):
		return "bool", ""
	case t == "TINYINT":
		return "int8", ""
	case t == "SMALLINT" || t == "INT2" || t == "SMALLSERIAL":
		return "int16", ""
	case t == "INT" || t == "MEDIUMINT" || t == "INT4" || t == "SERIAL":
		return "int32", ""
	case t == "INTEGER" || t == "BIGINT" || t == "INT8" || t == "BIGSERIAL":
		return "int64", ""
	case t == "BOOLEAN" || t == "BOOL":
		return "bool", ""
	case t == "FLOAT" || t == "FLOAT4":
		return "float32", ""
	case t == "REAL" || t == "DOUBLE" || t == "DOUBLE PRECISION" || t == "FLOAT8" ||
		t == "DECIMAL" || t == "NUMERIC":
		return "float64", ""
	case t == "UUID":
		return "uuid.UUID", "github.com/google/uuid"
	case t == "BLOB" || t == "LONGBLOB" || t == "MEDIUMBLOB" || t == "BYTEA" ||
		strings.HasPrefix(t, "BINARY") || strings.HasPrefix(t, "VARBINARY"):
		return "[]byte", ""
	case t == "DATE" || t == "TIME" || t == "DATETIME" || strings.HasPrefix(t, "TIMESTAMP"):
		return "time.Time", "time"
	case strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT") || t == "JSON" || t == "JSONB" || t == "CLOB":
		return "string", ""
	}
	return "[]byte", ""
}

// canonicalTypes are produced by tablex for the mapped Go types on SQLite and
// need no explicit type option.
var canonicalTypes = map[string]bool{
	"INTEGER": true, "TEXT": true, "REAL": true, "BLOB": true, "DATETIME": true,
}

// buildField converts a catalog column to a struct field. Nullable columns
// become pointer fields.
func buildField(c columnInfo) (Field, string, error) {
	typ, imp := mapType(c.DBType)
	if !c.NotNull && !c.PrimaryKey && typ != "[]byte" {
		typ = "*" + typ
	}

	opts := []string{"column:" + c.Name}
	if c.PrimaryKey {
		opts = append(opts, "pk")
		if c.AutoIncrement {
			opts = append(opts, "auto")
		}
	}
	if c.Unique {
		opts = append(opts, "unique")
	}
	if c.NotNull && typ == "[]byte" {
		opts = append(opts, "notnull")
	}
	if t := strings.TrimSpace(c.DBType); t != "" && !canonicalTypes[strings.ToUpper(t)] && !strings.ContainsAny(t, " ;,") {
		opts = append(opts, "type:"+strings.ToLower(t))
	}
	if c.RefTable != "" && c.RefColumn != "" {
		opts = append(opts, fmt.Sprintf("references:%s(%s)", c.RefTable, c.RefColumn))
	}
	tag := strings.Join(opts, ";")
	if _, err := model.ParseTag(tag); err != nil {
		return Field{}, "", fmt.Errorf("column %s: %w", c.Name, err)
	}

	return Field{
		Name:    goName(c.Name),
		Type:    typ,
		Tag:     tag,
		Comment: strings.Join(strings.Fields(c.Comment), " "),
	}, imp, nil
}

func buildModel(pkg, table string, cols []columnInfo) (*ModelData, error) {
	data := &ModelData{
		Package:    pkg,
		StructName: structName(table),
		Table:      table,
	}
	seen := make(map[string]bool)
	names := make(map[string]bool)
	for _, c := range cols {
		f, imp, err := buildField(c)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		if names[f.Name] {
			return nil, fmt.Errorf("table %s: columns map to the same field %s", table, f.Name)
		}
		names[f.Name] = true
		if imp != "" && !seen[imp] {
			seen[imp] = true
			data.Imports = append(data.Imports, imp)
		}
		data.Fields = append(data.Fields, f)
	}
	sort.Strings(data.Imports)
	return data, nil
}

// render executes the model template and formats the result as Go source.
func render(path string, data *ModelData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template for %s: %w", data.Table, err)
	}
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", path, err)
	}
	return formatted, nil
}

// errExists is returned for files that are kept because overwrite is off.
var errExists = errors.New("file exists")

// Generator writes one model file per table.
type Generator struct {
	cfg    *Config
	db     *sql.DB
	intro  introspector
	logger logger.Logger
}

func NewGenerator(cfg *Config, db *sql.DB, log logger.Logger) (*Generator, error) {
	intro, ok := introspectors[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	return &Generator{cfg: cfg, db: db, intro: intro, logger: log}, nil
}

// Run generates every configured table, or every table in the database when
// none are configured. Tables are generated in parallel.
func (g *Generator) Run(ctx context.Context) error {
	tables := g.cfg.Tables
	if len(tables) == 0 {
		var err error
		if tables, err = g.intro.tables(ctx, g.db); err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
	}
	if err := os.MkdirAll(g.cfg.Out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for _, table := range tables {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := g.generate(ctx, table)
			switch {
			case errors.Is(err, errExists):
				g.logger.Warn("%s exists, skipped (use -overwrite)", path)
				return nil
			case err != nil:
				return fmt.Errorf("table %s: %w", table, err)
			}
			g.logger.Info("generated %s -> %s", table, path)
			return nil
		})
	}
	return eg.Wait()
}

func (g *Generator) generate(ctx context.Context, table string) (string, error) {
	path := filepath.Join(g.cfg.Out, strings.ToLower(table)+".go")
	if _, err := os.Stat(path); err == nil && !g.cfg.Overwrite {
		return path, errExists
	}

	cols, err := g.intro.columns(ctx, g.db, table)
	if err != nil {
		return path, err
	}
	data, err := buildModel(g.cfg.Package, table, cols)
	if err != nil {
		return path, err
	}
	src, err := render(path, data)
	if err != nil {
		return path, err
	}
	return path, os.WriteFile(path, src, 0o644)
}
