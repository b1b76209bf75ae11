package main

import (
	"context"
	"database/sql"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xstater/tablex/logger"
	"github.com/xstater/tablex/model"
)

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestGoName(t *testing.T) {
	tests := map[string]string{
		"id":         "ID",
		"user_name":  "UserName",
		"from_id":    "FromID",
		"avatar_url": "AvatarURL",
		"2fa_secret": "X2faSecret",
		"":           "X",
	}
	for in, want := range tests {
		assert.Equal(t, want, goName(in), in)
	}
	assert.Equal(t, "Transaction", structName("transactions"))
	assert.Equal(t, "UserInfo", structName("user_info"))
}

func TestMapType(t *testing.T) {
	tests := []struct {
		dbType, goType, imp string
	}{
		{"INTEGER", "int64", ""},
		{"int(11)", "int32", ""},
		{"bigint unsigned", "int64", ""},
		{"tinyint(1)", "bool", ""},
		{"VARCHAR(64)", "string", ""},
		{"character varying", "string", ""},
		{"double precision", "float64", ""},
		{"REAL", "float64", ""},
		{"bytea", "[]byte", ""},
		{"timestamp with time zone", "time.Time", "time"},
		{"DATETIME", "time.Time", "time"},
		{"uuid", "uuid.UUID", "github.com/google/uuid"},
		{"geometry", "[]byte", ""},
	}
	for _, tt := range tests {
		typ, imp := mapType(tt.dbType)
		assert.Equal(t, tt.goType, typ, tt.dbType)
		assert.Equal(t, tt.imp, imp, tt.dbType)
	}
}

func TestBuildFieldTags(t *testing.T) {
	tests := []struct {
		col  columnInfo
		want Field
	}{
		{
			col:  columnInfo{Name: "id", DBType: "INTEGER", PrimaryKey: true, AutoIncrement: true, NotNull: true},
			want: Field{Name: "ID", Type: "int64", Tag: "column:id;pk;auto"},
		},
		{
			col:  columnInfo{Name: "email", DBType: "varchar(255)", Unique: true, Comment: "login\n name"},
			want: Field{Name: "Email", Type: "*string", Tag: "column:email;unique;type:varchar(255)", Comment: "login name"},
		},
		{
			col:  columnInfo{Name: "owner_id", DBType: "bigint", NotNull: true, RefTable: "users", RefColumn: "id"},
			want: Field{Name: "OwnerID", Type: "int64", Tag: "column:owner_id;type:bigint;references:users(id)"},
		},
		{
			col:  columnInfo{Name: "created_at", DBType: "timestamp with time zone", NotNull: true},
			want: Field{Name: "CreatedAt", Type: "time.Time", Tag: "column:created_at"},
		},
	}
	for _, tt := range tests {
		got, _, err := buildField(tt.col)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		tag, err := model.ParseTag(got.Tag)
		require.NoError(t, err)
		assert.Equal(t, tt.col.Name, tag.Column)
		assert.Equal(t, tt.col.PrimaryKey, tag.PrimaryKey)
		assert.Equal(t, tt.col.RefTable, tag.RefTable)
	}
}

func TestBuildModelRejectsCollidingNames(t *testing.T) {
	_, err := buildModel("models", "t", []columnInfo{
		{Name: "user_id", DBType: "INTEGER"},
		{Name: "user__id", DBType: "INTEGER"},
	})
	assert.ErrorContains(t, err, "same field UserID")
}

func TestRender(t *testing.T) {
	data, err := buildModel("models", "accounts", []columnInfo{
		{Name: "id", DBType: "uuid", PrimaryKey: true, NotNull: true},
		{Name: "balance", DBType: "REAL", NotNull: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com/google/uuid"}, data.Imports)

	src, err := render("accounts.go", data)
	require.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), "accounts.go", src, parser.AllErrors)
	require.NoError(t, err)

	out := squash(string(src))
	assert.True(t, strings.HasPrefix(string(src), "// Code generated by tablex-gen. DO NOT EDIT."))
	assert.Contains(t, out, "type Account struct {")
	assert.Contains(t, out, "ID uuid.UUID `tablex:\"column:id;pk;type:uuid\"`")
	assert.Contains(t, out, `func (*Account) TableName() string { return "accounts" }`)
	assert.Contains(t, out, `case "Balance": return &m.Balance`)
}

const schema = `
CREATE TABLE user_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	user_name TEXT NOT NULL,
	email TEXT UNIQUE,
	created_at DATETIME NOT NULL
);
CREATE TABLE transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	from_id INTEGER NOT NULL REFERENCES user_info(id),
	amount REAL NOT NULL,
	memo VARCHAR(64)
);`

func openSchema(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "gen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func TestSQLiteIntrospection(t *testing.T) {
	db := openSchema(t)
	ctx := context.Background()
	intro := introspectors["sqlite"]

	tables, err := intro.tables(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"transactions", "user_info"}, tables)

	cols, err := intro.columns(ctx, db, "user_info")
	require.NoError(t, err)
	assert.Equal(t, []columnInfo{
		{Name: "id", DBType: "INTEGER", PrimaryKey: true, AutoIncrement: true, NotNull: true},
		{Name: "user_name", DBType: "TEXT", NotNull: true},
		{Name: "email", DBType: "TEXT", Unique: true},
		{Name: "created_at", DBType: "DATETIME", NotNull: true},
	}, cols)

	cols, err = intro.columns(ctx, db, "transactions")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "user_info", cols[1].RefTable)
	assert.Equal(t, "id", cols[1].RefColumn)

	_, err = intro.columns(ctx, db, "missing")
	assert.Error(t, err)
}

func TestGeneratorRun(t *testing.T) {
	db := openSchema(t)
	out := t.TempDir()
	cfg := defaultConfig()
	cfg.Driver = "sqlite"
	cfg.DSN = "unused"
	cfg.Out = out
	cfg.Workers = 2

	gen, err := NewGenerator(cfg, db, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, gen.Run(context.Background()))

	src, err := os.ReadFile(filepath.Join(out, "transactions.go"))
	require.NoError(t, err)
	text := squash(string(src))
	assert.Contains(t, text, "package models")
	assert.Contains(t, text, "type Transaction struct {")
	assert.Contains(t, text, "FromID int64 `tablex:\"column:from_id;references:user_info(id)\"`")
	assert.Contains(t, text, "Memo *string `tablex:\"column:memo;type:varchar(64)\"`")

	src, err = os.ReadFile(filepath.Join(out, "user_info.go"))
	require.NoError(t, err)
	text = squash(string(src))
	assert.Contains(t, text, `"time"`)
	assert.Contains(t, text, "CreatedAt time.Time `tablex:\"column:created_at\"`")

	// existing files are kept unless overwrite is set
	require.NoError(t, os.WriteFile(filepath.Join(out, "user_info.go"), []byte("keep"), 0o644))
	require.NoError(t, gen.Run(context.Background()))
	kept, err := os.ReadFile(filepath.Join(out, "user_info.go"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(kept))

	cfg.Overwrite = true
	cfg.Tables = []string{"user_info"}
	require.NoError(t, gen.Run(context.Background()))
	kept, err = os.ReadFile(filepath.Join(out, "user_info.go"))
	require.NoError(t, err)
	assert.NotEqual(t, "keep", string(kept))
}

func TestParseFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablex-gen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: postgres
dsn: postgres://localhost/app
tables: [users, orders]
package: store
workers: 8
`), 0o644))

	cfg, err := parseFlags([]string{"-config", path, "-table", "users, payments", "-out", "gen"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "postgres://localhost/app", cfg.DSN)
	assert.Equal(t, []string{"users", "payments"}, cfg.Tables)
	assert.Equal(t, "store", cfg.Package)
	assert.Equal(t, "gen", cfg.Out)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = parseFlags([]string{"-driver", "oracle", "-dsn", "x"})
	assert.ErrorContains(t, err, "unsupported driver")
	_, err = parseFlags(nil)
	assert.ErrorContains(t, err, "dsn is required")
}
