package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// columnInfo is one column as reported by the database catalog.
type columnInfo struct {
	Name          string
	DBType        string
	Comment       string
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	RefTable      string
	RefColumn     string
}

type introspector interface {
	tables(ctx context.Context, db *sql.DB) ([]string, error)
	columns(ctx context.Context, db *sql.DB, table string) ([]columnInfo, error)
}

var introspectors = map[string]introspector{
	"sqlite3":  sqliteIntrospector{},
	"sqlite":   sqliteIntrospector{},
	"mysql":    mysqlIntrospector{},
	"postgres": postgresIntrospector{},
	"pgx":      postgresIntrospector{},
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type sqliteIntrospector struct{}

func (sqliteIntrospector) tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

func (s sqliteIntrospector) columns(ctx context.Context, db *sql.DB, table string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	var cols []columnInfo
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notnull, &dfltValue, &pk); err != nil {
			rows.Close()
			return nil, err
		}
		c := columnInfo{
			Name:       name,
			DBType:     dataType,
			PrimaryKey: pk > 0,
			NotNull:    notnull == 1 || pk > 0,
		}
		// only INTEGER PRIMARY KEY aliases the rowid
		if pk == 1 && strings.EqualFold(dataType, "INTEGER") {
			c.AutoIncrement = true
		}
		cols = append(cols, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	refs, err := s.foreignKeys(ctx, db, table)
	if err != nil {
		return nil, err
	}
	unique, err := s.uniqueColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	for i := range cols {
		if ref, ok := refs[cols[i].Name]; ok {
			cols[i].RefTable, cols[i].RefColumn = ref[0], ref[1]
		}
		cols[i].Unique = unique[cols[i].Name]
	}
	return cols, nil
}

func (sqliteIntrospector) foreignKeys(ctx context.Context, db *sql.DB, table string) (map[string][2]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type fk struct {
		from, target string
		to           sql.NullString
		columns      int
	}
	byID := make(map[int]*fk)
	for rows.Next() {
		var (
			id, seq            int
			target, from       string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		k, ok := byID[id]
		if !ok {
			k = &fk{from: from, target: target, to: to}
			byID[id] = k
		}
		k.columns++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make(map[string][2]string)
	for _, k := range byID {
		// composite keys and implicit targets cannot be expressed per field
		if k.columns == 1 && k.to.Valid {
			refs[k.from] = [2]string{k.target, k.to.String}
		}
	}
	return refs, nil
}

func (sqliteIntrospector) uniqueColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	var indexes []string
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if unique == 1 && origin == "u" {
			indexes = append(indexes, name)
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, idx := range indexes {
		cols, err := queryIndexColumns(ctx, db, idx)
		if err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			out[cols[0]] = true
		}
	}
	return out, nil
}

func queryIndexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

type mysqlIntrospector struct{}

func (mysqlIntrospector) tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, "SHOW TABLES")
}

func (mysqlIntrospector) columns(ctx context.Context, db *sql.DB, table string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SHOW FULL COLUMNS FROM `%s`", strings.ReplaceAll(table, "`", "``")))
	if err != nil {
		return nil, err
	}
	var cols []columnInfo
	for rows.Next() {
		var (
			field      string
			typ        string
			collation  sql.NullString
			null       string
			key        string
			defaultVal sql.NullString
			extra      string
			privileges string
			comment    string
		)
		if err := rows.Scan(&field, &typ, &collation, &null, &key, &defaultVal, &extra, &privileges, &comment); err != nil {
			rows.Close()
			return nil, err
		}
		cols = append(cols, columnInfo{
			Name:          field,
			DBType:        typ,
			Comment:       comment,
			PrimaryKey:    key == "PRI",
			AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
			NotNull:       null == "NO",
			Unique:        key == "UNI",
		})
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	refs, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL`, table)
	if err != nil {
		return nil, err
	}
	defer refs.Close()
	for refs.Next() {
		var col, refTable, refCol string
		if err := refs.Scan(&col, &refTable, &refCol); err != nil {
			return nil, err
		}
		for i := range cols {
			if cols[i].Name == col {
				cols[i].RefTable, cols[i].RefColumn = refTable, refCol
			}
		}
	}
	return cols, refs.Err()
}

type postgresIntrospector struct{}

func (postgresIntrospector) tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (postgresIntrospector) columns(ctx context.Context, db *sql.DB, table string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			COALESCE(c.column_default, ''),
			COALESCE(bool_or(tc.constraint_type = 'PRIMARY KEY'), false),
			COALESCE(bool_or(tc.constraint_type = 'UNIQUE'), false),
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '')
		FROM information_schema.columns c
		LEFT JOIN information_schema.key_column_usage kcu
			ON c.table_schema = kcu.table_schema
			AND c.table_name = kcu.table_name
			AND c.column_name = kcu.column_name
		LEFT JOIN information_schema.table_constraints tc
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		GROUP BY c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default, c.ordinal_position
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	var cols []columnInfo
	for rows.Next() {
		var (
			c          columnInfo
			isNullable string
			dflt       string
		)
		if err := rows.Scan(&c.Name, &c.DBType, &isNullable, &dflt, &c.PrimaryKey, &c.Unique, &c.Comment); err != nil {
			rows.Close()
			return nil, err
		}
		c.NotNull = isNullable == "NO"
		c.AutoIncrement = c.PrimaryKey && strings.Contains(strings.ToLower(dflt), "nextval")
		cols = append(cols, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	refs, err := db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema() AND tc.table_name = $1`, table)
	if err != nil {
		return nil, err
	}
	defer refs.Close()
	for refs.Next() {
		var col, refTable, refCol string
		if err := refs.Scan(&col, &refTable, &refCol); err != nil {
			return nil, err
		}
		for i := range cols {
			if cols[i].Name == col {
				cols[i].RefTable, cols[i].RefColumn = refTable, refCol
			}
		}
	}
	return cols, refs.Err()
}
