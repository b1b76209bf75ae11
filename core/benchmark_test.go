package core

import (
	"testing"

	"github.com/xstater/tablex/dialect"
	"github.com/xstater/tablex/model"
)

func BenchmarkInsertSQL(b *testing.B) {
	d, _ := dialect.Get("postgres")
	builder := InsertRow[UserInfo]().ExcludeAutoIncrement().Or(ConflictIgnore)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.SQL(d); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCreateTableSQL(b *testing.B) {
	d, _ := dialect.Get("sqlite")
	builder := CreateTable[Transaction]().IfNotExists()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.SQL(d); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNamedBind(b *testing.B) {
	d, _ := dialect.Get("sqlite")
	u := &UserInfo{ID: 1, UserName: "ada", Age: 36}
	table, err := model.For[UserInfo]()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := columnArgs(d, table.Columns, Named(u)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExpand(b *testing.B) {
	d, _ := dialect.Get("postgres")
	args := []any{"ada", int32(36), true}
	const query = "INSERT INTO user_info (user_name, age, active) VALUES ($1, $2, $3)"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = expand(d, query, args)
	}
}
