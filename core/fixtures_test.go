package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xstater/tablex/dialect"
	"github.com/xstater/tablex/logger"
	"github.com/xstater/tablex/model"
)

type UserInfo struct {
	ID       int64 `tablex:"pk;auto"`
	UserName string
	Age      int32
}

type Transaction struct {
	ID     int64 `tablex:"pk;auto"`
	FromID int64 `tablex:"references:user_info(id)"`
	ToID   int64 `tablex:"references:user_info(id)"`
	Amount float64
}

func (Transaction) TableName() string { return "transactions" }

type Account struct {
	ID    int64  `tablex:"pk;auto"`
	Email string `tablex:"unique"`
	Note  *string
}

func init() {
	model.MustRegister(UserInfo{}, Transaction{}, Account{})
}

func mustDialect(t *testing.T, name string) dialect.Dialect {
	t.Helper()
	d, ok := dialect.Get(name)
	require.True(t, ok, name)
	return d
}

// openSQLite opens a private in-memory database on a single connection.
func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite", "file::memory:?_pragma=foreign_keys(1)", &Options{
		MaxOpenConns: 1,
		Logger:       logger.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTables(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	_, err := Execute[Result](ctx, db, CreateTable[UserInfo](), nil)
	require.NoError(t, err)
	_, err = Execute[Result](ctx, db, CreateTable[Transaction](), nil)
	require.NoError(t, err)
	_, err = Execute[Result](ctx, db, CreateTable[Account](), nil)
	require.NoError(t, err)
}
