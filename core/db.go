package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xstater/tablex/dialect"
	"github.com/xstater/tablex/logger"
	"github.com/xstater/tablex/model"
	"github.com/xstater/tablex/pool"
)

// Options defines the configuration for the DB connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Logger receives one entry per statement. Defaults to logger.New(nil).
	Logger logger.Logger
}

// DB is the main entry point for tablex.
// It manages the database connection pool and prepares statements for builders.
type DB struct {
	pool        pool.Pool
	dialect     dialect.Dialect
	logger      logger.Logger
	middlewares []Middleware
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	if _, ok := dialect.Get(driver); !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownDialect, driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(driver, sqlDB, opts)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.pool.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB wraps an existing *sql.DB. dialectName selects the dialect, usually
// the driver name the pool was opened with.
func OpenDB(dialectName string, sqlDB *sql.DB, opts *Options) (*DB, error) {
	d, ok := dialect.Get(dialectName)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownDialect, dialectName)
	}

	p := pool.NewStdPool(sqlDB)
	db := &DB{
		pool:    p,
		dialect: d,
	}
	if opts != nil {
		(&pool.Options{
			MaxOpenConns:    opts.MaxOpenConns,
			MaxIdleConns:    opts.MaxIdleConns,
			ConnMaxLifetime: opts.ConnMaxLifetime,
		}).Apply(p)
		db.logger = opts.Logger
	}
	if db.logger == nil {
		db.logger = logger.New(nil)
	}
	return db, nil
}

// Close shuts down middleware and closes the database connection.
func (db *DB) Close() error {
	var errs []error
	for _, mw := range db.middlewares {
		if err := mw.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mw.Name(), err))
		}
	}
	if err := db.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Dialect returns the dialect statements are rendered for.
func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Logger returns the statement logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// Pool exposes the underlying connection pool.
func (db *DB) Pool() pool.Pool {
	return db.pool
}

// Use initializes and appends middleware. Middleware run in the order added.
func (db *DB) Use(mws ...Middleware) error {
	for _, mw := range mws {
		if err := mw.Init(db); err != nil {
			return fmt.Errorf("init %s: %w", mw.Name(), err)
		}
		db.middlewares = append(db.middlewares, mw)
	}
	return nil
}

// PrepareContext prepares query on the pool.
func (db *DB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return db.pool.PrepareContext(ctx, query)
}

// Dispatch runs call through the middleware chain. The innermost step logs
// the statement and classifies engine errors.
func (db *DB) Dispatch(ctx context.Context, call *Call, next Handler) (*Result, error) {
	h := func(ctx context.Context, call *Call) (*Result, error) {
		start := time.Now()
		res, err := next(ctx, call)
		db.logSQL(call.SQL, time.Since(start), err, call.Args...)
		if err != nil {
			return nil, wrapError(db.dialect, call.SQL, err)
		}
		return res, nil
	}
	for i := len(db.middlewares) - 1; i >= 0; i-- {
		mw, inner := db.middlewares[i], h
		h = func(ctx context.Context, call *Call) (*Result, error) {
			return mw.Process(ctx, call, inner)
		}
	}
	return h(ctx, call)
}

// logSQL logs the SQL execution if a logger is set.
func (db *DB) logSQL(sql string, duration time.Duration, err error, args ...any) {
	if db.logger != nil {
		db.logger.SQL(sql, duration, err, args...)
	}
}

// Exec executes a raw SQL statement without returning any rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return Execute[Result](ctx, db, Raw(query), Positional(args...))
}

// Transaction executes a function within a database transaction.
// The transaction is committed when fn returns nil and rolled back otherwise.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	sqlTx, err := db.pool.BeginTx(ctx, nil)
	db.logSQL("BEGIN", time.Since(start), err)
	if err != nil {
		return err
	}

	tx := &Tx{
		db:    db,
		sqlTx: sqlTx,
	}

	defer func() {
		if p := recover(); p != nil {
			start := time.Now()
			rbErr := sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start), rbErr)
			panic(p)
		} else if err != nil {
			start := time.Now()
			rbErr := sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start), rbErr)
		} else {
			start := time.Now()
			err = sqlTx.Commit()
			db.logSQL("COMMIT", time.Since(start), err)
		}
	}()

	err = fn(tx)
	return err
}

// HasTable reports whether a table with the given name exists.
func (db *DB) HasTable(ctx context.Context, name string) (bool, error) {
	return hasTable(ctx, db, name)
}

func hasTable(ctx context.Context, conn Conn, name string) (bool, error) {
	query, args := conn.Dialect().HasTableSQL(name)
	counts, err := Execute[[]int64](ctx, conn, Query[int64](query), Positional(args...))
	if err != nil {
		return false, err
	}
	return len(counts) > 0 && counts[0] > 0, nil
}

// AutoMigrate creates the tables of the given records that do not exist yet.
// Referenced tables are created before the tables that reference them.
func (db *DB) AutoMigrate(ctx context.Context, values ...any) error {
	tables, err := migrationOrder(values)
	if err != nil {
		return err
	}
	for _, table := range tables {
		exists, err := db.HasTable(ctx, table.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		query, err := createTableSQL(db.dialect, table, false)
		if err != nil {
			return err
		}
		if _, err := Execute[Result](ctx, db, Raw(query), nil); err != nil {
			return err
		}
		db.logger.Info("created table %s", table.Name)
	}
	return nil
}

// migrationOrder derives the tables of values and sorts them so that every
// table follows the tables it references. Reference cycles are broken at the
// point they are found.
func migrationOrder(values []any) ([]*model.Table, error) {
	tables := make([]*model.Table, 0, len(values))
	wanted := make(map[*model.Table]bool, len(values))
	// derive everything first so references between the values resolve
	for _, v := range values {
		t, err := model.Of(v)
		if err != nil {
			return nil, err
		}
		if !wanted[t] {
			wanted[t] = true
			tables = append(tables, t)
		}
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*model.Table]int, len(tables))
	ordered := make([]*model.Table, 0, len(tables))
	var visit func(t *model.Table) error
	visit = func(t *model.Table) error {
		if state[t] != 0 {
			return nil
		}
		state[t] = visiting
		deps, err := t.Dependencies()
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if wanted[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[t] = done
		ordered = append(ordered, t)
		return nil
	}
	for _, t := range tables {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
