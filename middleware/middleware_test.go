package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xstater/tablex/core"
	"github.com/xstater/tablex/logger"
)

type account struct {
	ID   int64 `tablex:"pk;auto"`
	Name string
}

const selectAccounts = "SELECT * FROM account WHERE id > $1"

func openMock(t *testing.T) (*core.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db, err := core.OpenDB("postgres", sqlDB, &core.Options{Logger: logger.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func selectAccountsAfter(ctx context.Context, db *core.DB, id int64) ([]account, error) {
	return core.Execute[[]account](ctx, db, core.SelectRows[account]().Where("id > $1"), core.Positional(id))
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "ada").
		AddRow(int64(2), "grace")
}

var wantAccounts = []account{{ID: 1, Name: "ada"}, {ID: 2, Name: "grace"}}

func TestMemoryCache(t *testing.T) {
	db, mock := openMock(t)
	cache := NewMemoryCache()
	require.NoError(t, db.Use(cache))

	ctx := WithCacheTTL(context.Background(), time.Minute)
	mock.ExpectPrepare(selectAccounts).ExpectQuery().WithArgs(int64(0)).WillReturnRows(accountRows())
	// the second run is still prepared but never queried
	mock.ExpectPrepare(selectAccounts)

	got, err := selectAccountsAfter(ctx, db, 0)
	require.NoError(t, err)
	assert.Equal(t, wantAccounts, got)
	assert.Equal(t, 1, cache.Len())

	got, err = selectAccountsAfter(ctx, db, 0)
	require.NoError(t, err)
	assert.Equal(t, wantAccounts, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCacheNeedsTTL(t *testing.T) {
	db, mock := openMock(t)
	cache := NewMemoryCache()
	require.NoError(t, db.Use(cache))

	for i := 0; i < 2; i++ {
		mock.ExpectPrepare(selectAccounts).ExpectQuery().WillReturnRows(accountRows())
	}
	for _, ctx := range []context.Context{
		context.Background(),
		WithCacheTTL(context.Background(), 0),
	} {
		_, err := selectAccountsAfter(ctx, db, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, cache.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	calls := 0
	next := func(ctx context.Context, call *core.Call) (*core.Result, error) {
		calls++
		*call.Dest.(*[]int64) = []int64{int64(calls)}
		return &core.Result{RowsAffected: 1}, nil
	}
	run := func(ttl time.Duration) []int64 {
		var out []int64
		call := &core.Call{Op: core.OpQuery, SQL: "SELECT 1", Dest: &out}
		_, err := cache.Process(WithCacheTTL(context.Background(), ttl), call, next)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, []int64{1}, run(time.Nanosecond))
	time.Sleep(time.Millisecond)
	assert.Equal(t, []int64{2}, run(Forever), "expired entry is refreshed")
	assert.Equal(t, []int64{2}, run(Forever))

	cache.cleanup()
	assert.Equal(t, 1, cache.Len(), "entries without expiry survive cleanup")
	require.NoError(t, cache.Shutdown())
	require.NoError(t, cache.Shutdown())
}

func TestMemoryCacheZeroValue(t *testing.T) {
	db, mock := openMock(t)
	cache := &MemoryCache{CleanupInterval: time.Hour}
	require.NoError(t, db.Use(cache))

	ctx := WithCacheTTL(context.Background(), time.Minute)
	mock.ExpectPrepare(selectAccounts).ExpectQuery().WithArgs(int64(0)).WillReturnRows(accountRows())
	mock.ExpectPrepare(selectAccounts)

	for i := 0; i < 2; i++ {
		got, err := selectAccountsAfter(ctx, db, 0)
		require.NoError(t, err)
		assert.Equal(t, wantAccounts, got)
	}
	assert.Equal(t, 1, cache.Len())
	require.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, cache.Shutdown())
	require.NoError(t, cache.Shutdown())
	assert.NoError(t, (&MemoryCache{}).Shutdown())
}

func TestCacheKeyIncludesDestination(t *testing.T) {
	cache := &MemoryCache{}
	ctx := WithCacheTTL(context.Background(), time.Minute)
	calls := 0

	var ids []int64
	_, err := cache.Process(ctx, &core.Call{Op: core.OpQuery, SQL: "SELECT 1", Dest: &ids},
		func(ctx context.Context, call *core.Call) (*core.Result, error) {
			calls++
			*call.Dest.(*[]int64) = []int64{1}
			return &core.Result{RowsAffected: 1}, nil
		})
	require.NoError(t, err)

	var names []string
	_, err = cache.Process(ctx, &core.Call{Op: core.OpQuery, SQL: "SELECT 1", Dest: &names},
		func(ctx context.Context, call *core.Call) (*core.Result, error) {
			calls++
			*call.Dest.(*[]string) = []string{"1"}
			return &core.Result{RowsAffected: 1}, nil
		})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"1"}, names)
	assert.Equal(t, 2, cache.Len())
}

func TestCacheSkipsWrites(t *testing.T) {
	cache := NewMemoryCache()
	var out core.Result
	call := &core.Call{Op: core.OpExec, SQL: "DELETE FROM account", Dest: &out}
	calls := 0
	next := func(ctx context.Context, call *core.Call) (*core.Result, error) {
		calls++
		return &core.Result{RowsAffected: 3}, nil
	}
	ctx := WithCacheTTL(context.Background(), time.Minute)
	for i := 0; i < 2; i++ {
		_, err := cache.Process(ctx, call, next)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Len())
}

type fakeRedis struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisCache(t *testing.T) {
	db, mock := openMock(t)
	client := newFakeRedis()
	require.NoError(t, db.Use(NewRedisCacheWithClient(client)))

	ctx := WithCacheTTL(context.Background(), Forever)
	mock.ExpectPrepare(selectAccounts).ExpectQuery().WithArgs(int64(0)).WillReturnRows(accountRows())
	mock.ExpectPrepare(selectAccounts)

	got, err := selectAccountsAfter(ctx, db, 0)
	require.NoError(t, err)
	assert.Equal(t, wantAccounts, got)

	key := KeyPrefix + "*[]middleware.account:" + selectAccounts + ":[0]"
	require.Contains(t, client.data, key)
	assert.Equal(t, time.Duration(0), client.ttls[key], "forever maps to no expiry")

	got, err = selectAccountsAfter(ctx, db, 0)
	require.NoError(t, err)
	assert.Equal(t, wantAccounts, got)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectClose()
	require.NoError(t, db.Close())
	assert.True(t, client.closed)
}

func TestRedisCacheReadFailureFallsThrough(t *testing.T) {
	client := newFakeRedis()
	client.getErr = errors.New("connection refused")
	cache := NewRedisCacheWithClient(client)

	var out []int64
	call := &core.Call{Op: core.OpQuery, SQL: "SELECT 1", Dest: &out}
	_, err := cache.Process(WithCacheTTL(context.Background(), time.Second), call,
		func(ctx context.Context, call *core.Call) (*core.Result, error) {
			*call.Dest.(*[]int64) = []int64{1}
			return &core.Result{RowsAffected: 1}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, out)
	assert.Equal(t, time.Second, client.ttls[KeyPrefix+"*[]int64:SELECT 1:[]"])
}

func TestSlowLog(t *testing.T) {
	db, mock := openMock(t)
	var buf bytes.Buffer
	slow := NewSlowLog(5*time.Millisecond, "")
	slow.SetLogger(logger.New(&logger.Config{Level: "warn", Output: &buf}))
	require.NoError(t, db.Use(slow))

	mock.ExpectPrepare(selectAccounts).ExpectQuery().
		WillDelayFor(20 * time.Millisecond).
		WillReturnRows(accountRows())
	mock.ExpectPrepare(selectAccounts).ExpectQuery().WillReturnRows(accountRows())

	_, err := selectAccountsAfter(context.Background(), db, 0)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow statement")
	assert.Contains(t, buf.String(), `"op":"query"`)
	assert.Contains(t, buf.String(), `"rows":2`)

	buf.Reset()
	slow.Threshold = time.Hour
	_, err = selectAccountsAfter(context.Background(), db, 0)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestTracing(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracing()
	tr.SetLogger(logger.New(&logger.Config{Level: "debug", Output: &buf}))
	next := func(ctx context.Context, call *core.Call) (*core.Result, error) {
		return &core.Result{}, nil
	}
	call := &core.Call{Op: core.OpExec, SQL: "DELETE FROM account"}

	_, err := tr.Process(context.Background(), call, next)
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "no request fields, nothing logged")

	ctx := WithUserIP(WithRequestID(context.Background(), "req-1"), "10.0.0.1")
	_, err = tr.Process(ctx, call, next)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"user_ip":"10.0.0.1"`)
	assert.Contains(t, buf.String(), `"message":"DELETE"`)

	buf.Reset()
	tr.GenerateTraceID = true
	var seen string
	_, err = tr.Process(context.Background(), call, func(ctx context.Context, call *core.Call) (*core.Result, error) {
		seen, _ = ctx.Value(traceIDKey).(string)
		return &core.Result{}, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 36)
	assert.Contains(t, buf.String(), seen)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	engineErr := &core.StatementError{Kind: core.KindEngine, SQL: "SELECT 1", Err: errors.New("connection reset")}
	conflict := &core.StatementError{Kind: core.KindConflict, SQL: "INSERT", Err: errors.New("duplicate")}
	result := func(err error) core.Handler {
		return func(context.Context, *core.Call) (*core.Result, error) {
			if err != nil {
				return nil, err
			}
			return &core.Result{}, nil
		}
	}
	ctx := context.Background()
	call := &core.Call{SQL: "SELECT 1"}

	// constraint violations are not failures
	for i := 0; i < 3; i++ {
		_, err := cb.Process(ctx, call, result(conflict))
		assert.True(t, core.IsConflict(err))
	}
	assert.Equal(t, StateClosed, cb.State())

	_, _ = cb.Process(ctx, call, result(engineErr))
	assert.Equal(t, StateClosed, cb.State())
	_, _ = cb.Process(ctx, call, result(engineErr))
	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Process(ctx, call, result(nil))
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// a failed probe opens the breaker again
	now = now.Add(2 * time.Minute)
	_, err = cb.Process(ctx, call, result(engineErr))
	assert.ErrorIs(t, err, engineErr.Err)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	_, err = cb.Process(ctx, call, result(nil))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}
