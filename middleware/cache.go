package middleware

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/xstater/tablex/core"
)

// KeyPrefix is prepended to every cache key.
const KeyPrefix = "tablex:cache:"

// Forever keeps a cached result until it is evicted.
const Forever time.Duration = -1

type ttlKey struct{}

// WithCacheTTL enables result caching for the queries run with ctx.
// A ttl of 0 disables caching, Forever keeps the entry without expiry.
func WithCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, ttlKey{}, ttl)
}

// cacheTTL reports the ttl attached to ctx and whether call may be cached.
func cacheTTL(ctx context.Context, call *core.Call) (time.Duration, bool) {
	if call.Op != core.OpQuery || call.Dest == nil {
		return 0, false
	}
	ttl, ok := ctx.Value(ttlKey{}).(time.Duration)
	if !ok || ttl == 0 {
		return 0, false
	}
	return ttl, true
}

// cacheKey identifies a result by statement, arguments and destination type.
func cacheKey(call *core.Call) string {
	return fmt.Sprintf("%s%T:%s:%v", KeyPrefix, call.Dest, call.SQL, call.Args)
}

func encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// decodeInto decodes data into dest, which must be a pointer. dest is left
// untouched when decoding fails.
func decodeInto(data []byte, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("cache destination %T is not a pointer", dest)
	}
	tmp := reflect.New(rv.Type().Elem())
	if err := msgpack.Unmarshal(data, tmp.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(tmp.Elem())
	return nil
}

func cachedResult(call *core.Call) *core.Result {
	n := int64(0)
	if rv := reflect.ValueOf(call.Dest).Elem(); rv.Kind() == reflect.Slice {
		n = int64(rv.Len())
	}
	return &core.Result{RowsAffected: n, Data: call.Dest}
}
