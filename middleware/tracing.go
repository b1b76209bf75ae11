package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xstater/tablex/core"
	"github.com/xstater/tablex/logger"
)

type traceKey string

const (
	requestIDKey traceKey = "request_id"
	traceIDKey   traceKey = "trace_id"
	userIPKey    traceKey = "user_ip"
)

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// WithUserIP attaches the caller's address to ctx.
func WithUserIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, userIPKey, ip)
}

// Tracing logs every statement with the request fields found in its context.
// Statements whose context carries none of them are passed through silently,
// unless GenerateTraceID is set.
type Tracing struct {
	// GenerateTraceID assigns a random trace id to calls without one.
	GenerateTraceID bool

	logger logger.Logger
}

func NewTracing() *Tracing {
	return &Tracing{}
}

func (m *Tracing) Name() string {
	return "Tracing"
}

func (m *Tracing) Init(db *core.DB) error {
	if m.logger == nil {
		m.logger = db.Logger()
	}
	return nil
}

func (m *Tracing) Shutdown() error {
	return nil
}

// SetLogger overrides the DB's logger.
func (m *Tracing) SetLogger(l logger.Logger) {
	m.logger = l
}

func (m *Tracing) Process(ctx context.Context, call *core.Call, next core.Handler) (*core.Result, error) {
	fields := make(map[string]any)
	for _, k := range []traceKey{requestIDKey, traceIDKey, userIPKey} {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			fields[string(k)] = v
		}
	}
	if _, ok := fields[string(traceIDKey)]; !ok && m.GenerateTraceID {
		id := uuid.NewString()
		fields[string(traceIDKey)] = id
		ctx = WithTraceID(ctx, id)
	}
	if len(fields) == 0 || m.logger == nil {
		return next(ctx, call)
	}

	start := time.Now()
	res, err := next(ctx, call)
	m.logger.WithFields(fields).SQL(call.SQL, time.Since(start), err, call.Args...)
	return res, err
}
