package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xstater/tablex/core"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreaker rejects statements after Threshold consecutive engine
// failures, and lets a single probe through once ResetTimeout has passed.
// Constraint violations and missing rows are answers from a healthy engine
// and do not count as failures.
type CircuitBreaker struct {
	Threshold    int
	ResetTimeout time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
	now         func() time.Time
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

func (m *CircuitBreaker) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreaker) Init(*core.DB) error {
	return nil
}

func (m *CircuitBreaker) Shutdown() error {
	return nil
}

// State returns the current breaker state.
func (m *CircuitBreaker) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreaker) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func (m *CircuitBreaker) Process(ctx context.Context, call *core.Call, next core.Handler) (*core.Result, error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if m.clock().Sub(m.lastFailure) <= m.ResetTimeout {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.state = StateHalfOpen
		m.probing = true
	case StateHalfOpen:
		if m.probing {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.probing = true
	}
	m.mu.Unlock()

	res, err := next(ctx, call)

	m.mu.Lock()
	defer m.mu.Unlock()
	if isEngineFailure(err) {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}
	return res, err
}

func isEngineFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *core.StatementError
	if errors.As(err, &se) {
		return se.Kind == core.KindEngine
	}
	return !errors.Is(err, context.Canceled)
}

func (m *CircuitBreaker) recordFailure() {
	m.failures++
	m.lastFailure = m.clock()

	switch m.state {
	case StateClosed:
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	case StateHalfOpen:
		m.state = StateOpen
		m.probing = false
	}
}

func (m *CircuitBreaker) recordSuccess() {
	m.state = StateClosed
	m.failures = 0
	m.probing = false
}
