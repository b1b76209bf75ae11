package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/xstater/tablex/core"
)

// MemoryCache caches query results in process.
// Caching is enabled per call with WithCacheTTL. The zero value is ready to use.
type MemoryCache struct {
	// CleanupInterval is how often expired entries are swept. Defaults to a minute.
	CleanupInterval time.Duration

	mu        sync.RWMutex
	items     map[string]memoryEntry
	stopClean chan struct{}
	stopOnce  sync.Once
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		CleanupInterval: time.Minute,
		items:           make(map[string]memoryEntry),
		stopClean:       make(chan struct{}),
	}
}

func (m *MemoryCache) Name() string {
	return "MemoryCache"
}

func (m *MemoryCache) Init(*core.DB) error {
	interval := m.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	m.mu.Lock()
	if m.items == nil {
		m.items = make(map[string]memoryEntry)
	}
	if m.stopClean == nil {
		m.stopClean = make(chan struct{})
	}
	stop := m.stopClean
	m.mu.Unlock()

	go m.cleanupLoop(interval, stop)
	return nil
}

func (m *MemoryCache) Shutdown() error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stopClean != nil {
			close(m.stopClean)
		}
	})
	return nil
}

func (m *MemoryCache) cleanupLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *MemoryCache) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, v := range m.items {
		if v.expired(now) {
			delete(m.items, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Process(ctx context.Context, call *core.Call, next core.Handler) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, call)
	if !ok {
		return next(ctx, call)
	}
	key := cacheKey(call)

	m.mu.RLock()
	entry, found := m.items[key]
	m.mu.RUnlock()

	if found {
		if !entry.expired(time.Now()) {
			if err := decodeInto(entry.data, call.Dest); err == nil {
				return cachedResult(call), nil
			}
		} else {
			m.mu.Lock()
			delete(m.items, key)
			m.mu.Unlock()
		}
	}

	res, err := next(ctx, call)
	if err != nil {
		return res, err
	}

	data, err := encode(call.Dest)
	if err != nil {
		return res, nil
	}
	entry = memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	if m.items == nil {
		m.items = make(map[string]memoryEntry)
	}
	m.items[key] = entry
	m.mu.Unlock()

	return res, nil
}
