package middleware

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xstater/tablex/core"
	"github.com/xstater/tablex/logger"
)

// SlowLog logs statements that take longer than Threshold.
type SlowLog struct {
	Threshold time.Duration
	// LogPath selects a dedicated JSON log file. When empty, entries go to
	// the DB's logger.
	LogPath string

	logger logger.Logger
	file   *os.File
}

// NewSlowLog creates a SlowLog middleware.
func NewSlowLog(threshold time.Duration, logPath string) *SlowLog {
	return &SlowLog{
		Threshold: threshold,
		LogPath:   logPath,
	}
}

// SetLogger overrides the destination. Useful in tests.
func (m *SlowLog) SetLogger(l logger.Logger) {
	m.logger = l
}

func (m *SlowLog) Name() string {
	return "SlowLog"
}

func (m *SlowLog) Init(db *core.DB) error {
	if m.logger != nil {
		return nil
	}

	if m.LogPath != "" {
		f, err := os.OpenFile(m.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open slow log file: %w", err)
		}
		m.file = f
		m.logger = logger.New(&logger.Config{Level: "warn", Format: logger.LogFormatJSON, Output: f})
		return nil
	}
	m.logger = db.Logger()
	return nil
}

func (m *SlowLog) Shutdown() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *SlowLog) Process(ctx context.Context, call *core.Call, next core.Handler) (*core.Result, error) {
	start := time.Now()
	res, err := next(ctx, call)
	duration := time.Since(start)

	if duration > m.Threshold && m.logger != nil {
		var rows int64
		if res != nil {
			rows = res.RowsAffected
		}
		m.logger.WithFields(map[string]any{
			"sql":      call.SQL,
			"args":     fmt.Sprint(call.Args),
			"duration": duration.String(),
			"rows":     rows,
			"op":       call.Op.String(),
		}).Warn("slow statement (threshold %s): err=%v", m.Threshold, err)
	}

	return res, err
}
