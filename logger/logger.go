package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLevel converts a config string (debug, info, warn, error, silent) to a LogLevel.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "silent", "off", "none":
		return LogLevelSilent
	}
	return LogLevelWarn
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelSilent:
		return zerolog.Disabled
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "console"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface for logging SQL and internal messages
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	// SQL records one executed statement. Failed statements are logged at
	// error level, successful ones at debug.
	SQL(sql string, duration time.Duration, err error, args ...any)
}

// Config holds logger configuration
type Config struct {
	Level  string    // debug, info, warn, error, silent
	Format LogFormat // json, console
	Output io.Writer
}

// DefaultConfig logs warnings and errors as JSON to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "warn",
		Format: LogFormatJSON,
		Output: os.Stderr,
	}
}

// zeroLogger implements Logger on top of zerolog.
type zeroLogger struct {
	level  LogLevel
	format LogFormat
	writer io.Writer
	fields map[string]any
	zlog   zerolog.Logger
}

// New creates a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := &zeroLogger{
		level:  ParseLevel(cfg.Level),
		format: cfg.Format,
		writer: cfg.Output,
		fields: make(map[string]any),
	}
	if l.format == "" {
		l.format = LogFormatJSON
	}
	if l.writer == nil {
		l.writer = os.Stderr
	}
	l.rebuild()
	return l
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return New(&Config{Level: "silent", Output: io.Discard})
}

func (l *zeroLogger) rebuild() {
	out := l.writer
	if l.format == LogFormatText {
		out = zerolog.ConsoleWriter{Out: l.writer, TimeFormat: time.RFC3339}
	}
	l.zlog = zerolog.New(out).Level(l.level.zerolog()).With().Timestamp().Fields(l.fields).Logger()
}

func (l *zeroLogger) SetLevel(level LogLevel) {
	l.level = level
	l.rebuild()
}

func (l *zeroLogger) SetFormat(format LogFormat) {
	l.format = format
	l.rebuild()
}

func (l *zeroLogger) SetOutput(w io.Writer) {
	l.writer = w
	l.rebuild()
}

func (l *zeroLogger) WithFields(fields map[string]any) Logger {
	child := &zeroLogger{
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: make(map[string]any, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	child.rebuild()
	return child
}

func (l *zeroLogger) Debug(format string, args ...any) {
	l.zlog.Debug().Msgf(format, args...)
}

func (l *zeroLogger) Info(format string, args ...any) {
	l.zlog.Info().Msgf(format, args...)
}

func (l *zeroLogger) Warn(format string, args ...any) {
	l.zlog.Warn().Msgf(format, args...)
}

func (l *zeroLogger) Error(format string, args ...any) {
	l.zlog.Error().Msgf(format, args...)
}

func (l *zeroLogger) SQL(sql string, duration time.Duration, err error, args ...any) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	if !event.Enabled() {
		return
	}
	event.Str("sql", sql).
		Dur("duration", duration).
		Str("args", fmt.Sprintf("%v", args)).
		Msg(statementVerb(sql))
}

// statementVerb returns the leading keyword of a statement, used as the message.
func statementVerb(sqlStr string) string {
	s := strings.TrimSpace(sqlStr)
	if i := strings.IndexAny(s, " \t\n"); i > 0 {
		s = s[:i]
	}
	return strings.ToUpper(s)
}
