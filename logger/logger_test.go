package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "warn", Format: LogFormatJSON, Output: buf})

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Error("shown %d", 3)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "shown 2", entries[0]["message"])
	assert.Equal(t, "error", entries[1]["level"])

	buf.Reset()
	l.SetLevel(LogLevelSilent)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := New(&Config{Level: "info", Output: buf})
	child := base.WithFields(map[string]any{"table": "user_info"})

	child.Info("created")
	base.Info("plain")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "user_info", entries[0]["table"])
	assert.NotContains(t, entries[1], "table")
}

func TestSQL(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "debug", Output: buf})

	l.SQL("SELECT * FROM user_info WHERE age > ?", 3*time.Millisecond, nil, 18)
	l.SQL("INSERT INTO user_info (age) VALUES (?)", time.Millisecond, errors.New("locked"), 1)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "SELECT", entries[0]["message"])
	assert.Equal(t, "SELECT * FROM user_info WHERE age > ?", entries[0]["sql"])
	assert.Equal(t, "[18]", entries[0]["args"])
	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "locked", entries[1]["error"])

	// only failures at the default level
	buf.Reset()
	l.SetLevel(LogLevelWarn)
	l.SQL("SELECT 1", time.Millisecond, nil)
	assert.Empty(t, buf.String())
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: LogFormatText, Output: buf})
	l.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelSilent, ParseLevel("off"))
	assert.Equal(t, LogLevelWarn, ParseLevel(""))
}
