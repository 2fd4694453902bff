package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatlonely/sqltable/log/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileLogger(t *testing.T, options *SLogOptions) (*SLog, string) {
	path := filepath.Join(t.TempDir(), "app.log")
	options.Output = &writer.Options{Type: "file", File: &writer.FileWriterOptions{Path: path}}
	l, err := NewSLogWithOptions(options)
	require.NoError(t, err)
	return l, path
}

func readLines(t *testing.T, path string) []string {
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(buf)), "\n")
}

func TestNewSLogWithOptions(t *testing.T) {
	_, err := NewSLogWithOptions(nil)
	assert.Error(t, err)

	_, err = NewSLogWithOptions(&SLogOptions{Level: "trace"})
	assert.Error(t, err)

	_, err = NewSLogWithOptions(&SLogOptions{Format: "xml"})
	assert.Error(t, err)

	l, err := NewSLogWithOptions(&SLogOptions{})
	require.NoError(t, err)
	assert.NoError(t, l.Close())
}

func TestSLogJSON(t *testing.T) {
	l, path := newFileLogger(t, &SLogOptions{
		Level:  "info",
		Format: "json",
		Fields: map[string]any{"service": "sqltable"},
	})

	l.Debug("hidden")
	l.Info("register table", "table", "users")
	l.With("dialect", "sqlite3").WithGroup("ddl").WarnContext(context.Background(), "slow", "ms", 12)
	l.ErrorContext(context.Background(), "failed")
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "register table", first["msg"])
	assert.Equal(t, "users", first["table"])
	assert.Equal(t, "sqltable", first["service"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "sqlite3", second["dialect"])
	assert.Equal(t, map[string]any{"ms": float64(12)}, second["ddl"])
}

func TestSLogText(t *testing.T) {
	l, path := newFileLogger(t, &SLogOptions{
		Level:      "debug",
		TimeFormat: "2006-01-02",
	})

	l.Debug("debug message", "k", "v")
	l.InfoContext(context.Background(), "info message")
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "level=DEBUG")
	assert.Contains(t, lines[0], "k=v")
	assert.Contains(t, lines[1], `msg="info message"`)
	assert.Regexp(t, `^time=\d{4}-\d{2}-\d{2} `, lines[1])
}
