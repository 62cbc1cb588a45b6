package logger_adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"notification-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelInfo, IsJSON: true})

	logger.WithFields(port.Fields{"component": "RealtimeHub"}).Error("push failed", errors.New("timeout"), port.Fields{"user_id": "A"})
	logger.Debug("hidden", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "push failed", record["msg"])
	assert.Equal(t, "RealtimeHub", record["component"])
	assert.Equal(t, "A", record["user_id"])
	assert.Equal(t, "timeout", record["error"])
}

func TestSlogAdapter_TintText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelDebug, UseColor: true})
	logger.Debug("connected", port.Fields{"conn_id": "c1"})

	assert.Contains(t, buf.String(), "connected")
	assert.Contains(t, buf.String(), "c1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

type fakeFluent struct {
	tags     []string
	messages []map[string]interface{}
	closed   bool
}

func (f *fakeFluent) Post(tag string, message interface{}) error {
	f.tags = append(f.tags, tag)
	f.messages = append(f.messages, map[string]interface{}(message.(port.Fields)))
	return nil
}

func (f *fakeFluent) Close() error {
	f.closed = true
	return nil
}

func TestFluentLoggerAdapter(t *testing.T) {
	client := &fakeFluent{}
	adapter, err := NewFluentLoggerAdapter(client, "notification-service", slog.LevelInfo)
	require.NoError(t, err)

	id := uuid.New()
	logger := adapter.WithFields(port.Fields{"notification_id": id})
	logger.Debug("skipped", nil)
	logger.Error("store failed", errors.New("conn reset"), port.Fields{"user_id": "A"})

	require.Len(t, client.tags, 1)
	assert.Equal(t, "error", client.tags[0])
	assert.Equal(t, "notification-service", client.messages[0]["app"])

	msg := client.messages[0]
	assert.Equal(t, "error", msg["level"])
	assert.Equal(t, "store failed", msg["message"])
	assert.Equal(t, "conn reset", msg["error"])
	assert.Equal(t, id.String(), msg["notification_id"])
	assert.Equal(t, "A", msg["user_id"])

	require.NoError(t, adapter.Close())
	assert.True(t, client.closed)
}

func TestNewFluentLoggerAdapter_NilClient(t *testing.T) {
	_, err := NewFluentLoggerAdapter(nil, "app", nil)
	assert.Error(t, err)
}

type countingLogger struct {
	calls  int
	fields port.Fields
}

func (c *countingLogger) Info(msg string, fields port.Fields)             { c.calls++ }
func (c *countingLogger) Warn(msg string, fields port.Fields)             { c.calls++ }
func (c *countingLogger) Error(msg string, err error, fields port.Fields) { c.calls++ }
func (c *countingLogger) Debug(msg string, fields port.Fields)            { c.calls++ }
func (c *countingLogger) WithFields(fields port.Fields) port.LoggerPort {
	c.fields = fields
	return c
}

func TestMultiLoggerAdapter(t *testing.T) {
	_, err := NewMultiLoggerAdapter()
	assert.Error(t, err)

	single := &countingLogger{}
	logger, err := NewMultiLoggerAdapter(single, nil)
	require.NoError(t, err)
	assert.Same(t, single, logger)

	a, b := &countingLogger{}, &countingLogger{}
	logger, err = NewMultiLoggerAdapter(a, b)
	require.NoError(t, err)

	enriched := logger.WithFields(port.Fields{"k": "v"})
	enriched.Info("x", nil)
	enriched.Error("y", nil, nil)

	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, port.Fields{"k": "v"}, a.fields)
}
