package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(format string, args ...any) { c.lines = append(c.lines, "debug") }
func (c *captureLogger) Info(format string, args ...any)  { c.lines = append(c.lines, "info") }
func (c *captureLogger) Warn(format string, args ...any)  { c.lines = append(c.lines, "warn") }
func (c *captureLogger) Error(format string, args ...any) { c.lines = append(c.lines, "error") }

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var sb strings.Builder
	logger := NewWriterLogger(&sb, "test", LevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept %d", 1)
	logger.Error("kept %d", 2)

	out := sb.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept 1")
	assert.Contains(t, out, "kept 2")
	assert.Contains(t, out, "[test]")
}

func TestMultiFansOut(t *testing.T) {
	a := &captureLogger{}
	b := &captureLogger{}

	logger := Multi(a, nil, b)
	logger.Info("hello")
	logger.Error("boom")

	require.Equal(t, []string{"info", "error"}, a.lines)
	require.Equal(t, []string{"info", "error"}, b.lines)
}

func TestMultiCollapsesToNop(t *testing.T) {
	logger := Multi(nil, nil)
	require.NotNil(t, logger)
	logger.Debug("must not panic")
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	inner := &captureLogger{}
	require.Equal(t, Logger(inner), OrNop(inner))
}
