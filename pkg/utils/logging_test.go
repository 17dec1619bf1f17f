package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{name: "debug level", input: "DEBUG", expected: DEBUG},
		{name: "info level", input: "INFO", expected: INFO},
		{name: "warn level", input: "WARN", expected: WARN},
		{name: "warning level", input: "WARNING", expected: WARN},
		{name: "error level", input: "ERROR", expected: ERROR},
		{name: "case insensitive", input: "debug", expected: DEBUG},
		{name: "invalid level", input: "INVALID", expected: INFO, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if result != tt.expected {
				t.Errorf("ParseLogLevel() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(LoggerConfig{Level: DEBUG, Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = NewLogger(LoggerConfig{Level: INFO, Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggerConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestLoggerWithComponent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromCore(core).WithComponent("subset")

	logger.Infow("box computed", "width", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "box computed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "subset", fields["component"])
	assert.EqualValues(t, 3, fields["width"])
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	var logger *Logger
	assert.NotPanics(t, func() { logger.OrNop().Debugw("ignored") })
}

func TestBytes(t *testing.T) {
	t.Parallel()

	n, err := ParseBytes("512MB")
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024*1024), n)

	n, err = ParseBytes("2048")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), n)

	_, err = ParseBytes("")
	assert.Error(t, err)

	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "10 B", FormatBytes(10))
}
