package logging

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// captureJSON points the shared logger at a buffer for the test.
func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := replace(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { replace(prev) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input), "input %q", input)
	}
}

func TestLReturnsSameLogger(t *testing.T) {
	prev := replace(nil)
	t.Cleanup(func() { replace(prev) })

	assert.Same(t, L(), L())
}

func TestFatalLogsAndExits(t *testing.T) {
	buf := captureJSON(t)

	code := -1
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = os.Exit })

	Fatal("cannot start", "reason", "port in use")

	require.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"reason":"port in use"`)
}

func TestComponentTagsLines(t *testing.T) {
	buf := captureJSON(t)

	Component("ingest").Info("batch accepted", "accepted", 3)

	assert.Contains(t, buf.String(), `"component":"ingest"`)
	assert.Contains(t, buf.String(), `"accepted":3`)
}

func TestSettingsFromEnvironment(t *testing.T) {
	t.Setenv("KOHORT_LOG_LEVEL", "error")
	t.Setenv("KOHORT_LOG_FORMAT", "structured")
	t.Setenv("KOHORT_LOG_SOURCE", "TRUE")

	s := currentSettings()
	assert.Equal(t, settings{level: slog.LevelError, json: true, source: true}, s)
	assert.Equal(t, os.Stdout, s.sink())

	t.Setenv("KOHORT_LOG_FORMAT", "text")
	assert.Equal(t, os.Stderr, currentSettings().sink())
}

func TestTextHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newHandler(&buf, settings{level: slog.LevelWarn}))

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestZapLevelMapping(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, zapLevel(slog.LevelDebug))
	assert.Equal(t, zapcore.InfoLevel, zapLevel(slog.LevelInfo))
	assert.Equal(t, zapcore.WarnLevel, zapLevel(slog.LevelWarn))
	assert.Equal(t, zapcore.ErrorLevel, zapLevel(slog.LevelError))
}

func TestZapFollowsLogLevel(t *testing.T) {
	t.Setenv("KOHORT_LOG_LEVEL", "warn")
	core := Zap().Core()
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}
