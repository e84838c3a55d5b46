package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/internal/adapters/logger"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger with an injected bytes.Buffer for isolated testing.
// It also sets NO_COLOR=1 to ensure deterministic output without ANSI escape codes.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New()
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Info(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Info("executed", "task", "raw/double", "input_hash", "ab12")

	g := goldie.New(t)
	g.Assert(t, "info_attrs", buf.Bytes())
}

func TestLogger_Warn(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Warn("stale expression")

	g := goldie.New(t)
	g.Assert(t, "warn_basic", buf.Bytes())
}

func TestLogger_Debug(t *testing.T) {
	lg, buf := newTestLogger(t)

	lg.Debug("memo hit", "task", "raw/load")
	assert.Empty(t, buf.String(), "debug is hidden by default")

	lg.SetVerbose(true)
	lg.Debug("memo hit", "task", "raw/load")
	assert.Equal(t, "○ memo hit task=raw/load\n", buf.String())

	buf.Reset()
	lg.SetVerbose(false)
	lg.Debug("memo hit")
	assert.Empty(t, buf.String())
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{
			name:       "standard error",
			err:        errors.New("boom"),
			goldenName: "error_standard",
		},
		{
			name: "wrapped store error",
			err: zerr.With(
				zerr.Wrap(errors.New("disk full"), "failed to write to store"),
				"task", "raw/double",
			),
			goldenName: "error_wrapped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Info("cache hit", "task", "raw/double")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "cache hit", entry["msg"])
	assert.Equal(t, "raw/double", entry["task"])

	buf.Reset()
	lg.Error(zerr.New("run failed"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "operation failed", entry["msg"])
}

func TestLogger_SetOutputKeepsMode(t *testing.T) {
	lg, _ := newTestLogger(t)
	lg.SetJSON(true)

	buf := &bytes.Buffer{}
	lg.SetOutput(buf)
	lg.Info("hello")

	assert.True(t, json.Valid(buf.Bytes()))
}
