package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_FieldsAndLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(Category(CatData), String("comp", "repo"))

	log.Debug("hidden")
	log.Warn("save failed", Err(errors.New("disk full")), Int("n", 3), Err(nil))

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	got := lines[0]
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "save failed", got["message"])
	assert.Equal(t, "data", got["category"])
	assert.Equal(t, "repo", got["comp"])
	assert.Equal(t, float64(3), got["n"])
	assert.Contains(t, got, "caller")
}

func TestLogger_ZeroAndNop(t *testing.T) {
	t.Parallel()
	var zero Logger
	assert.True(t, zero.IsZero())
	assert.NotPanics(t, func() { zero.Info("dropped") })
	assert.False(t, Nop().IsZero())
	assert.False(t, zero.With(String("k", "v")).IsZero())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"":        "info",
		"DEBUG":   "debug",
		" trace ": "trace",
		"warning": "warn",
		"error":   "error",
		"loud":    "info",
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in).String(), in)
	}
}

// New sets zerolog globals, so this test stays serial.
func TestService_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantit.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})

	log.Debug("first", String("plant", "Fern"))
	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("filtered")
	log.Error("second")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, b)
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0]["message"])
	assert.Equal(t, "Fern", lines[0]["plant"])
	assert.Equal(t, "second", lines[1]["message"])
}
