package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo, "json")

	log.Error("boom", "error", errors.New("disk full"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "disk full", line["err"])
	assert.NotContains(t, line, "error")
}

func TestNewWithWriter_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelWarn, "text")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}
