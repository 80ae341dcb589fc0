package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loopFlow = `{
  "nodes": [
    {"id": "start", "type": "start"},
    {"id": "ping", "type": "send_message", "data": {"message": "ping"}},
    {"id": "pong", "type": "send_message", "data": {"message": "pong"}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "ping"},
    {"id": "e2", "source": "ping", "target": "pong"},
    {"id": "e3", "source": "pong", "target": "ping"}
  ]
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		_ = validateCmd.Flags().Set("strict", "false")
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "botflow version dev\n", out)
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.json")
	require.NoError(t, os.WriteFile(path, []byte(loopFlow), 0o644))

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "stages: 3")
	assert.Contains(t, out, "warning: auto-chain cycle")

	_, err = execute(t, "validate", "--strict", path)
	assert.EqualError(t, err, "1 flow(s) failed validation")
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes": [], "edges": []}`), 0o644))

	out, err := execute(t, "validate", path)
	assert.Error(t, err)
	assert.Contains(t, out, "invalid")
}

func TestGraphCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.json")
	require.NoError(t, os.WriteFile(path, []byte(loopFlow), 0o644))

	out, err := execute(t, "graph", path)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "pong --> ping")
}
