package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_Text(t *testing.T) {
	var out bytes.Buffer
	err := Chat(context.Background(), testConfig(t, ""), logging.NewNop(), ChatOptions{
		FlowPath:  writeFlow(t, "support.yaml", nameFlow()),
		ExitOnEnd: true,
		In:        strings.NewReader("hi\nAna\nignored\n"),
		Out:       &out,
	})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "chatting with support")
	assert.Contains(t, s, "What is your name?")
	assert.Contains(t, s, "Hello Ana")
	assert.Contains(t, s, "conversation ended")
}

func TestChat_JSON(t *testing.T) {
	var out bytes.Buffer
	err := Chat(context.Background(), testConfig(t, ""), logging.NewNop(), ChatOptions{
		FlowPath: writeFlow(t, "support.json", nameFlow()),
		JSON:     true,
		In:       strings.NewReader(`{"text":"hi"}` + "\n"),
		Out:      &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"message":"What is your name?"`)
	assert.NotContains(t, out.String(), "chatting with")
}

func TestChat_MissingFlow(t *testing.T) {
	err := Chat(context.Background(), testConfig(t, ""), logging.NewNop(), ChatOptions{FlowPath: "nope.yaml"})
	assert.Error(t, err)
}
