package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/botflow/pkg/adapters/file"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/dsl"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlFlow = `
sessionTimeout: 600
analyticsEnabled: true
nodes:
  - id: start
    type: start
  - id: hello
    type: send_message
    data:
      message: "Hello, {{userName}}!"
  - id: bye
    type: end
edges:
  - {id: e1, source: start, target: hello}
  - {id: e2, source: hello, target: bye}
`

func greeting() *domain.FlowDefinition {
	b := dsl.New()
	b.Add("start").Start("").Go("hello")
	b.Add("hello").Send("Hello!").Go("bye")
	b.Add("bye").End("")
	return b.MustBuild()
}

func TestReadFlow_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "support.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlFlow), 0o644))

	def, err := file.ReadFlow(path)
	require.NoError(t, err)
	assert.Len(t, def.Nodes, 3)
	assert.Equal(t, domain.NodeSendMessage, def.Nodes[1].Type)
	assert.Equal(t, "Hello, {{userName}}!", def.Nodes[1].Data["message"])
	assert.Equal(t, 600, def.SessionTimeout)
	assert.True(t, def.AnalyticsEnabled)
	assert.Equal(t, "hello", def.Edges[0].Target)
}

func TestReadFlow_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes": [`), 0o644))

	_, err := file.ReadFlow(path)
	assert.ErrorContains(t, err, "broken.json")
}

func TestWriteFlow_RoundTrip(t *testing.T) {
	for _, name := range []string{"flow.json", "flow.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, file.WriteFlow(path, greeting()))

			def, err := file.ReadFlow(path)
			require.NoError(t, err)
			assert.Len(t, def.Nodes, 3)
			assert.Len(t, def.Edges, 2)
		})
	}
}

func TestCatalog_Contract(t *testing.T) {
	dir := t.TempDir()
	seeded := map[string]*domain.FlowDefinition{"sales": greeting()}
	require.NoError(t, file.WriteFlow(filepath.Join(dir, "sales.json"), greeting()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "support.yaml"), []byte(yamlFlow), 0o644))
	def, err := file.ReadFlow(filepath.Join(dir, "support.yaml"))
	require.NoError(t, err)
	seeded["support"] = def
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	ports.RunFlowSourceContract(t, file.NewCatalog(dir), seeded)
}

func TestCatalog_PublishUnpublish(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cat := file.NewCatalog(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "support.yaml"), []byte(yamlFlow), 0o644))

	require.NoError(t, cat.Publish(ctx, "sales", greeting()))
	assert.FileExists(t, filepath.Join(dir, "sales.json"))

	// Republishing a YAML flow keeps its format.
	require.NoError(t, cat.Publish(ctx, "support", greeting()))
	assert.NoFileExists(t, filepath.Join(dir, "support.json"))
	def, err := cat.LoadFlow(ctx, "support")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", def.Nodes[1].Data["message"])

	ids, err := cat.ListFlows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "support"}, ids)

	require.NoError(t, cat.Unpublish(ctx, "sales"))
	require.NoError(t, cat.Unpublish(ctx, "sales"))
	_, err = cat.LoadFlow(ctx, "sales")
	assert.ErrorIs(t, err, domain.ErrBotNotFound)
}

func TestCatalog_RejectsPathIDs(t *testing.T) {
	cat := file.NewCatalog(t.TempDir())
	ctx := context.Background()

	assert.ErrorIs(t, cat.Publish(ctx, "../escape", greeting()), file.ErrInvalidBotID)
	_, err := cat.LoadFlow(ctx, "a/b")
	assert.ErrorIs(t, err, domain.ErrBotNotFound)
}

func TestCatalog_MissingDirectory(t *testing.T) {
	ids, err := file.NewCatalog(filepath.Join(t.TempDir(), "nope")).ListFlows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
