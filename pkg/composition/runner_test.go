package composition

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/watcher"
)

const runnerDebounce = 50 * time.Millisecond

func TestRunner(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	dir := t.TempDir()
	path := writeConfig(t, dir, `subgraphs:
  accounts:
    routing_url: http://accounts
    schema:
      file: accounts.graphql
  products:
    routing_url: http://products
    schema:
      sdl: "type Query { p: Int }"
`, map[string]string{"accounts.graphql": "type Query { me: ID }"})

	executor := &composeExecutor{}
	loaded, err := NewPipeline(
		WithInstaller(&fakeInstaller{}),
		WithExecutor(executor),
		WithTempDir(t.TempDir()),
		WithWatcherOptions(watcher.WithDebounce(runnerDebounce)),
	).LoadSupergraphConfig(ctx, ConfigInput{Path: path})
	require.NoError(t, err)
	resolved, err := loaded.ResolveFederationVersion(ctx, nil)
	require.NoError(t, err)
	run, err := resolved.InstallSupergraph(ctx, "")
	require.NoError(t, err)
	runner, err := run.Runner()
	require.NoError(t, err)

	events, handle := runner.Run(ctx)
	defer handle.Cancel()

	success := nextComposition(t, events).(Success)
	assert.Equal(t, "type Query { me: ID }\ntype Query { p: Int }", success.SupergraphSDL)
	assert.True(t, success.FederationVersion.IsFedOne())

	// the initial emissions of the subgraph watchers match the resolved config
	requireQuiet(t, events)
	assert.Equal(t, 1, executor.calls())

	t.Run("subgraph file change recomposes", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts.graphql"), []byte("type Query { me: String }"), 0o644))
		success := nextComposition(t, events).(Success)
		assert.Equal(t, "type Query { me: String }\ntype Query { p: Int }", success.SupergraphSDL)
	})

	t.Run("subgraph removed from config", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`subgraphs:
  accounts:
    routing_url: http://accounts
    schema:
      file: accounts.graphql
`), 0o644))
		success := nextComposition(t, events).(Success)
		assert.Equal(t, "type Query { me: String }", success.SupergraphSDL)
	})

	t.Run("subgraph added to config", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`subgraphs:
  accounts:
    routing_url: http://accounts
    schema:
      file: accounts.graphql
  reviews:
    routing_url: http://reviews
    schema:
      sdl: "type Query { r: Int }"
`), 0o644))
		success := nextComposition(t, events).(Success)
		assert.Equal(t, "type Query { me: String }\ntype Query { r: Int }", success.SupergraphSDL)
	})

	t.Run("schema file removed", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "accounts.graphql")))
		success := nextComposition(t, events).(Success)
		assert.Equal(t, "type Query { r: Int }", success.SupergraphSDL)
	})

	handle.Cancel()
	for range events {
	}
}

func TestRunner_InlineConfigIsNotWatched(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	loaded, err := NewPipeline(WithInstaller(&fakeInstaller{}), WithExecutor(&composeExecutor{})).LoadSupergraphConfig(ctx, ConfigInput{Inline: `subgraphs:
  products:
    routing_url: http://products
    schema:
      sdl: "type Query { p: Int }"
`})
	require.NoError(t, err)
	resolved, err := loaded.ResolveFederationVersion(ctx, nil)
	require.NoError(t, err)
	run, err := resolved.InstallSupergraph(ctx, "")
	require.NoError(t, err)
	runner, err := run.Runner(WithoutComposeOnStart())
	require.NoError(t, err)

	events, handle := runner.Run(ctx)
	requireQuiet(t, events)

	cancel()
	handle.Wait()
	_, ok := <-events
	assert.False(t, ok)
}
