package composition

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/plugin"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/process"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subgraph"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

func accountsAndProducts() *FullyResolvedConfig {
	config := NewFullyResolvedConfig(supergraphconfig.LatestFedTwo)
	config.Subgraphs["accounts"] = subgraph.FromSDL("accounts", "http://accounts", "type Query { me: ID }")
	config.Subgraphs["products"] = subgraph.FromSDL("products", "http://products", "type Query { p: Int }")
	return config
}

func TestComposer_Compose(t *testing.T) {
	ctx := context.Background()

	newComposer := func(t *testing.T, executor process.Executor) (*Composer, string) {
		dir := t.TempDir()
		return NewComposer(plugin.Binary{Path: "supergraph"}, executor, dir, nil, nil), dir
	}

	requireNoTempFiles := func(t *testing.T, dir string) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	t.Run("success", func(t *testing.T) {
		executor := &composeExecutor{}
		composer, dir := newComposer(t, executor)

		success, err := composer.Compose(ctx, accountsAndProducts())
		require.NoError(t, err)
		assert.Equal(t, "type Query { me: ID }\ntype Query { p: Int }", success.SupergraphSDL)
		assert.Equal(t, []BuildHint{{Message: "composed accounts,products", Code: "INFO"}}, success.Hints)
		assert.True(t, success.FederationVersion.Equal(supergraphconfig.LatestFedTwo))

		require.Len(t, executor.paths, 1)
		assert.Regexp(t, `supergraph-[0-9a-f-]{36}\.yaml$`, executor.paths[0])
		assert.Equal(t, "2", executor.inputs[0].FederationVersion.String())
		requireNoTempFiles(t, dir)
	})

	t.Run("build errors", func(t *testing.T) {
		executor := &composeExecutor{}
		executor.setBuildErrors(
			BuildError{Message: "Field \"Query.me\" conflicts", Code: "INVALID_FIELD_SHARING", Nodes: []BuildNode{{Subgraph: "accounts"}}},
			BuildError{Message: "second"},
		)
		composer, dir := newComposer(t, executor)

		_, err := composer.Compose(ctx, accountsAndProducts())
		var buildErrors *BuildErrors
		require.ErrorAs(t, err, &buildErrors)
		assert.Equal(t, 1, buildErrors.ExitCode)
		require.Len(t, buildErrors.Errors, 2)
		assert.Equal(t, "accounts", buildErrors.Errors[0].Nodes[0].Subgraph)
		assert.EqualError(t, err, `composition failed with 2 errors: INVALID_FIELD_SHARING: Field "Query.me" conflicts; second`)
		requireNoTempFiles(t, dir)
	})

	t.Run("invalid output", func(t *testing.T) {
		composer, _ := newComposer(t, &composeExecutor{stdout: "panic: boom"})
		_, err := composer.Compose(ctx, accountsAndProducts())
		var buildErrors *BuildErrors
		require.ErrorAs(t, err, &buildErrors)
		assert.Equal(t, "INVALID_OUTPUT", buildErrors.Errors[0].Code)
		assert.EqualError(t, err, "composition failed: INVALID_OUTPUT: invalid composition output: panic: boom")
	})

	t.Run("non-zero exit without errors", func(t *testing.T) {
		composer, _ := newComposer(t, &composeExecutor{exitCode: 101, stdout: `{"Ok":{"supergraphSdl":"type Query { a: Int }"}}`})
		_, err := composer.Compose(ctx, accountsAndProducts())
		var buildErrors *BuildErrors
		require.ErrorAs(t, err, &buildErrors)
		assert.Equal(t, 101, buildErrors.ExitCode)
	})

	t.Run("binary does not start", func(t *testing.T) {
		composer, dir := newComposer(t, process.NewOSExecutor(nil))
		composer.binary = plugin.Binary{Path: "/does/not/exist/supergraph"}
		_, err := composer.Compose(ctx, accountsAndProducts())
		assert.ErrorIs(t, err, process.ErrStart)
		requireNoTempFiles(t, dir)
	})
}
