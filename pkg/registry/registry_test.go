package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/registry"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/registry/registrytest"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

func TestParseGraphRef(t *testing.T) {
	ref, err := registry.ParseGraphRef("my-graph@staging")
	require.NoError(t, err)
	assert.Equal(t, registry.GraphRef{Name: "my-graph", Variant: "staging"}, ref)
	assert.Equal(t, "my-graph@staging", ref.String())

	ref, err = registry.ParseGraphRef("my-graph")
	require.NoError(t, err)
	assert.Equal(t, "my-graph@current", ref.String())

	for _, invalid := range []string{"", "@current", "1graph@current", "graph@", "graph@a@b"} {
		_, err := registry.ParseGraphRef(invalid)
		assert.ErrorIs(t, err, registry.ErrInvalidGraphRef, invalid)
	}
}

func TestRemoteConfig(t *testing.T) {
	reg := registrytest.New().
		Publish("my-graph@current", "accounts", registry.Schema{SDL: "type Query { a: Int }", RoutingURL: "http://accounts"})
	ref, _ := registry.ParseGraphRef("my-graph@current")

	config, err := registry.RemoteConfig(context.Background(), reg, ref)
	require.NoError(t, err)
	assert.Equal(t, supergraphconfig.SubgraphConfig{
		RoutingURL: "http://accounts",
		Schema:     supergraphconfig.SDLSource{SDL: "type Query { a: Int }"},
	}, config.Subgraphs["accounts"])

	missing, _ := registry.ParseGraphRef("other@current")
	_, err = registry.RemoteConfig(context.Background(), reg, missing)
	assert.ErrorIs(t, err, registry.ErrSubgraphNotFound)
}

func TestCachingClient(t *testing.T) {
	ctx := context.Background()
	reg := registrytest.New().
		Publish("my-graph@current", "accounts", registry.Schema{SDL: "type Query { a: Int }", RoutingURL: "http://accounts"}).
		Publish("my-graph@current", "products", registry.Schema{SDL: "type Query { p: Int }", RoutingURL: "http://products"})
	ref, _ := registry.ParseGraphRef("my-graph@current")

	client, err := registry.NewCachingClient(reg, 0)
	require.NoError(t, err)

	t.Run("fetch one subgraph once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			schema, err := client.FetchSubgraph(ctx, ref, "accounts")
			require.NoError(t, err)
			assert.Equal(t, "type Query { a: Int }", schema.SDL)
		}
		assert.Equal(t, 1, reg.Calls("FetchSubgraph"))
	})

	t.Run("listing fills the cache", func(t *testing.T) {
		client.Purge()
		_, err := client.FetchSubgraphs(ctx, ref)
		require.NoError(t, err)

		schema, err := client.FetchSubgraph(ctx, ref, "products")
		require.NoError(t, err)
		assert.Equal(t, "http://products", schema.RoutingURL)
		assert.Equal(t, 1, reg.Calls("FetchSubgraph"))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		_, err := client.FetchSubgraph(ctx, ref, "reviews")
		assert.ErrorIs(t, err, registry.ErrSubgraphNotFound)
		_, err = client.FetchSubgraph(ctx, ref, "reviews")
		assert.ErrorIs(t, err, registry.ErrSubgraphNotFound)
		assert.Equal(t, 3, reg.Calls("FetchSubgraph"))
	})
}
