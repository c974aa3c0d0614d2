package supergraphconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/testing/goldie"
)

const fullConfig = `
federation_version: =2.3.2
subgraphs:
  accounts:
    routing_url: http://localhost:4001
    schema:
      file: ./accounts.graphql
  products:
    schema:
      subgraph_url: http://localhost:4002/graphql
      introspection_headers:
        Authorization: Bearer token
  reviews:
    routing_url: http://localhost:4003
    schema:
      graphref: my-graph@current
      subgraph: reviews
  inventory:
    routing_url: http://localhost:4004
    schema:
      sdl: "type Query { i: Int }"
`

func TestParse(t *testing.T) {
	t.Run("all schema sources", func(t *testing.T) {
		config, err := Parse([]byte(fullConfig))
		require.NoError(t, err)

		require.NotNil(t, config.FederationVersion)
		assert.Equal(t, "=2.3.2", config.FederationVersion.String())
		assert.Equal(t, []string{"accounts", "inventory", "products", "reviews"}, config.Names())

		assert.Equal(t, SubgraphConfig{
			RoutingURL: "http://localhost:4001",
			Schema:     FileSource{Path: "./accounts.graphql"},
		}, config.Subgraphs["accounts"])
		assert.Equal(t, SubgraphConfig{
			Schema: IntrospectionSource{
				URL:     "http://localhost:4002/graphql",
				Headers: map[string]string{"Authorization": "Bearer token"},
			},
		}, config.Subgraphs["products"])
		assert.Equal(t, SubgraphConfig{
			RoutingURL: "http://localhost:4003",
			Schema:     RegistrySource{GraphRef: "my-graph@current", Subgraph: "reviews"},
		}, config.Subgraphs["reviews"])
		assert.Equal(t, SubgraphConfig{
			RoutingURL: "http://localhost:4004",
			Schema:     SDLSource{SDL: "type Query { i: Int }"},
		}, config.Subgraphs["inventory"])
	})

	t.Run("federation version is optional", func(t *testing.T) {
		config, err := Parse([]byte("subgraphs:\n  a:\n    schema:\n      file: a.graphql\n"))
		require.NoError(t, err)
		assert.Nil(t, config.FederationVersion)
	})

	t.Run("numeric federation version", func(t *testing.T) {
		config, err := Parse([]byte("federation_version: 2\nsubgraphs: {}\n"))
		require.NoError(t, err)
		require.NotNil(t, config.FederationVersion)
		assert.True(t, config.FederationVersion.Equal(LatestFedTwo))
	})

	t.Run("empty document", func(t *testing.T) {
		config, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, config.Subgraphs)
	})

	invalid := map[string]string{
		"malformed yaml":          "subgraphs: [",
		"missing schema source":   "subgraphs:\n  a:\n    routing_url: http://a\n    schema: {}\n",
		"two schema sources":      "subgraphs:\n  a:\n    schema:\n      file: a.graphql\n      sdl: \"type Query { a: Int }\"\n",
		"graphref without name":   "subgraphs:\n  a:\n    schema:\n      graphref: g@current\n",
		"headers without url":     "subgraphs:\n  a:\n    schema:\n      file: a.graphql\n      introspection_headers: {a: b}\n",
		"unknown field":           "subgraphs:\n  a:\n    routing: http://a\n    schema:\n      file: a.graphql\n",
		"invalid federation":      "federation_version: three\nsubgraphs: {}\n",
		"unsupported fed version": "federation_version: =3.0.0\nsubgraphs: {}\n",
	}
	for name, input := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supergraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, config.Subgraphs, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	config, err = ParseReader(strings.NewReader(fullConfig))
	require.NoError(t, err)
	assert.Len(t, config.Subgraphs, 4)
}

func TestConfig_Marshal(t *testing.T) {
	version := LatestFedTwo
	config := &Config{
		FederationVersion: &version,
		Subgraphs: map[string]SubgraphConfig{
			"products": {
				RoutingURL: "http://localhost:4002",
				Schema: IntrospectionSource{
					URL:     "http://localhost:4002/graphql",
					Headers: map[string]string{"Authorization": "Bearer token"},
				},
			},
			"accounts": {
				RoutingURL: "http://localhost:4001",
				Schema:     FileSource{Path: "./accounts.graphql"},
			},
		},
	}

	data, err := config.Marshal()
	require.NoError(t, err)
	goldie.Assert(t, "supergraph_config", data)

	reparsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, config.Subgraphs, reparsed.Subgraphs)
	assert.True(t, reparsed.FederationVersion.Equal(LatestFedTwo))
}

func TestConfig_MarshalSDL(t *testing.T) {
	sdl := "extend schema @link(url: \"https://specs.apollo.dev/federation/v2.3\", import: [\"@key\"])\n\ntype Query {\n  p: Int\n}\n"
	config := &Config{
		Subgraphs: map[string]SubgraphConfig{
			"products": {RoutingURL: "http://localhost:4002", Schema: SDLSource{SDL: sdl}},
		},
	}

	data, err := config.Marshal()
	require.NoError(t, err)

	reparsed, err := Parse(data)
	require.NoError(t, err)
	assert.Nil(t, reparsed.FederationVersion)
	assert.Equal(t, SDLSource{SDL: sdl}, reparsed.Subgraphs["products"].Schema)
}

func TestMerge(t *testing.T) {
	fedOne := LatestFedOne
	remote := &Config{
		FederationVersion: &fedOne,
		Subgraphs: map[string]SubgraphConfig{
			"accounts": {RoutingURL: "http://remote/accounts", Schema: SDLSource{SDL: "type Query { a: Int }"}},
			"products": {RoutingURL: "http://remote/products", Schema: SDLSource{SDL: "type Query { p: Int }"}},
		},
	}
	local := &Config{
		Subgraphs: map[string]SubgraphConfig{
			"products": {RoutingURL: "http://localhost:4002", Schema: FileSource{Path: "products.graphql"}},
			"reviews":  {RoutingURL: "http://localhost:4003", Schema: FileSource{Path: "reviews.graphql"}},
		},
	}

	merged := Merge(remote, local)
	assert.Equal(t, []string{"accounts", "products", "reviews"}, merged.Names())
	assert.Equal(t, FileSource{Path: "products.graphql"}, merged.Subgraphs["products"].Schema)
	require.NotNil(t, merged.FederationVersion)
	assert.True(t, merged.FederationVersion.IsFedOne())

	fedTwo := LatestFedTwo
	local.FederationVersion = &fedTwo
	merged = Merge(remote, local)
	assert.True(t, merged.FederationVersion.IsFedTwo())

	assert.Len(t, Merge(nil, local).Subgraphs, 2)
}
