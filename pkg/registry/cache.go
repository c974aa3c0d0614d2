package registry

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

const DefaultCacheSize = 128

type cacheKey struct {
	graphRef GraphRef
	subgraph string
}

// CachingClient remembers published subgraphs so a subgraph referenced several times
// during one session is fetched once. Listing subgraphs is never cached.
type CachingClient struct {
	client Client
	cache  *lru.Cache
}

func NewCachingClient(client Client, size int) (*CachingClient, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachingClient{client: client, cache: cache}, nil
}

func (c *CachingClient) FetchSubgraphs(ctx context.Context, graphRef GraphRef) (map[string]supergraphconfig.SubgraphConfig, error) {
	subgraphs, err := c.client.FetchSubgraphs(ctx, graphRef)
	if err != nil {
		return nil, err
	}
	for name, subgraph := range subgraphs {
		if source, ok := subgraph.Schema.(supergraphconfig.SDLSource); ok {
			c.cache.Add(cacheKey{graphRef: graphRef, subgraph: name}, Schema{SDL: source.SDL, RoutingURL: subgraph.RoutingURL})
		}
	}
	return subgraphs, nil
}

func (c *CachingClient) FetchSubgraph(ctx context.Context, graphRef GraphRef, subgraph string) (Schema, error) {
	key := cacheKey{graphRef: graphRef, subgraph: subgraph}
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Schema), nil
	}
	schema, err := c.client.FetchSubgraph(ctx, graphRef, subgraph)
	if err != nil {
		return Schema{}, err
	}
	c.cache.Add(key, schema)
	return schema, nil
}

// Purge drops every cached subgraph.
func (c *CachingClient) Purge() {
	c.cache.Purge()
}
