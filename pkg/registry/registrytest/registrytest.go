// Package registrytest provides an in-memory registry.Client for tests.
package registrytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/registry"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

type Registry struct {
	mu     sync.Mutex
	graphs map[registry.GraphRef]map[string]registry.Schema
	calls  map[string]int

	// Err is returned by every call when set.
	Err error
}

func New() *Registry {
	return &Registry{
		graphs: map[registry.GraphRef]map[string]registry.Schema{},
		calls:  map[string]int{},
	}
}

// Publish stores schema under graphRef, graphRef has to be valid.
func (r *Registry) Publish(graphRef, subgraph string, schema registry.Schema) *Registry {
	ref, err := registry.ParseGraphRef(graphRef)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graphs[ref] == nil {
		r.graphs[ref] = map[string]registry.Schema{}
	}
	r.graphs[ref][subgraph] = schema
	return r
}

// Calls returns how often method was invoked.
func (r *Registry) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *Registry) FetchSubgraphs(_ context.Context, graphRef registry.GraphRef) (map[string]supergraphconfig.SubgraphConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["FetchSubgraphs"]++
	if r.Err != nil {
		return nil, r.Err
	}
	graph, ok := r.graphs[graphRef]
	if !ok {
		return nil, fmt.Errorf("graph %s: %w", graphRef, registry.ErrSubgraphNotFound)
	}
	subgraphs := make(map[string]supergraphconfig.SubgraphConfig, len(graph))
	for name, schema := range graph {
		subgraphs[name] = supergraphconfig.SubgraphConfig{
			RoutingURL: schema.RoutingURL,
			Schema:     supergraphconfig.SDLSource{SDL: schema.SDL},
		}
	}
	return subgraphs, nil
}

func (r *Registry) FetchSubgraph(_ context.Context, graphRef registry.GraphRef, subgraph string) (registry.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["FetchSubgraph"]++
	if r.Err != nil {
		return registry.Schema{}, r.Err
	}
	schema, ok := r.graphs[graphRef][subgraph]
	if !ok {
		return registry.Schema{}, fmt.Errorf("%s/%s: %w", graphRef, subgraph, registry.ErrSubgraphNotFound)
	}
	return schema, nil
}
