// Package registry declares the client used to fetch published subgraphs from a schema registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

const DefaultVariant = "current"

var (
	ErrInvalidGraphRef  = errors.New("invalid graph ref")
	ErrSubgraphNotFound = errors.New("subgraph not found")
)

var graphRefPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}(@[a-zA-Z0-9/._-]{1,63})?$`)

// GraphRef identifies a graph variant, written as graph@variant.
type GraphRef struct {
	Name    string
	Variant string
}

// ParseGraphRef parses graph@variant. The variant defaults to "current".
func ParseGraphRef(raw string) (GraphRef, error) {
	if !graphRefPattern.MatchString(raw) {
		return GraphRef{}, fmt.Errorf("%w %q: expected <graph>@<variant>", ErrInvalidGraphRef, raw)
	}
	name, variant, found := strings.Cut(raw, "@")
	if !found {
		variant = DefaultVariant
	}
	return GraphRef{Name: name, Variant: variant}, nil
}

func (g GraphRef) String() string {
	return g.Name + "@" + g.Variant
}

// Schema is a published subgraph.
type Schema struct {
	SDL        string
	RoutingURL string
}

// Client talks to the schema registry.
type Client interface {
	// FetchSubgraphs returns every subgraph published to graphRef, schema sources are inline SDL.
	FetchSubgraphs(ctx context.Context, graphRef GraphRef) (map[string]supergraphconfig.SubgraphConfig, error)
	// FetchSubgraph returns one published subgraph.
	FetchSubgraph(ctx context.Context, graphRef GraphRef, subgraph string) (Schema, error)
}

// RemoteConfig fetches the subgraphs of graphRef as a supergraph config.
func RemoteConfig(ctx context.Context, client Client, graphRef GraphRef) (*supergraphconfig.Config, error) {
	subgraphs, err := client.FetchSubgraphs(ctx, graphRef)
	if err != nil {
		return nil, fmt.Errorf("fetch subgraphs of %s: %w", graphRef, err)
	}
	config := supergraphconfig.New()
	for name, subgraph := range subgraphs {
		config.Subgraphs[name] = subgraph
	}
	return config, nil
}
