// Package subgraph turns subgraph schema sources into SDL.
//
// A subgraph is resolved fully (its SDL is fetched) for one-shot composition,
// or lazily (only validated) when a watcher will fetch its SDL later.
package subgraph

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

const federationTwoSpec = "specs.apollo.dev/federation/v2"

// Unresolved is a subgraph as declared in the supergraph config.
type Unresolved struct {
	Name       string
	Source     supergraphconfig.SchemaSource
	RoutingURL string
}

// FullyResolved is a subgraph whose SDL has been fetched.
type FullyResolved struct {
	Name            string
	RoutingURL      string
	SDL             string
	IsFederationTwo bool
}

// LazilyResolved is a subgraph whose source has been validated but not read.
// File sources carry an absolute path.
type LazilyResolved struct {
	Name       string
	Source     supergraphconfig.SchemaSource
	RoutingURL string
}

// Config converts the subgraph back into a config entry with an inline SDL source.
func (f FullyResolved) Config() supergraphconfig.SubgraphConfig {
	return supergraphconfig.SubgraphConfig{
		RoutingURL: f.RoutingURL,
		Schema:     supergraphconfig.SDLSource{SDL: f.SDL},
	}
}

// Config converts the subgraph back into a config entry.
func (l LazilyResolved) Config() supergraphconfig.SubgraphConfig {
	return supergraphconfig.SubgraphConfig{
		RoutingURL: l.RoutingURL,
		Schema:     l.Source,
	}
}

// FromSDL builds a FullyResolved subgraph.
func FromSDL(name, routingURL, sdl string) FullyResolved {
	return FullyResolved{
		Name:            name,
		RoutingURL:      routingURL,
		SDL:             sdl,
		IsFederationTwo: IsFederationTwo(sdl),
	}
}

// IsFederationTwo reports whether sdl links the federation v2 spec on its schema definition or extension.
// SDL that does not parse is treated as federation one.
func IsFederationTwo(sdl string) bool {
	doc, err := parser.ParseSchema(&ast.Source{Input: sdl})
	if err != nil || doc == nil {
		return false
	}
	return linksFederationTwo(doc.Schema) || linksFederationTwo(doc.SchemaExtension)
}

func linksFederationTwo(definitions ast.SchemaDefinitionList) bool {
	for _, definition := range definitions {
		for _, link := range definition.Directives.ForNames("link") {
			url := link.Arguments.ForName("url")
			if url == nil || url.Value == nil {
				continue
			}
			if strings.Contains(url.Value.Raw, federationTwoSpec) {
				return true
			}
		}
	}
	return false
}
