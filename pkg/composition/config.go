package composition

import (
	"sort"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subgraph"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// FullyResolvedConfig is the input of a composition: every subgraph with its SDL.
type FullyResolvedConfig struct {
	Subgraphs         map[string]subgraph.FullyResolved
	FederationVersion supergraphconfig.FederationVersion
}

func NewFullyResolvedConfig(version supergraphconfig.FederationVersion) *FullyResolvedConfig {
	return &FullyResolvedConfig{
		Subgraphs:         map[string]subgraph.FullyResolved{},
		FederationVersion: version,
	}
}

// FullyResolvedFromConfig reads a config whose schema sources are all inline SDL.
// Subgraphs with another source are skipped.
func FullyResolvedFromConfig(config *supergraphconfig.Config, fallback supergraphconfig.FederationVersion) *FullyResolvedConfig {
	version := fallback
	if config.FederationVersion != nil {
		version = *config.FederationVersion
	}
	resolved := NewFullyResolvedConfig(version)
	for name, sub := range config.Subgraphs {
		source, ok := sub.Schema.(supergraphconfig.SDLSource)
		if !ok {
			continue
		}
		resolved.Subgraphs[name] = subgraph.FromSDL(name, sub.RoutingURL, source.SDL)
	}
	return resolved
}

// SupergraphConfig converts the config into the on-disk format. Schema sources become inline SDL.
func (c *FullyResolvedConfig) SupergraphConfig() *supergraphconfig.Config {
	config := supergraphconfig.New()
	version := c.FederationVersion
	config.FederationVersion = &version
	for name, sub := range c.Subgraphs {
		config.Subgraphs[name] = sub.Config()
	}
	return config
}

func (c *FullyResolvedConfig) Marshal() ([]byte, error) {
	return c.SupergraphConfig().Marshal()
}

// Names returns the sorted subgraph names.
func (c *FullyResolvedConfig) Names() []string {
	names := make([]string, 0, len(c.Subgraphs))
	for name := range c.Subgraphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Update stores sub and reports whether the config changed.
func (c *FullyResolvedConfig) Update(sub subgraph.FullyResolved) bool {
	if current, ok := c.Subgraphs[sub.Name]; ok && current == sub {
		return false
	}
	c.Subgraphs[sub.Name] = sub
	return true
}

// Remove deletes the subgraph and reports whether it was present.
func (c *FullyResolvedConfig) Remove(name string) bool {
	if _, ok := c.Subgraphs[name]; !ok {
		return false
	}
	delete(c.Subgraphs, name)
	return true
}

func (c *FullyResolvedConfig) Clone() *FullyResolvedConfig {
	clone := NewFullyResolvedConfig(c.FederationVersion)
	for name, sub := range c.Subgraphs {
		clone.Subgraphs[name] = sub
	}
	return clone
}

// LazilyResolvedConfig is the watch mode view of a supergraph config: sources are validated, SDL is fetched by watchers.
type LazilyResolvedConfig struct {
	Subgraphs         map[string]subgraph.LazilyResolved
	FederationVersion supergraphconfig.FederationVersion
	RootDir           string
	// ConfigPath is empty when the config did not come from a file.
	ConfigPath string
	// Config is the parsed config the view was built from, remote subgraphs included.
	Config *supergraphconfig.Config
	// Remote holds the subgraphs fetched from the registry, nil without a graph ref.
	Remote *supergraphconfig.Config
}
