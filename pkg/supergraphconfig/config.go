// Package supergraphconfig reads and writes the supergraph configuration file and diffs successive versions of it.
//
// The format is YAML:
//
//	federation_version: =2.3.2
//	subgraphs:
//	  accounts:
//	    routing_url: http://localhost:4001
//	    schema:
//	      file: ./accounts.graphql
package supergraphconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid supergraph config")

// Config is a parsed supergraph configuration.
type Config struct {
	// FederationVersion is nil when the file does not pin a version.
	FederationVersion *FederationVersion
	Subgraphs         map[string]SubgraphConfig
}

// SubgraphConfig is a single entry of the subgraphs map.
type SubgraphConfig struct {
	// RoutingURL may be empty, only inline SDL requires it.
	RoutingURL string
	Schema     SchemaSource
}

// NamedSubgraph pairs a subgraph config with its name.
type NamedSubgraph struct {
	Name   string
	Config SubgraphConfig
}

type rawSubgraphConfig struct {
	RoutingURL string          `yaml:"routing_url,omitempty"`
	Schema     rawSchemaSource `yaml:"schema"`
}

type rawConfig struct {
	FederationVersion *FederationVersion           `yaml:"federation_version,omitempty"`
	Subgraphs         map[string]rawSubgraphConfig `yaml:"subgraphs"`
}

func (s SubgraphConfig) MarshalYAML() (interface{}, error) {
	schema, err := rawFromSource(s.Schema)
	if err != nil {
		return nil, err
	}
	return rawSubgraphConfig{RoutingURL: s.RoutingURL, Schema: schema}, nil
}

func (s *SubgraphConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawSubgraphConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}
	source, err := raw.Schema.source()
	if err != nil {
		return err
	}
	*s = SubgraphConfig{RoutingURL: raw.RoutingURL, Schema: source}
	return nil
}

// New returns an empty config.
func New() *Config {
	return &Config{Subgraphs: map[string]SubgraphConfig{}}
}

// Parse parses and validates a supergraph configuration document.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	config := &Config{
		FederationVersion: raw.FederationVersion,
		Subgraphs:         make(map[string]SubgraphConfig, len(raw.Subgraphs)),
	}
	for name, subgraph := range raw.Subgraphs {
		if name == "" {
			return nil, fmt.Errorf("%w: subgraph name must not be empty", ErrInvalidConfig)
		}
		source, err := subgraph.Schema.source()
		if err != nil {
			return nil, fmt.Errorf("%w: subgraph %q: %w", ErrInvalidConfig, name, err)
		}
		config.Subgraphs[name] = SubgraphConfig{RoutingURL: subgraph.RoutingURL, Schema: source}
	}

	return config, nil
}

func ParseReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read supergraph config: %w", err)
	}
	return Parse(data)
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read supergraph config: %w", err)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Marshal renders the config in the on-disk format. Subgraphs are sorted by name.
func (c *Config) Marshal() ([]byte, error) {
	raw := struct {
		FederationVersion *FederationVersion        `yaml:"federation_version,omitempty"`
		Subgraphs         map[string]SubgraphConfig `yaml:"subgraphs"`
	}{
		FederationVersion: c.FederationVersion,
		Subgraphs:         c.Subgraphs,
	}
	if raw.Subgraphs == nil {
		raw.Subgraphs = map[string]SubgraphConfig{}
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal supergraph config: %w", err)
	}
	return data, nil
}

// Names returns the sorted subgraph names.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Subgraphs))
	for name := range c.Subgraphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) Clone() *Config {
	clone := &Config{
		FederationVersion: c.FederationVersion,
		Subgraphs:         make(map[string]SubgraphConfig, len(c.Subgraphs)),
	}
	for name, subgraph := range c.Subgraphs {
		clone.Subgraphs[name] = subgraph
	}
	return clone
}

// Merge layers local on top of remote: local subgraphs replace remote ones with the same name
// and a federation version pinned locally wins.
func Merge(remote, local *Config) *Config {
	merged := New()
	for _, c := range []*Config{remote, local} {
		if c == nil {
			continue
		}
		if c.FederationVersion != nil {
			merged.FederationVersion = c.FederationVersion
		}
		for name, subgraph := range c.Subgraphs {
			merged.Subgraphs[name] = subgraph
		}
	}
	return merged
}
