package supergraphconfig

import (
	"errors"
	"fmt"
)

var ErrInvalidSchemaSource = errors.New("invalid schema source")

// SchemaSource describes where the SDL of a subgraph comes from.
// It is one of FileSource, IntrospectionSource, RegistrySource or SDLSource.
type SchemaSource interface {
	schemaSource()
	Kind() SourceKind
}

type SourceKind string

const (
	SourceKindFile          SourceKind = "file"
	SourceKindIntrospection SourceKind = "subgraph_url"
	SourceKindRegistry      SourceKind = "graphref"
	SourceKindSDL           SourceKind = "sdl"
)

// FileSource reads the SDL from a file, relative paths are resolved against the supergraph config directory.
type FileSource struct {
	Path string
}

// IntrospectionSource introspects a running subgraph.
type IntrospectionSource struct {
	URL     string
	Headers map[string]string
}

// RegistrySource fetches a published subgraph from the registry.
type RegistrySource struct {
	GraphRef string
	Subgraph string
}

// SDLSource carries the SDL inline.
type SDLSource struct {
	SDL string
}

func (FileSource) schemaSource()          {}
func (IntrospectionSource) schemaSource() {}
func (RegistrySource) schemaSource()      {}
func (SDLSource) schemaSource()           {}

func (FileSource) Kind() SourceKind          { return SourceKindFile }
func (IntrospectionSource) Kind() SourceKind { return SourceKindIntrospection }
func (RegistrySource) Kind() SourceKind      { return SourceKindRegistry }
func (SDLSource) Kind() SourceKind           { return SourceKindSDL }

type rawSchemaSource struct {
	File                 string            `yaml:"file,omitempty"`
	SubgraphURL          string            `yaml:"subgraph_url,omitempty"`
	IntrospectionHeaders map[string]string `yaml:"introspection_headers,omitempty"`
	GraphRef             string            `yaml:"graphref,omitempty"`
	Subgraph             string            `yaml:"subgraph,omitempty"`
	SDL                  *string           `yaml:"sdl,omitempty"`
}

func (r rawSchemaSource) source() (SchemaSource, error) {
	var set []SourceKind
	if r.File != "" {
		set = append(set, SourceKindFile)
	}
	if r.SubgraphURL != "" {
		set = append(set, SourceKindIntrospection)
	}
	if r.GraphRef != "" || r.Subgraph != "" {
		set = append(set, SourceKindRegistry)
	}
	if r.SDL != nil {
		set = append(set, SourceKindSDL)
	}

	switch len(set) {
	case 0:
		return nil, fmt.Errorf("%w: one of file, subgraph_url, graphref or sdl is required", ErrInvalidSchemaSource)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %v are mutually exclusive", ErrInvalidSchemaSource, set)
	}

	if r.IntrospectionHeaders != nil && set[0] != SourceKindIntrospection {
		return nil, fmt.Errorf("%w: introspection_headers require subgraph_url", ErrInvalidSchemaSource)
	}

	switch set[0] {
	case SourceKindFile:
		return FileSource{Path: r.File}, nil
	case SourceKindIntrospection:
		return IntrospectionSource{URL: r.SubgraphURL, Headers: r.IntrospectionHeaders}, nil
	case SourceKindRegistry:
		if r.GraphRef == "" || r.Subgraph == "" {
			return nil, fmt.Errorf("%w: graphref and subgraph must be set together", ErrInvalidSchemaSource)
		}
		return RegistrySource{GraphRef: r.GraphRef, Subgraph: r.Subgraph}, nil
	default:
		return SDLSource{SDL: *r.SDL}, nil
	}
}

func rawFromSource(source SchemaSource) (rawSchemaSource, error) {
	switch s := source.(type) {
	case FileSource:
		return rawSchemaSource{File: s.Path}, nil
	case IntrospectionSource:
		return rawSchemaSource{SubgraphURL: s.URL, IntrospectionHeaders: s.Headers}, nil
	case RegistrySource:
		return rawSchemaSource{GraphRef: s.GraphRef, Subgraph: s.Subgraph}, nil
	case SDLSource:
		sdl := s.SDL
		return rawSchemaSource{SDL: &sdl}, nil
	default:
		return rawSchemaSource{}, fmt.Errorf("%w: %T", ErrInvalidSchemaSource, source)
	}
}
