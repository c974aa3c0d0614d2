package subgraph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/introspect"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/registry"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

var (
	ErrMissingRoutingURL   = errors.New("routing_url is required for inline sdl")
	ErrRegistryUnavailable = errors.New("no registry client configured")
	ErrInvalidURL          = errors.New("invalid introspection url")
)

// ResolveError is the failure to resolve a single subgraph.
type ResolveError struct {
	Subgraph string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve subgraph %q: %v", e.Subgraph, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Introspector fetches the SDL of a running subgraph.
type Introspector interface {
	Introspect(ctx context.Context, url string, headers map[string]string) (string, error)
}

type Option func(*Resolver)

func WithIntrospector(introspector Introspector) Option {
	return func(r *Resolver) {
		r.introspector = introspector
	}
}

// WithRegistry sets the registry client, registry sources fail to resolve without one.
func WithRegistry(client registry.Client) Option {
	return func(r *Resolver) {
		r.registry = client
	}
}

func WithLogger(logger abstractlogger.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver resolves schema sources, relative file paths are resolved against rootDir.
// A Resolver is safe for concurrent use.
type Resolver struct {
	rootDir      string
	introspector Introspector
	registry     registry.Client
	logger       abstractlogger.Logger
}

func NewResolver(rootDir string, opts ...Option) *Resolver {
	r := &Resolver{
		rootDir: rootDir,
		logger:  abstractlogger.NoopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.introspector == nil {
		r.introspector = introspect.New(nil)
	}
	return r
}

func (r *Resolver) RootDir() string {
	return r.rootDir
}

// Resolve fetches the SDL of a subgraph.
func (r *Resolver) Resolve(ctx context.Context, unresolved Unresolved) (FullyResolved, error) {
	resolved, err := r.resolve(ctx, unresolved)
	if err != nil {
		r.logger.Debug("subgraph.Resolve",
			abstractlogger.String("subgraph", unresolved.Name),
			abstractlogger.Error(err),
		)
		return FullyResolved{}, &ResolveError{Subgraph: unresolved.Name, Err: err}
	}
	return resolved, nil
}

func (r *Resolver) resolve(ctx context.Context, unresolved Unresolved) (FullyResolved, error) {
	switch source := unresolved.Source.(type) {
	case supergraphconfig.FileSource:
		sdl, err := os.ReadFile(r.path(source.Path))
		if err != nil {
			return FullyResolved{}, err
		}
		return FromSDL(unresolved.Name, unresolved.RoutingURL, string(sdl)), nil
	case supergraphconfig.IntrospectionSource:
		sdl, err := r.introspector.Introspect(ctx, source.URL, source.Headers)
		if err != nil {
			return FullyResolved{}, fmt.Errorf("introspect %s: %w", source.URL, err)
		}
		routingURL := unresolved.RoutingURL
		if routingURL == "" {
			routingURL = source.URL
		}
		return FromSDL(unresolved.Name, routingURL, sdl), nil
	case supergraphconfig.RegistrySource:
		if r.registry == nil {
			return FullyResolved{}, ErrRegistryUnavailable
		}
		graphRef, err := registry.ParseGraphRef(source.GraphRef)
		if err != nil {
			return FullyResolved{}, err
		}
		schema, err := r.registry.FetchSubgraph(ctx, graphRef, source.Subgraph)
		if err != nil {
			return FullyResolved{}, fmt.Errorf("fetch %s from %s: %w", source.Subgraph, graphRef, err)
		}
		routingURL := unresolved.RoutingURL
		if routingURL == "" {
			routingURL = schema.RoutingURL
		}
		return FromSDL(unresolved.Name, routingURL, schema.SDL), nil
	case supergraphconfig.SDLSource:
		if unresolved.RoutingURL == "" {
			return FullyResolved{}, ErrMissingRoutingURL
		}
		return FromSDL(unresolved.Name, unresolved.RoutingURL, source.SDL), nil
	default:
		return FullyResolved{}, fmt.Errorf("%w: %T", supergraphconfig.ErrInvalidSchemaSource, unresolved.Source)
	}
}

// ResolveLazily validates a subgraph without fetching its SDL.
func (r *Resolver) ResolveLazily(unresolved Unresolved) (LazilyResolved, error) {
	source, err := r.resolveLazily(unresolved)
	if err != nil {
		return LazilyResolved{}, &ResolveError{Subgraph: unresolved.Name, Err: err}
	}
	return LazilyResolved{
		Name:       unresolved.Name,
		Source:     source,
		RoutingURL: unresolved.RoutingURL,
	}, nil
}

func (r *Resolver) resolveLazily(unresolved Unresolved) (supergraphconfig.SchemaSource, error) {
	switch source := unresolved.Source.(type) {
	case supergraphconfig.FileSource:
		path := r.path(source.Path)
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return supergraphconfig.FileSource{Path: path}, nil
	case supergraphconfig.IntrospectionSource:
		if _, err := url.ParseRequestURI(source.URL); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
		}
		return source, nil
	case supergraphconfig.RegistrySource:
		if r.registry == nil {
			return nil, ErrRegistryUnavailable
		}
		if _, err := registry.ParseGraphRef(source.GraphRef); err != nil {
			return nil, err
		}
		return source, nil
	case supergraphconfig.SDLSource:
		if unresolved.RoutingURL == "" {
			return nil, ErrMissingRoutingURL
		}
		return source, nil
	default:
		return nil, fmt.Errorf("%w: %T", supergraphconfig.ErrInvalidSchemaSource, unresolved.Source)
	}
}

func (r *Resolver) path(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.rootDir, path)
}
