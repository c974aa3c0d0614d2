// Package composition turns a supergraph config into a composed supergraph.
//
// The Pipeline walks through four stages, each returned by the previous one:
//
//	InitStage                     loads the supergraph config and merges registry subgraphs
//	ResolveFederationVersionStage resolves every subgraph and picks the federation version
//	InstallSupergraphStage        locates the composition binary
//	RunStage                      composes once or starts a Runner for watch mode
//
// A stage can be advanced once, calling a transition twice returns ErrStageConsumed.
package composition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/metrics"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/plugin"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/process"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/registry"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subgraph"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/watcher"
)

const resolveConcurrency = 50

var (
	ErrStageConsumed = errors.New("pipeline stage already consumed")
	ErrNoSubgraphs   = errors.New("supergraph config contains no subgraphs")
	ErrNoConfig      = errors.New("no supergraph config given")
)

type pipelineOptions struct {
	logger         abstractlogger.Logger
	registry       registry.Client
	introspector   subgraph.Introspector
	installer      plugin.Installer
	executor       process.Executor
	metrics        *metrics.Metrics
	tempDir        string
	workDir        string
	watcherOptions []watcher.Option
}

type Option func(*pipelineOptions)

func WithLogger(logger abstractlogger.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

func WithRegistry(client registry.Client) Option {
	return func(o *pipelineOptions) {
		o.registry = client
	}
}

func WithIntrospector(introspector subgraph.Introspector) Option {
	return func(o *pipelineOptions) {
		o.introspector = introspector
	}
}

func WithInstaller(installer plugin.Installer) Option {
	return func(o *pipelineOptions) {
		o.installer = installer
	}
}

func WithExecutor(executor process.Executor) Option {
	return func(o *pipelineOptions) {
		o.executor = executor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *pipelineOptions) {
		o.metrics = m
	}
}

// WithTempDir sets where composition input files are written.
func WithTempDir(dir string) Option {
	return func(o *pipelineOptions) {
		o.tempDir = dir
	}
}

// WithWorkDir sets the root dir of configs read from stdin or given inline, the process working directory by default.
func WithWorkDir(dir string) Option {
	return func(o *pipelineOptions) {
		o.workDir = dir
	}
}

// WithWatcherOptions configures the watchers started by the Runner.
func WithWatcherOptions(opts ...watcher.Option) Option {
	return func(o *pipelineOptions) {
		o.watcherOptions = append(o.watcherOptions, opts...)
	}
}

type stage struct {
	consumed atomic.Bool
}

func (s *stage) consume() error {
	if !s.consumed.CompareAndSwap(false, true) {
		return ErrStageConsumed
	}
	return nil
}

// ConfigInput names where the supergraph config comes from.
// Exactly one of Path, Stdin and Inline is used, in that order. GraphRef may be combined with any of them or used alone.
type ConfigInput struct {
	Path     string
	Stdin    io.Reader
	Inline   string
	GraphRef string
}

// InitStage is the first stage of the pipeline.
type InitStage struct {
	stage
	opts pipelineOptions
}

func NewPipeline(opts ...Option) *InitStage {
	o := pipelineOptions{
		logger:   abstractlogger.NoopLogger,
		executor: process.NewOSExecutor(nil),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.installer == nil {
		o.installer = plugin.NewLocalInstaller(plugin.DefaultDir(), o.logger)
	}
	if o.registry != nil {
		// subgraphs listed for the graph ref are not fetched again when a registry source names them
		if cached, err := registry.NewCachingClient(o.registry, registry.DefaultCacheSize); err == nil {
			o.registry = cached
		}
	}
	return &InitStage{opts: o}
}

// LoadSupergraphConfig reads the local config and merges the subgraphs published to the graph ref.
// Local subgraphs and a locally pinned federation version win over the registry.
func (s *InitStage) LoadSupergraphConfig(ctx context.Context, input ConfigInput) (*ResolveFederationVersionStage, error) {
	if err := s.consume(); err != nil {
		return nil, err
	}

	local, rootDir, configPath, err := s.loadLocal(input)
	if err != nil {
		return nil, err
	}

	var remote *supergraphconfig.Config
	if input.GraphRef != "" {
		if s.opts.registry == nil {
			return nil, subgraph.ErrRegistryUnavailable
		}
		graphRef, err := registry.ParseGraphRef(input.GraphRef)
		if err != nil {
			return nil, err
		}
		remote, err = registry.RemoteConfig(ctx, s.opts.registry, graphRef)
		if err != nil {
			return nil, err
		}
	}
	if local == nil && remote == nil {
		return nil, ErrNoConfig
	}

	config := supergraphconfig.Merge(remote, local)
	if len(config.Subgraphs) == 0 {
		return nil, ErrNoSubgraphs
	}

	s.opts.logger.Debug("InitStage.LoadSupergraphConfig",
		abstractlogger.String("rootDir", rootDir),
		abstractlogger.Any("subgraphs", config.Names()),
	)

	return &ResolveFederationVersionStage{
		opts:       s.opts,
		config:     config,
		remote:     remote,
		rootDir:    rootDir,
		configPath: configPath,
	}, nil
}

func (s *InitStage) loadLocal(input ConfigInput) (config *supergraphconfig.Config, rootDir, configPath string, err error) {
	rootDir = s.opts.workDir
	if rootDir == "" {
		if rootDir, err = os.Getwd(); err != nil {
			return nil, "", "", err
		}
	}

	switch {
	case input.Path != "":
		configPath, err = filepath.Abs(input.Path)
		if err != nil {
			return nil, "", "", err
		}
		config, err = supergraphconfig.Load(configPath)
		if err != nil {
			return nil, "", "", err
		}
		return config, filepath.Dir(configPath), configPath, nil
	case input.Stdin != nil:
		config, err = supergraphconfig.ParseReader(input.Stdin)
		return config, rootDir, "", err
	case input.Inline != "":
		config, err = supergraphconfig.Parse([]byte(input.Inline))
		return config, rootDir, "", err
	default:
		return nil, rootDir, "", nil
	}
}

// ResolveFederationVersionStage holds a loaded config whose subgraphs are not resolved yet.
type ResolveFederationVersionStage struct {
	stage
	opts       pipelineOptions
	config     *supergraphconfig.Config
	remote     *supergraphconfig.Config
	rootDir    string
	configPath string
}

func (s *ResolveFederationVersionStage) Config() *supergraphconfig.Config {
	return s.config
}

// ResolveFederationVersion resolves every subgraph concurrently and picks the federation version.
// A subgraph that fails to resolve is reported through ResolveErrors and does not fail the stage.
//
// The version is, in order of precedence: override, the version pinned in the config,
// the latest federation two if any subgraph links federation v2, the latest federation one if
// any subgraph resolved, and the latest federation two otherwise.
func (s *ResolveFederationVersionStage) ResolveFederationVersion(ctx context.Context, override *supergraphconfig.FederationVersion) (*InstallSupergraphStage, error) {
	if err := s.consume(); err != nil {
		return nil, err
	}

	resolverOpts := []subgraph.Option{subgraph.WithLogger(s.opts.logger)}
	if s.opts.introspector != nil {
		resolverOpts = append(resolverOpts, subgraph.WithIntrospector(s.opts.introspector))
	}
	if s.opts.registry != nil {
		resolverOpts = append(resolverOpts, subgraph.WithRegistry(s.opts.registry))
	}
	resolver := subgraph.NewResolver(s.rootDir, resolverOpts...)

	var (
		mu       sync.Mutex
		resolved = map[string]subgraph.FullyResolved{}
		failed   = map[string]error{}
		lazy     = map[string]subgraph.LazilyResolved{}
	)

	g := &errgroup.Group{}
	g.SetLimit(resolveConcurrency)
	for name, sub := range s.config.Subgraphs {
		unresolved := subgraph.Unresolved{Name: name, Source: sub.Schema, RoutingURL: sub.RoutingURL}
		g.Go(func() error {
			full, err := resolver.Resolve(ctx, unresolved)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[unresolved.Name] = err
			} else {
				resolved[unresolved.Name] = full
			}
			return nil
		})
		if l, err := resolver.ResolveLazily(unresolved); err == nil {
			mu.Lock()
			lazy[name] = l
			mu.Unlock()
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version := chooseFederationVersion(override, s.config.FederationVersion, resolved)
	if version.IsFedOne() {
		for name, sub := range resolved {
			if sub.IsFederationTwo {
				s.opts.logger.Warn("ResolveFederationVersionStage.ResolveFederationVersion",
					abstractlogger.String("subgraph", name),
					abstractlogger.String("federationVersion", version.String()),
					abstractlogger.String("reason", "subgraph links federation v2 but federation one was requested"),
				)
			}
		}
	}
	for name, err := range failed {
		s.opts.logger.Warn("ResolveFederationVersionStage.ResolveFederationVersion",
			abstractlogger.String("subgraph", name),
			abstractlogger.Error(err),
		)
	}

	return &InstallSupergraphStage{
		opts:     s.opts,
		resolver: resolver,
		resolved: &FullyResolvedConfig{Subgraphs: resolved, FederationVersion: version},
		failed:   failed,
		lazy: &LazilyResolvedConfig{
			Subgraphs:         lazy,
			FederationVersion: version,
			RootDir:           s.rootDir,
			ConfigPath:        s.configPath,
			Config:            s.config,
			Remote:            s.remote,
		},
	}, nil
}

func chooseFederationVersion(override, configured *supergraphconfig.FederationVersion, resolved map[string]subgraph.FullyResolved) supergraphconfig.FederationVersion {
	if override != nil && !override.IsZero() {
		return *override
	}
	if configured != nil && !configured.IsZero() {
		return *configured
	}
	if len(resolved) == 0 {
		return supergraphconfig.LatestFedTwo
	}
	for _, sub := range resolved {
		if sub.IsFederationTwo {
			return supergraphconfig.LatestFedTwo
		}
	}
	return supergraphconfig.LatestFedOne
}

// InstallSupergraphStage holds the resolved subgraphs and the chosen federation version.
type InstallSupergraphStage struct {
	stage
	opts     pipelineOptions
	resolver *subgraph.Resolver
	resolved *FullyResolvedConfig
	failed   map[string]error
	lazy     *LazilyResolvedConfig
}

func (s *InstallSupergraphStage) FederationVersion() supergraphconfig.FederationVersion {
	return s.resolved.FederationVersion
}

// InstallSupergraph locates the composition binary, overridePath skips the lookup.
func (s *InstallSupergraphStage) InstallSupergraph(ctx context.Context, overridePath string) (*RunStage, error) {
	if err := s.consume(); err != nil {
		return nil, err
	}
	binary, err := s.opts.installer.Install(ctx, s.resolved.FederationVersion, overridePath)
	if err != nil {
		return nil, fmt.Errorf("install supergraph binary for federation %s: %w", s.resolved.FederationVersion, err)
	}
	return &RunStage{
		opts:     s.opts,
		resolver: s.resolver,
		resolved: s.resolved,
		failed:   s.failed,
		lazy:     s.lazy,
		composer: NewComposer(binary, s.opts.executor, s.opts.tempDir, s.opts.logger, s.opts.metrics),
	}, nil
}

// RunStage is the last stage: it composes.
type RunStage struct {
	stage
	opts     pipelineOptions
	resolver *subgraph.Resolver
	resolved *FullyResolvedConfig
	failed   map[string]error
	lazy     *LazilyResolvedConfig
	composer *Composer
}

// ResolvedConfig returns a copy of the resolved subgraphs.
func (s *RunStage) ResolvedConfig() *FullyResolvedConfig {
	return s.resolved.Clone()
}

// LazilyResolvedConfig returns the watch mode view of the config.
func (s *RunStage) LazilyResolvedConfig() *LazilyResolvedConfig {
	return s.lazy
}

// ResolveErrors returns the subgraphs that failed to resolve.
func (s *RunStage) ResolveErrors() map[string]error {
	errs := make(map[string]error, len(s.failed))
	for name, err := range s.failed {
		errs[name] = err
	}
	return errs
}

func (s *RunStage) FederationVersion() supergraphconfig.FederationVersion {
	return s.resolved.FederationVersion
}

func (s *RunStage) Binary() plugin.Binary {
	return s.composer.Binary()
}

// Compose composes the resolved subgraphs once. It can be called any number of times.
func (s *RunStage) Compose(ctx context.Context) (Success, error) {
	if len(s.resolved.Subgraphs) == 0 {
		return Success{}, ErrNoSubgraphs
	}
	return s.composer.Compose(ctx, s.resolved)
}

// Runner returns the watch mode runner. The stage is consumed.
func (s *RunStage) Runner(opts ...RunnerOption) (*Runner, error) {
	if err := s.consume(); err != nil {
		return nil, err
	}
	return newRunner(s, opts...), nil
}
