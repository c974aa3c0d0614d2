// Package watcher keeps subgraph SDL and the supergraph config up to date while they change on disk or remotely.
//
// Every watcher is a subtask: it is handed the producer end of a channel and
// publishes SubgraphEvents (or config Diffs) until its context is cancelled.
package watcher

import (
	"errors"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/filewatcher"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/metrics"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subgraph"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

const DefaultPollInterval = time.Second

var ErrUnsupportedSource = errors.New("unsupported subgraph source")

// SubgraphEvent is published by subgraph watchers and the watcher Set.
type SubgraphEvent interface {
	SubgraphName() string
	subgraphEvent()
}

// SubgraphChanged carries a freshly resolved subgraph.
type SubgraphChanged struct {
	Subgraph subgraph.FullyResolved
}

// SubgraphRemoved is published once a subgraph left the supergraph config.
type SubgraphRemoved struct {
	Name string
}

func (e SubgraphChanged) SubgraphName() string { return e.Subgraph.Name }
func (e SubgraphRemoved) SubgraphName() string { return e.Name }

func (SubgraphChanged) subgraphEvent() {}
func (SubgraphRemoved) subgraphEvent() {}

type options struct {
	logger       abstractlogger.Logger
	pollInterval time.Duration
	debounce     time.Duration
	metrics      *metrics.Metrics
	remote       *supergraphconfig.Config
}

type Option func(*options)

func WithLogger(logger abstractlogger.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPollInterval sets how often introspection sources are polled.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

// WithDebounce sets the debounce window of file watchers.
func WithDebounce(debounce time.Duration) Option {
	return func(o *options) {
		o.debounce = debounce
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRemoteConfig sets the registry subgraphs the config watcher merges every parsed config onto.
func WithRemoteConfig(remote *supergraphconfig.Config) Option {
	return func(o *options) {
		o.remote = remote
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:       abstractlogger.NoopLogger,
		pollInterval: DefaultPollInterval,
		debounce:     filewatcher.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	return o
}

func (o options) fileWatcher(path string) *filewatcher.FileWatcher {
	return filewatcher.New(path,
		filewatcher.WithDebounce(o.debounce),
		filewatcher.WithLogger(o.logger),
	)
}
