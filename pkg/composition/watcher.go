package composition

import (
	"context"
	"errors"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/metrics"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subtask"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/watcher"
)

// CompositionWatcher recomposes the supergraph every time a subgraph changes.
// Compositions run one at a time in the order the subgraph events arrive.
type CompositionWatcher struct {
	composer       *Composer
	config         *FullyResolvedConfig
	composeOnStart bool
	logger         abstractlogger.Logger
	metrics        *metrics.Metrics
}

var _ subtask.Stream[watcher.SubgraphEvent, Event] = (*CompositionWatcher)(nil)

type WatcherOption func(*CompositionWatcher)

// ComposeOnStart composes the initial config before the first subgraph event arrives.
func ComposeOnStart() WatcherOption {
	return func(w *CompositionWatcher) {
		w.composeOnStart = true
	}
}

func WithWatcherLogger(logger abstractlogger.Logger) WatcherOption {
	return func(w *CompositionWatcher) {
		w.logger = logger
	}
}

func WithWatcherMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *CompositionWatcher) {
		w.metrics = m
	}
}

// NewCompositionWatcher starts from a copy of initial. The federation version of initial is kept for every composition.
func NewCompositionWatcher(composer *Composer, initial *FullyResolvedConfig, opts ...WatcherOption) *CompositionWatcher {
	w := &CompositionWatcher{
		composer: composer,
		config:   initial.Clone(),
		logger:   abstractlogger.NoopLogger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *CompositionWatcher) Run(ctx context.Context, in <-chan watcher.SubgraphEvent, out chan<- Event) {
	if w.composeOnStart && !w.compose(ctx, out) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-in:
			if !ok {
				return
			}
			if !w.apply(event) {
				w.logger.Debug("CompositionWatcher.Run",
					abstractlogger.String("subgraph", event.SubgraphName()),
					abstractlogger.String("reason", "subgraph unchanged, skipping composition"),
				)
				continue
			}
			if !w.compose(ctx, out) {
				return
			}
		}
	}
}

func (w *CompositionWatcher) apply(event watcher.SubgraphEvent) bool {
	switch e := event.(type) {
	case watcher.SubgraphChanged:
		if !w.config.Update(e.Subgraph) {
			return false
		}
		w.metrics.SubgraphUpdated(e.Subgraph.Name, "changed")
		w.logger.Info("CompositionWatcher.apply",
			abstractlogger.String("subgraph", e.Subgraph.Name),
			abstractlogger.String("change", "updated"),
		)
		return true
	case watcher.SubgraphRemoved:
		if !w.config.Remove(e.Name) {
			return false
		}
		w.metrics.SubgraphUpdated(e.Name, "removed")
		w.logger.Info("CompositionWatcher.apply",
			abstractlogger.String("subgraph", e.Name),
			abstractlogger.String("change", "removed"),
		)
		return true
	default:
		return false
	}
}

// compose reports false once ctx is done.
func (w *CompositionWatcher) compose(ctx context.Context, out chan<- Event) bool {
	if !subtask.Send[Event](ctx, out, Started{}) {
		return false
	}
	if len(w.config.Subgraphs) == 0 {
		return subtask.Send[Event](ctx, out, Failure{Err: ErrNoSubgraphs})
	}

	success, err := w.composer.Compose(ctx, w.config)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		failure := Failure{Err: err}
		var buildErrors *BuildErrors
		if errors.As(err, &buildErrors) {
			failure = Failure{BuildErrors: buildErrors}
		}
		w.logger.Warn("CompositionWatcher.compose",
			abstractlogger.Error(err),
		)
		return subtask.Send[Event](ctx, out, failure)
	}
	return subtask.Send[Event](ctx, out, success)
}
