package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/filewatcher"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subgraph"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subtask"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// SubgraphWatcher publishes a SubgraphChanged event whenever the SDL of one subgraph changes.
//
// File sources are watched on disk, introspection sources are polled.
// Inline SDL and registry sources are resolved once, the watcher returns after publishing them.
// A file watcher whose schema file disappears publishes SubgraphRemoved and returns.
type SubgraphWatcher struct {
	subgraph subgraph.LazilyResolved
	resolver *subgraph.Resolver
	opts     options
	removed  atomic.Bool
}

var _ subtask.Unit[SubgraphEvent] = (*SubgraphWatcher)(nil)

func NewSubgraphWatcher(lazy subgraph.LazilyResolved, resolver *subgraph.Resolver, opts ...Option) (*SubgraphWatcher, error) {
	if lazy.Source == nil {
		return nil, fmt.Errorf("%w: subgraph %q has no schema source", ErrUnsupportedSource, lazy.Name)
	}
	if _, err := resolver.ResolveLazily(unresolved(lazy)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedSource, err)
	}
	return &SubgraphWatcher{
		subgraph: lazy,
		resolver: resolver,
		opts:     newOptions(opts),
	}, nil
}

func (w *SubgraphWatcher) Name() string {
	return w.subgraph.Name
}

// Removed reports whether the watcher returned because its schema source disappeared.
func (w *SubgraphWatcher) Removed() bool {
	return w.removed.Load()
}

func (w *SubgraphWatcher) Run(ctx context.Context, out chan<- SubgraphEvent) {
	switch source := w.subgraph.Source.(type) {
	case supergraphconfig.FileSource:
		w.watchFile(ctx, source, out)
	case supergraphconfig.IntrospectionSource:
		w.poll(ctx, out)
	default:
		w.resolveOnce(ctx, out)
	}
}

func (w *SubgraphWatcher) watchFile(ctx context.Context, source supergraphconfig.FileSource, out chan<- SubgraphEvent) {
	events, handle := subtask.Pipe[filewatcher.Event](ctx, w.opts.fileWatcher(source.Path), 1,
		subtask.WithName("filewatcher."+w.subgraph.Name),
		subtask.WithLogger(w.opts.logger),
	)
	defer handle.Cancel()

	if !w.resolveOnce(ctx, out) && ctx.Err() != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Removed {
				w.opts.logger.Warn("SubgraphWatcher.watchFile",
					abstractlogger.String("subgraph", w.subgraph.Name),
					abstractlogger.String("path", event.Path),
					abstractlogger.String("reason", "schema file removed, subgraph is no longer watched"),
				)
				w.removed.Store(true)
				subtask.Send[SubgraphEvent](ctx, out, SubgraphRemoved{Name: w.subgraph.Name})
				return
			}
			changed := subgraph.FromSDL(w.subgraph.Name, w.subgraph.RoutingURL, string(event.Contents))
			if !subtask.Send[SubgraphEvent](ctx, out, SubgraphChanged{Subgraph: changed}) {
				return
			}
		}
	}
}

func (w *SubgraphWatcher) poll(ctx context.Context, out chan<- SubgraphEvent) {
	var last string
	emit := func() bool {
		resolved, err := w.resolver.Resolve(ctx, unresolved(w.subgraph))
		if err != nil {
			if ctx.Err() == nil {
				w.opts.logger.Warn("SubgraphWatcher.poll",
					abstractlogger.String("subgraph", w.subgraph.Name),
					abstractlogger.Error(err),
				)
			}
			return ctx.Err() == nil
		}
		if resolved.SDL == last {
			return true
		}
		last = resolved.SDL
		return subtask.Send[SubgraphEvent](ctx, out, SubgraphChanged{Subgraph: resolved})
	}

	if !emit() {
		return
	}

	ticker := time.NewTicker(w.opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}

// resolveOnce publishes the current SDL and reports whether it was published.
func (w *SubgraphWatcher) resolveOnce(ctx context.Context, out chan<- SubgraphEvent) bool {
	resolved, err := w.resolver.Resolve(ctx, unresolved(w.subgraph))
	if err != nil {
		w.opts.logger.Warn("SubgraphWatcher.resolveOnce",
			abstractlogger.String("subgraph", w.subgraph.Name),
			abstractlogger.Error(err),
		)
		return false
	}
	return subtask.Send[SubgraphEvent](ctx, out, SubgraphChanged{Subgraph: resolved})
}

func unresolved(lazy subgraph.LazilyResolved) subgraph.Unresolved {
	return subgraph.Unresolved{
		Name:       lazy.Name,
		Source:     lazy.Source,
		RoutingURL: lazy.RoutingURL,
	}
}
