package composition

import (
	"context"

	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subtask"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/watcher"
)

const eventBuffer = 16

type RunnerOption func(*Runner)

// WithoutComposeOnStart waits for the first subgraph change before composing.
func WithoutComposeOnStart() RunnerOption {
	return func(r *Runner) {
		r.composeOnStart = false
	}
}

// Runner keeps the supergraph composed while subgraphs and the supergraph config change.
type Runner struct {
	lazy           *LazilyResolvedConfig
	initial        *FullyResolvedConfig
	composer       *Composer
	stage          *RunStage
	watcherOptions []watcher.Option
	logger         abstractlogger.Logger
	composeOnStart bool
}

func newRunner(s *RunStage, opts ...RunnerOption) *Runner {
	watcherOptions := append([]watcher.Option{
		watcher.WithLogger(s.opts.logger),
		watcher.WithMetrics(s.opts.metrics),
	}, s.opts.watcherOptions...)

	r := &Runner{
		lazy:           s.lazy,
		initial:        s.resolved.Clone(),
		composer:       s.composer,
		stage:          s,
		watcherOptions: watcherOptions,
		logger:         s.opts.logger,
		composeOnStart: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts watching. The returned channel carries composition events and is closed once the handle was cancelled.
//
// The config file is only watched when the config was read from a file.
func (r *Runner) Run(ctx context.Context) (<-chan Event, *subtask.Handle) {
	session := uuid.NewString()
	logger := r.logger

	run := subtask.UnitFunc[Event](func(ctx context.Context, out chan<- Event) {
		logger.Info("Runner.Run",
			abstractlogger.String("session", session),
			abstractlogger.Any("subgraphs", r.initial.Names()),
			abstractlogger.String("federationVersion", r.initial.FederationVersion.String()),
		)
		defer logger.Info("Runner.Run",
			abstractlogger.String("session", session),
			abstractlogger.String("state", "stopped"),
		)

		var diffs <-chan supergraphconfig.Diff
		if r.lazy.ConfigPath != "" {
			configOptions := append([]watcher.Option{watcher.WithRemoteConfig(r.lazy.Remote)}, r.watcherOptions...)
			configDiffs, configHandle := subtask.Pipe[supergraphconfig.Diff](ctx,
				watcher.NewConfigWatcher(r.lazy.ConfigPath, r.lazy.Config, configOptions...), 1,
				subtask.WithName("config"),
				subtask.WithLogger(logger),
			)
			defer configHandle.Cancel()
			diffs = configDiffs
		}

		subgraphEvents := make(chan watcher.SubgraphEvent, len(r.lazy.Subgraphs)+eventBuffer)
		set := watcher.NewSet(r.lazy.Subgraphs, r.stage.resolver, r.watcherOptions...)
		setHandle := subtask.StartStream[supergraphconfig.Diff, watcher.SubgraphEvent](ctx, set, diffs, subgraphEvents,
			subtask.WithName("subgraphs"),
			subtask.WithLogger(logger),
		)
		defer setHandle.Cancel()

		opts := []WatcherOption{WithWatcherLogger(logger), WithWatcherMetrics(r.stage.opts.metrics)}
		if r.composeOnStart {
			opts = append(opts, ComposeOnStart())
		}
		NewCompositionWatcher(r.composer, r.initial, opts...).Run(ctx, subgraphEvents, out)
	})

	return subtask.Pipe[Event](ctx, run, eventBuffer,
		subtask.WithName("runner"),
		subtask.WithLogger(logger),
	)
}
