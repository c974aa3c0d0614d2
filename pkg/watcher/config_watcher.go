package watcher

import (
	"context"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/filewatcher"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subtask"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// ConfigWatcher publishes the subgraph diff every time the supergraph config file is saved.
// A file that fails to parse is ignored and the previous config stays current.
type ConfigWatcher struct {
	path    string
	current *supergraphconfig.Config
	opts    options
}

var _ subtask.Unit[supergraphconfig.Diff] = (*ConfigWatcher)(nil)

func NewConfigWatcher(path string, initial *supergraphconfig.Config, opts ...Option) *ConfigWatcher {
	if initial == nil {
		initial = supergraphconfig.New()
	}
	return &ConfigWatcher{
		path:    path,
		current: initial,
		opts:    newOptions(opts),
	}
}

func (c *ConfigWatcher) Run(ctx context.Context, out chan<- supergraphconfig.Diff) {
	events, handle := subtask.Pipe[filewatcher.Event](ctx, c.opts.fileWatcher(c.path), 1,
		subtask.WithName("filewatcher.config"),
		subtask.WithLogger(c.opts.logger),
	)
	defer handle.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Removed {
				c.opts.logger.Warn("ConfigWatcher.Run",
					abstractlogger.String("path", c.path),
					abstractlogger.String("reason", "supergraph config removed, config changes are no longer watched"),
				)
				return
			}
			next, err := supergraphconfig.Parse(event.Contents)
			if err != nil {
				c.opts.logger.Warn("ConfigWatcher.Run",
					abstractlogger.String("path", c.path),
					abstractlogger.Error(err),
				)
				continue
			}
			if c.opts.remote != nil {
				next = supergraphconfig.Merge(c.opts.remote, next)
			}
			diff := supergraphconfig.Compute(c.current, next)
			c.current = next
			c.opts.logger.Debug("ConfigWatcher.Run",
				abstractlogger.Any("added", diff.AddedNames()),
				abstractlogger.Any("removed", diff.Removed),
			)
			if !subtask.Send(ctx, out, diff) {
				return
			}
		}
	}
}
