package watcher

import (
	"context"
	"sort"
	"sync"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subgraph"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subtask"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// Set runs one SubgraphWatcher per subgraph and adds or removes watchers as config diffs arrive.
// All watchers publish to the same queue.
type Set struct {
	resolver *subgraph.Resolver
	opts     []Option
	o        options

	mu       sync.Mutex
	initial  map[string]*SubgraphWatcher
	watchers map[string]*running
}

type running struct {
	watcher *SubgraphWatcher
	handle  *subtask.Handle
}

var _ subtask.Stream[supergraphconfig.Diff, SubgraphEvent] = (*Set)(nil)

// NewSet prepares a watcher for every subgraph. Subgraphs whose watcher cannot be created are logged and skipped.
func NewSet(subgraphs map[string]subgraph.LazilyResolved, resolver *subgraph.Resolver, opts ...Option) *Set {
	s := &Set{
		resolver: resolver,
		opts:     opts,
		o:        newOptions(opts),
		initial:  make(map[string]*SubgraphWatcher, len(subgraphs)),
		watchers: make(map[string]*running, len(subgraphs)),
	}
	for name, lazy := range subgraphs {
		w, err := NewSubgraphWatcher(lazy, resolver, opts...)
		if err != nil {
			s.o.logger.Warn("Set.NewSet",
				abstractlogger.String("subgraph", name),
				abstractlogger.Error(err),
			)
			continue
		}
		s.initial[name] = w
	}
	return s
}

// Names returns the sorted names of the watched subgraphs. Subgraphs whose schema source disappeared are left out.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.initial)+len(s.watchers))
	for name := range s.initial {
		names = append(names, name)
	}
	for name, r := range s.watchers {
		if !r.watcher.Removed() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// exit is reported by a watcher that returned on its own because its schema source disappeared.
type exit struct {
	name    string
	running *running
}

// Run starts the initial watchers and applies diffs in arrival order until ctx is done.
// Every running watcher is cancelled before Run returns.
func (s *Set) Run(ctx context.Context, diffs <-chan supergraphconfig.Diff, out chan<- SubgraphEvent) {
	exits := make(chan exit)
	defer s.shutdown()

	s.mu.Lock()
	for name, w := range s.initial {
		s.watchers[name] = s.start(ctx, w, out, exits)
	}
	s.initial = map[string]*SubgraphWatcher{}
	s.o.metrics.SetActiveWatchers(len(s.watchers))
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-exits:
			s.prune(e)
		case diff, ok := <-diffs:
			if !ok {
				diffs = nil
				continue
			}
			if !s.apply(ctx, diff, out, exits) {
				return
			}
		}
	}
}

// prune drops a watcher whose schema file was removed.
// A watcher started under the same name in the meantime is kept.
func (s *Set) prune(e exit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers[e.name] != e.running {
		return
	}
	delete(s.watchers, e.name)
	s.o.metrics.SetActiveWatchers(len(s.watchers))
	s.o.logger.Debug("Set.prune",
		abstractlogger.String("subgraph", e.name),
	)
}

func (s *Set) apply(ctx context.Context, diff supergraphconfig.Diff, out chan<- SubgraphEvent, exits chan<- exit) bool {
	for _, name := range diff.Removed {
		s.stop(name)
		s.o.logger.Debug("Set.apply",
			abstractlogger.String("removed", name),
		)
		if !subtask.Send[SubgraphEvent](ctx, out, SubgraphRemoved{Name: name}) {
			return false
		}
	}

	for _, added := range diff.Added {
		lazy, err := s.resolver.ResolveLazily(subgraph.Unresolved{
			Name:       added.Name,
			Source:     added.Config.Schema,
			RoutingURL: added.Config.RoutingURL,
		})
		if err != nil {
			s.o.logger.Warn("Set.apply",
				abstractlogger.String("subgraph", added.Name),
				abstractlogger.Error(err),
			)
			continue
		}
		w, err := NewSubgraphWatcher(lazy, s.resolver, s.opts...)
		if err != nil {
			s.o.logger.Warn("Set.apply",
				abstractlogger.String("subgraph", added.Name),
				abstractlogger.Error(err),
			)
			continue
		}

		s.stop(added.Name)

		s.mu.Lock()
		s.watchers[added.Name] = s.start(ctx, w, out, exits)
		s.mu.Unlock()
		s.o.logger.Debug("Set.apply",
			abstractlogger.String("added", added.Name),
		)
	}

	s.mu.Lock()
	s.o.metrics.SetActiveWatchers(len(s.watchers))
	s.mu.Unlock()
	return true
}

// stop cancels the watcher of name and removes it once it returned.
// Only apply replaces map entries, so the entry cannot change while Cancel blocks.
func (s *Set) stop(name string) {
	s.mu.Lock()
	r, ok := s.watchers[name]
	s.mu.Unlock()
	if !ok {
		return
	}

	r.handle.Cancel()

	s.mu.Lock()
	if s.watchers[name] == r {
		delete(s.watchers, name)
	}
	s.mu.Unlock()
}

func (s *Set) start(ctx context.Context, w *SubgraphWatcher, out chan<- SubgraphEvent, exits chan<- exit) *running {
	r := &running{
		watcher: w,
		handle: subtask.Start[SubgraphEvent](ctx, w, out,
			subtask.WithName("subgraph."+w.Name()),
			subtask.WithLogger(s.o.logger),
		),
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-r.handle.Done():
		}
		if !w.Removed() {
			return
		}
		select {
		case <-ctx.Done():
		case exits <- exit{name: w.Name(), running: r}:
		}
	}()
	return r
}

func (s *Set) shutdown() {
	s.mu.Lock()
	handles := make([]*subtask.Handle, 0, len(s.watchers))
	for _, r := range s.watchers {
		handles = append(handles, r.handle)
	}
	s.mu.Unlock()

	for _, handle := range handles {
		handle.Cancel()
	}

	s.mu.Lock()
	s.watchers = map[string]*running{}
	s.mu.Unlock()
	s.o.metrics.SetActiveWatchers(0)
}
