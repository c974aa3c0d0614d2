// Package subtask runs cancellable background units of work that publish their results to a message queue.
//
// A task never owns the queue it writes to: the caller hands it the producer end of a channel and
// receives a Handle in return. Several tasks may share one queue, which is how fan-in is done
// throughout this module.
package subtask

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/jensneuse/abstractlogger"
)

// Unit is a task without an input stream.
// Run must return once ctx is done and must only enqueue through Send (or an equivalent select on ctx.Done()).
type Unit[Out any] interface {
	Run(ctx context.Context, out chan<- Out)
}

// UnitFunc adapts a function to Unit.
type UnitFunc[Out any] func(ctx context.Context, out chan<- Out)

func (f UnitFunc[Out]) Run(ctx context.Context, out chan<- Out) {
	f(ctx, out)
}

// Stream is a task whose behaviour is driven by an input stream.
type Stream[In, Out any] interface {
	Run(ctx context.Context, in <-chan In, out chan<- Out)
}

// StreamFunc adapts a function to Stream.
type StreamFunc[In, Out any] func(ctx context.Context, in <-chan In, out chan<- Out)

func (f StreamFunc[In, Out]) Run(ctx context.Context, in <-chan In, out chan<- Out) {
	f(ctx, in, out)
}

type options struct {
	name   string
	logger abstractlogger.Logger
}

type Option func(*options)

// WithName sets the name used when the task is logged.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func WithLogger(logger abstractlogger.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Handle cancels a running task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the task and blocks until its goroutine returned.
// After Cancel returns the task will not enqueue anything anymore.
// Cancel is safe to call multiple times and from multiple goroutines,
// but it must not be called from inside the task it cancels.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}

// Done is closed once the task returned, either because it was cancelled or because it exhausted its source.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task returned.
func (h *Handle) Wait() {
	<-h.done
}

// Start runs a unit task in its own goroutine, publishing to out.
func Start[Out any](ctx context.Context, task Unit[Out], out chan<- Out, opts ...Option) *Handle {
	return start(ctx, func(ctx context.Context) {
		task.Run(ctx, out)
	}, opts)
}

// StartStream runs a stream task in its own goroutine, consuming in and publishing to out.
func StartStream[In, Out any](ctx context.Context, task Stream[In, Out], in <-chan In, out chan<- Out, opts ...Option) *Handle {
	return start(ctx, func(ctx context.Context) {
		task.Run(ctx, in, out)
	}, opts)
}

// Pipe runs a unit task on a channel it owns. The channel is closed after the task returned.
func Pipe[Out any](ctx context.Context, task Unit[Out], buffer int, opts ...Option) (<-chan Out, *Handle) {
	out := make(chan Out, buffer)
	handle := Start(ctx, task, out, opts...)
	go func() {
		<-handle.done
		close(out)
	}()
	return out, handle
}

// PipeStream is Pipe for stream tasks.
func PipeStream[In, Out any](ctx context.Context, task Stream[In, Out], in <-chan In, buffer int, opts ...Option) (<-chan Out, *Handle) {
	out := make(chan Out, buffer)
	handle := StartStream(ctx, task, in, out, opts...)
	go func() {
		<-handle.done
		close(out)
	}()
	return out, handle
}

// Send enqueues v unless ctx is done first. It reports whether v was enqueued.
func Send[T any](ctx context.Context, out chan<- T, v T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case out <- v:
		return true
	}
}

func start(parent context.Context, run func(ctx context.Context), opts []Option) *Handle {
	o := options{
		name:   "subtask",
		logger: abstractlogger.NoopLogger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("subtask.run",
					abstractlogger.String("task", o.name),
					abstractlogger.Error(fmt.Errorf("panic: %v", r)),
					abstractlogger.ByteString("stack", debug.Stack()),
				)
			}
		}()
		run(ctx)
	}()

	return h
}
