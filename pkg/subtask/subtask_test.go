package subtask

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func counter(limit int) UnitFunc[int] {
	return func(ctx context.Context, out chan<- int) {
		for i := 0; limit < 0 || i < limit; i++ {
			if !Send(ctx, out, i) {
				return
			}
		}
	}
}

func TestStart(t *testing.T) {
	t.Run("unit task exhausting its source", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		out := make(chan int, 3)
		handle := Start[int](context.Background(), counter(3), out)

		select {
		case <-handle.Done():
		case <-time.After(time.Second):
			t.Fatal("task did not finish")
		}

		close(out)
		var got []int
		for v := range out {
			got = append(got, v)
		}
		assert.Equal(t, []int{0, 1, 2}, got)
	})

	t.Run("cancel stops emissions", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		out := make(chan int)
		handle := Start[int](context.Background(), counter(-1), out)

		for i := 0; i < 5; i++ {
			select {
			case v := <-out:
				assert.Equal(t, i, v)
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for value")
			}
		}

		handle.Cancel()

		select {
		case v := <-out:
			t.Fatalf("unexpected value after cancel: %d", v)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		out := make(chan int)
		handle := Start[int](context.Background(), counter(-1), out)
		handle.Cancel()
		handle.Cancel()

		select {
		case <-handle.Done():
		default:
			t.Fatal("handle should be done")
		}
	})

	t.Run("parent cancellation stops the task", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		ctx, cancel := context.WithCancel(context.Background())
		handle := Start[int](ctx, counter(-1), make(chan int))
		cancel()
		handle.Wait()
	})

	t.Run("panic is recovered", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		handle := Start[int](context.Background(), UnitFunc[int](func(ctx context.Context, out chan<- int) {
			panic("boom")
		}), make(chan int), WithName("panicking"))
		handle.Wait()
	})
}

func TestStartStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	double := StreamFunc[int, int](func(ctx context.Context, in <-chan int, out chan<- int) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if !Send(ctx, out, v*2) {
					return
				}
			}
		}
	})

	in := make(chan int)
	out, handle := PipeStream[int, int](context.Background(), double, in, 0)

	go func() {
		for i := 1; i <= 3; i++ {
			in <- i
		}
		close(in)
	}()

	var got []int
	for v := range out {
		got = append(got, v)
	}
	require.Equal(t, []int{2, 4, 6}, got)
	handle.Cancel()
}

func TestPipe(t *testing.T) {
	defer goleak.VerifyNone(t)

	out, handle := Pipe[int](context.Background(), counter(-1), 0)
	assert.Equal(t, 0, <-out)
	handle.Cancel()

	_, ok := <-out
	for ok {
		_, ok = <-out
	}
	assert.False(t, ok)
}

func TestSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan int, 1)
	assert.False(t, Send(ctx, out, 1))
	assert.Len(t, out, 0)
}
