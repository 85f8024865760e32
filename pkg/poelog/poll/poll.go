// Package poll turns a continuously appended byte stream into batches of
// bytes, characters and complete lines.
//
// Each stage implements [Poller] for its own unit type and owns exactly one
// instance of the stage below it:
//
//	BytePoll (Poller[byte]) -> CharPoll (Poller[rune]) -> LinePoll (Poller[string])
//
// A stage keeps whatever state it needs across calls (for example the
// unterminated tail of a line) so callers simply call WaitAndRead in a loop.
package poll

import (
	"context"
	"time"
)

// Poller produces batches of newly available units.
//
// WaitAndRead blocks until at least one unit is available, the context is
// cancelled, or the underlying source fails. Errors are fatal for the
// poller; callers should not retry after a non-context error.
type Poller[T any] interface {
	WaitAndRead(ctx context.Context) ([]T, error)
}

// Func is an adapter to allow ordinary functions to be used as Pollers.
type Func[T any] func(ctx context.Context) ([]T, error)

// WaitAndRead implements the Poller interface.
func (f Func[T]) WaitAndRead(ctx context.Context) ([]T, error) {
	return f(ctx)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
