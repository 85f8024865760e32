// Package queue provides the channel that carries events from the dispatch
// goroutine to a consumer.
//
// Unlike a Go channel it can be unbounded, and when bounded the behaviour on
// overflow is an explicit Policy chosen by the caller.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

// ErrClosed is returned by Send after Close, and by Recv once the queue is
// closed and drained. For a consumer it marks the normal end of the stream.
var ErrClosed = errors.New("queue closed")

// Policy decides what Send does when a bounded queue is full.
type Policy int

const (
	// Block makes Send wait for free space (backpressure).
	Block Policy = iota
	// DropOldest discards the oldest queued value to make room.
	DropOldest
	// DropNewest discards the value being sent.
	DropNewest
)

func (p Policy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the names returned by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "block":
		return Block, nil
	case "drop-oldest":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	}
	return Block, fmt.Errorf("unknown overflow policy %q", s)
}

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithCapacity bounds the queue to n values. 0 means unbounded.
func WithCapacity[T any](n int) Option[T] {
	return func(q *Queue[T]) {
		q.capacity = n
	}
}

// WithPolicy sets the overflow policy for a bounded queue. Default: Block.
func WithPolicy[T any](p Policy) Option[T] {
	return func(q *Queue[T]) {
		q.policy = p
	}
}

// WithOnDrop registers a callback for every value dropped by the overflow
// policy. It is called without internal locks held.
func WithOnDrop[T any](fn func(v T)) Option[T] {
	return func(q *Queue[T]) {
		q.onDrop = fn
	}
}

// Queue is a FIFO safe for any number of senders and receivers.
type Queue[T any] struct {
	capacity int
	policy   Policy
	onDrop   func(T)

	mu      sync.Mutex
	items   *queue.Queue
	closed  bool
	dropped uint64

	readable chan struct{}
	writable chan struct{}
	done     chan struct{}
}

// New creates a Queue. Without options it is unbounded.
func New[T any](opts ...Option[T]) (*Queue[T], error) {
	q := &Queue[T]{
		items:    queue.New(),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	if q.capacity < 0 {
		return nil, fmt.Errorf("capacity must be non-negative, got %d", q.capacity)
	}
	if q.policy < Block || q.policy > DropNewest {
		return nil, fmt.Errorf("invalid overflow policy %v", q.policy)
	}
	return q, nil
}

// Send enqueues v. On a full bounded queue it blocks, drops the oldest value
// or drops v, according to the policy. It returns ErrClosed after Close and
// ctx.Err() if ctx is done while blocked.
func (q *Queue[T]) Send(ctx context.Context, v T) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}

		if q.capacity == 0 || q.items.Length() < q.capacity {
			q.items.Add(v)
			spare := q.capacity == 0 || q.items.Length() < q.capacity
			q.mu.Unlock()
			notify(q.readable)
			if spare {
				notify(q.writable)
			}
			return nil
		}

		switch q.policy {
		case DropOldest:
			old := q.items.Remove().(T)
			q.items.Add(v)
			q.dropped++
			q.mu.Unlock()
			notify(q.readable)
			q.drop(old)
			return nil
		case DropNewest:
			q.dropped++
			q.mu.Unlock()
			q.drop(v)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.writable:
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Recv dequeues the oldest value, blocking until one is available. Values
// queued before Close are still delivered; after that Recv returns ErrClosed.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			v := q.items.Remove().(T)
			more := q.items.Length() > 0
			q.mu.Unlock()
			notify(q.writable)
			if more {
				notify(q.readable)
			}
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-q.readable:
		case <-q.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Close stops accepting values. Safe to call multiple times.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Dropped returns how many values the overflow policy has discarded.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue[T]) drop(v T) {
	if q.onDrop != nil {
		q.onDrop(v)
	}
}

// notify performs a non-blocking wake-up on a 1-buffered signal channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
