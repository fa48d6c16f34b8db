// Package queue implements the internal ET/SX work queues (spec.md §4.D):
// bounded in-process channels standing in for the "embedded message broker"
// the spec explicitly calls out as replaceable and out of scope. Modeled on
// the teacher's streaming.Publisher/Subscriber split (control_plane/streaming
// /interface.go) but backed by channels instead of a pub/sub bus, since both
// ends of each queue live in this one process. Generic over the element
// type so the ET queue carries siri.EstimatedVehicleJourney and the SX
// queue carries siri.PtSituationElement without a marshal/unmarshal round
// trip neither side needs.
package queue

import (
	"context"
	"errors"

	"github.com/entur/ukur/internal/observability"
)

// Kind distinguishes the ET and SX work queues, for metric labeling.
type Kind string

const (
	KindET Kind = "ET"
	KindSX Kind = "SX"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Queue is a bounded FIFO of elements awaiting processing.
type Queue[T any] struct {
	kind   Kind
	ch     chan T
	closed chan struct{}
}

// New creates a Queue of the given kind with the given channel capacity.
func New[T any](kind Kind, capacity int) *Queue[T] {
	return &Queue[T]{
		kind:   kind,
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue adds elem to the queue, blocking if it is full until ctx is done
// or the queue is closed. Split-brain double-delivery is tolerated by
// design (spec.md §5): downstream processing must be idempotent.
func (q *Queue[T]) Enqueue(ctx context.Context, elem T) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- elem:
		observability.QueueDepth.WithLabelValues(string(q.kind)).Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}
}

// Dequeue blocks until an element is available, ctx is done, or the queue
// is closed and drained.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, bool) {
	select {
	case elem, ok := <-q.ch:
		observability.QueueDepth.WithLabelValues(string(q.kind)).Set(float64(len(q.ch)))
		return elem, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Close stops accepting new elements and closes the underlying channel.
func (q *Queue[T]) Close() {
	select {
	case <-q.closed:
		return
	default:
		close(q.closed)
		close(q.ch)
	}
}

// Run calls handle for every element dequeued until ctx is cancelled or the
// queue is closed and empty.
func (q *Queue[T]) Run(ctx context.Context, handle func(elem T)) {
	for {
		elem, ok := q.Dequeue(ctx)
		if !ok {
			return
		}
		handle(elem)
	}
}
