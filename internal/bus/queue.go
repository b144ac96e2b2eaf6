// Package bus decouples event intake from reconciliation with a bounded,
// non-blocking in-memory queue. Publishers never block: a full queue is
// surfaced to the caller, which owns the retry or drop decision.
package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/yanun0323/logs"

	"stratmgr/internal/schema"
)

var (
	ErrQueueFull   = errors.New("bus: event queue full")
	ErrQueueClosed = errors.New("bus: event queue closed")
)

// Event is the unit passed through the in-memory bus: exactly one of the
// two journal payloads is set, selected by Kind.
type Event struct {
	Kind  schema.EventType
	Order schema.OrderJournal
	Fill  schema.FillJournal
}

// Handler consumes dispatched events.
type Handler interface {
	HandleOrderJournal(ctx context.Context, oj schema.OrderJournal) error
	HandleFillJournal(ctx context.Context, fj schema.FillJournal) error
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublishOrder enqueues one order lifecycle event without blocking.
func (q *Queue) TryPublishOrder(oj schema.OrderJournal) error {
	return q.tryPublish(Event{Kind: schema.EventOrderJournal, Order: oj})
}

// TryPublishFill enqueues one execution event without blocking.
func (q *Queue) TryPublishFill(fj schema.FillJournal) error {
	return q.tryPublish(Event{Kind: schema.EventFillJournal, Fill: fj})
}

func (q *Queue) tryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of queued events.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close stops the queue from accepting new events. Already-queued events
// are still delivered to Run.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run dispatches events to the handler until the context is done or the
// queue is closed and drained. Handler errors are terminal per event and
// already carry their own alerts, so they are only logged here.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			q.dispatch(ctx, e, handler)
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, e Event, handler Handler) {
	switch e.Kind {
	case schema.EventOrderJournal:
		if err := handler.HandleOrderJournal(ctx, e.Order); err != nil {
			logs.Errorf("order event %s for %s failed: %+v",
				e.Order.OrderEventType, e.Order.Order.OrderID, err)
		}
	case schema.EventFillJournal:
		if err := handler.HandleFillJournal(ctx, e.Fill); err != nil {
			logs.Errorf("fill %s on order %s failed: %+v", e.Fill.FillID, e.Fill.OrderID, err)
		}
	default:
		logs.Errorf("dropping event with unknown kind %d", e.Kind)
	}
}
