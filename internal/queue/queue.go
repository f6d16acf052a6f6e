// Package queue implements the engine's single-flight operation queue:
// side-effecting async work is executed strictly one at a time, in
// priority order with FIFO tie-breaking, and urgent operations preempt
// everything still pending without interrupting the operation in flight.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by tickets whose queue was closed before their
// operation ran.
var ErrClosed = errors.New("operation queue closed")

// Operation is a unit of side-effecting work.
type Operation func(ctx context.Context) (any, error)

// Ticket is the caller's handle on an enqueued operation.
type Ticket struct {
	done   chan struct{}
	result any
	err    error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) complete(result any, err error) {
	t.result = result
	t.err = err
	close(t.done)
}

// Wait blocks until the operation has settled or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the operation has settled.
func (t *Ticket) Done() <-chan struct{} { return t.done }

type item struct {
	op       Operation
	ticket   *Ticket
	urgent   bool
	priority int
	seq      uint64
}

// opHeap orders items: urgent first, then higher priority, then FIFO.
type opHeap []*item

func (h opHeap) Len() int { return len(h) }

func (h opHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.urgent != b.urgent {
		return a.urgent
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

func (h opHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *opHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *opHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue serializes operations for a single engine instance. At most one
// operation is in flight at any time.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   opHeap
	seq     uint64
	closed  bool
	busy    bool
	baseCtx context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a queue and starts its worker goroutine. Operations
// receive a context that is canceled when the queue is closed.
func New() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		baseCtx: ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Enqueue submits an operation at the given priority. Higher priorities
// run first; ties run in enqueue order.
func (q *Queue) Enqueue(op Operation, priority int) *Ticket {
	return q.push(op, priority, false)
}

// EnqueueUrgent submits an operation that runs before everything still
// pending, regardless of priorities. It never interrupts an operation
// already in flight.
func (q *Queue) EnqueueUrgent(op Operation) *Ticket {
	return q.push(op, 0, true)
}

func (q *Queue) push(op Operation, priority int, urgent bool) *Ticket {
	t := newTicket()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.complete(nil, ErrClosed)
		return t
	}
	q.seq++
	heap.Push(&q.items, &item{
		op:       op,
		ticket:   t,
		urgent:   urgent,
		priority: priority,
		seq:      q.seq,
	})
	q.cond.Signal()
	q.mu.Unlock()

	return t
}

// Len returns the number of pending operations, excluding any operation
// in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Busy reports whether an operation is in flight or pending.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy || len(q.items) > 0
}

// Close rejects all pending operations with ErrClosed and cancels the
// context seen by operations. An operation already in flight keeps
// running; cancellation is cooperative.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	q.cancel()
	for _, it := range pending {
		it.ticket.complete(nil, ErrClosed)
	}
}

// Stopped is closed once the worker goroutine has exited.
func (q *Queue) Stopped() <-chan struct{} { return q.stopped }

func (q *Queue) run() {
	defer close(q.stopped)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		it := heap.Pop(&q.items).(*item)
		q.busy = true
		q.mu.Unlock()

		result, err := runOp(q.baseCtx, it.op)

		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()

		// Complete after bookkeeping so a waiter observing the ticket
		// never sees the queue still counting its operation.
		it.ticket.complete(result, err)
	}
}

// runOp invokes op, converting a panic into an error so a failing
// operation cannot degrade queue health.
func runOp(ctx context.Context, op Operation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panic: %v", r)
		}
	}()
	return op(ctx)
}
