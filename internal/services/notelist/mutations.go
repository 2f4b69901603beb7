package notelist

import (
	"context"
	"log/slog"
	"sync"
)

// mutation is one store write issued by the event loop.
type mutation struct {
	op     string
	noteID int64
	fn     func(ctx context.Context) error
	onFail func(err error)
}

// mutationQueue runs mutations one at a time in the order they were pushed.
// push never blocks, so the event loop is never held up by the store.
type mutationQueue struct {
	log     *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	pending []mutation
	closed  bool
	wake    chan struct{}
}

func newMutationQueue(log *slog.Logger, metrics *Metrics) *mutationQueue {
	return &mutationQueue{
		log:     log,
		metrics: metrics,
		wake:    make(chan struct{}, 1),
	}
}

// push enqueues m. It reports false once the queue is closed.
func (q *mutationQueue) push(m mutation) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, m)
	q.mu.Unlock()

	q.signal()
	return true
}

// close stops accepting mutations. run returns after draining what is queued.
func (q *mutationQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *mutationQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *mutationQueue) run(ctx context.Context) {
	for {
		m, ok := q.next()
		if !ok {
			return
		}
		q.exec(ctx, m)
	}
}

func (q *mutationQueue) next() (mutation, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			m := q.pending[0]
			q.pending[0] = mutation{}
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return m, true
		}
		if q.closed {
			q.mu.Unlock()
			return mutation{}, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

func (q *mutationQueue) exec(ctx context.Context, m mutation) {
	err := m.fn(ctx)
	if err == nil {
		return
	}

	q.log.Warn("note mutation failed", "op", m.op, "note_id", m.noteID, "error", err)
	q.metrics.failedMutations.WithLabelValues(m.op).Inc()
	if m.onFail != nil {
		m.onFail(err)
	}
}
