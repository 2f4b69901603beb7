package notes

import (
	"context"
	"sync"

	"fido/internal/feed"
)

// Query is a live, ordered view over the store started by GetAllNotes.
type Query struct {
	Order OrderBy
	// C delivers a freshly ordered collection after every store change.
	// It is closed once the query ends.
	C <-chan []Note

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func startQuery(parent context.Context, sub *feed.Subscription[[]Note], order OrderBy) *Query {
	ctx, cancel := context.WithCancel(parent)
	out := make(chan []Note)
	q := &Query{
		Order:  order,
		C:      out,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(q.done)
		defer close(out)
		defer sub.Cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case all, ok := <-sub.Ch:
				if !ok {
					return
				}
				sorted := Sort(all, order)
				select {
				case out <- sorted:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return q
}

// Cancel stops the query and waits until its goroutine has exited, so no
// value is sent on C after Cancel returns. Safe to call more than once.
func (q *Query) Cancel() {
	q.once.Do(func() {
		q.cancel()
		<-q.done
	})
}

// Done is closed when the query has fully stopped.
func (q *Query) Done() <-chan struct{} {
	return q.done
}
