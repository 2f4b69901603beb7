// Package feed broadcasts full-state values to any number of subscribers.
//
// Every value published on a Hub is a complete snapshot, so a slow subscriber
// never needs the values it missed: when its buffer is full the oldest queued
// value is replaced by the newest one. New subscribers receive the latest
// value immediately, then every later publication in order.
package feed

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fido/internal/logger"

	"github.com/oklog/ulid/v2"
)

// Subscription is the handle returned by Hub.Subscribe.
type Subscription[T any] struct {
	ID          ulid.ULID
	ConnectedAt time.Time
	Ch          <-chan T
	Done        <-chan struct{}

	cancel func()
}

// Cancel detaches the subscription from its hub and closes Ch and Done.
// It is safe to call more than once.
func (s *Subscription[T]) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscriber[T any] struct {
	ch   chan T
	done chan struct{}
}

// Hub fans out published snapshots to subscribers.
type Hub[T any] struct {
	name       string
	mu         sync.Mutex
	subs       map[ulid.ULID]*subscriber[T]
	latest     T
	hasLatest  bool
	closed     bool
	bufferSize int
	replaced   uint64
}

// NewHub creates a hub whose subscriber channels hold bufferSize values.
// The name only shows up in debug logs.
func NewHub[T any](name string, bufferSize int) *Hub[T] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Hub[T]{
		name:       name,
		subs:       make(map[ulid.ULID]*subscriber[T]),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new subscriber. If a value was already published it
// is queued on the new channel before Subscribe returns. Subscribing to a
// closed hub yields an already-closed subscription.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	sub := &subscriber[T]{
		ch:   make(chan T, h.bufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		close(sub.done)
		return &Subscription[T]{ID: id, ConnectedAt: time.Now(), Ch: sub.ch, Done: sub.done}
	}
	h.subs[id] = sub
	if h.hasLatest {
		sub.ch <- h.latest
	}
	h.mu.Unlock()

	log := logger.L()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("feed subscribed", "feed", h.name, "sub_id", id.String())
	}

	var once sync.Once
	return &Subscription[T]{
		ID:          id,
		ConnectedAt: time.Now(),
		Ch:          sub.ch,
		Done:        sub.done,
		cancel: func() {
			once.Do(func() { h.Unsubscribe(id) })
		},
	}
}

// Unsubscribe removes a subscriber and closes its channels.
func (h *Hub[T]) Unsubscribe(id ulid.ULID) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
		close(sub.done)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	log := logger.L()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("feed unsubscribed", "feed", h.name, "sub_id", id.String())
	}
}

// Publish records v as the latest value and delivers it to every subscriber.
// Publish never blocks on a slow subscriber. Publishing on a closed hub is a
// no-op.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = v
	h.hasLatest = true

	for _, sub := range h.subs {
		sendLatest(sub.ch, v, func() {
			atomic.AddUint64(&h.replaced, 1)
		})
	}
}

// Latest returns the most recently published value.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.hasLatest
}

// Close unsubscribes everyone and rejects further publications.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
		close(sub.done)
	}
}

// Stats returns current counters for observability / tests.
func (h *Hub[T]) Stats() (subscribers int, replaced uint64) {
	h.mu.Lock()
	subscribers = len(h.subs)
	h.mu.Unlock()
	return subscribers, atomic.LoadUint64(&h.replaced)
}

// sendLatest is the only place that decides to overwrite a queued value.
// Only the publisher sends (under the hub lock), so after one value is
// drained the second send always finds room.
func sendLatest[T any](ch chan T, v T, onReplace func()) {
	select {
	case ch <- v:
		return
	default:
	}

	select {
	case <-ch:
		onReplace()
	default:
	}
	ch <- v
}
