package notelist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationQueue_RunsInOrder(t *testing.T) {
	q := newMutationQueue(silentLogger, NewMetrics(nil))

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 50 {
		require.True(t, q.push(mutation{op: "n", fn: func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}}))
	}
	q.close()
	assert.False(t, q.push(mutation{op: "late", fn: func(context.Context) error { return nil }}))

	done := make(chan struct{})
	go func() {
		q.run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after close")
	}

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestMutationQueue_ReportsFailures(t *testing.T) {
	m := NewMetrics(nil)
	q := newMutationQueue(silentLogger, m)
	boom := errors.New("boom")

	var reported error
	q.push(mutation{
		op: EventRemoveNote,
		fn: func(context.Context) error { return boom },
		onFail: func(err error) {
			reported = err
		},
	})
	q.push(mutation{op: EventRemoveNote, fn: func(context.Context) error { return nil }})
	q.close()
	q.run(context.Background())

	assert.ErrorIs(t, reported, boom)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failedMutations.WithLabelValues(EventRemoveNote)))
}

func TestMutationQueue_WaitsForWork(t *testing.T) {
	q := newMutationQueue(silentLogger, NewMetrics(nil))
	done := make(chan struct{})
	go func() {
		q.run(context.Background())
		close(done)
	}()

	ran := make(chan struct{})
	q.push(mutation{op: "late", fn: func(context.Context) error {
		close(ran)
		return nil
	}})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued mutation never ran")
	}
	q.close()
	<-done
}
