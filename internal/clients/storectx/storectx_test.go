package storectx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithTimeout(t *testing.T) {
	t.Run("adds a deadline", func(t *testing.T) {
		ctx, cancel := WithTimeout(context.Background(), time.Minute)
		defer cancel()

		dl, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), dl, time.Second)
	})

	t.Run("keeps a stricter parent deadline", func(t *testing.T) {
		parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
		defer parentCancel()

		ctx, cancel := WithTimeout(parent, time.Minute)
		defer cancel()
		assert.Equal(t, parent, ctx)
	})

	t.Run("returns a cancelled parent unchanged", func(t *testing.T) {
		parent, parentCancel := context.WithCancel(context.Background())
		parentCancel()

		ctx, cancel := WithTimeout(parent, time.Minute)
		cancel()
		assert.Equal(t, parent, ctx)
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}
