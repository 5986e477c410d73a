package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) (*StateTracker, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client), s
}

func TestStateTracker_Exec(t *testing.T) {
	t.Parallel()

	t.Run("runs once", func(t *testing.T) {
		t.Parallel()

		// Arrange
		tr, _ := newTracker(t)
		calls := 0
		fn := func(context.Context) error { calls++; return nil }

		// Act
		first := tr.Exec(context.Background(), "telegram:update:1", fn)
		second := tr.Exec(context.Background(), "telegram:update:1", fn)

		// Assert
		require.NoError(t, first)
		assert.ErrorIs(t, second, ErrAlreadyCompleted)
		assert.Equal(t, 1, calls)
	})

	t.Run("remembers failure", func(t *testing.T) {
		t.Parallel()

		tr, _ := newTracker(t)
		errBoom := errors.New("boom")

		err := tr.Exec(context.Background(), "k", func(context.Context) error { return errBoom })
		require.ErrorIs(t, err, errBoom)

		err = tr.Exec(context.Background(), "k", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrAlreadyFailed)
	})

	t.Run("reports in progress", func(t *testing.T) {
		t.Parallel()

		tr, _ := newTracker(t)
		state, err := tr.Acquire(context.Background(), "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, StateNone, state)

		err = tr.Exec(context.Background(), "k", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrAlreadyInProgress)
	})

	t.Run("state expires", func(t *testing.T) {
		t.Parallel()

		tr, s := newTracker(t)
		fn := func(context.Context) error { return nil }

		require.NoError(t, tr.Exec(context.Background(), "k", fn, WithStateTTL(time.Second)))
		s.FastForward(2 * time.Second)

		assert.NoError(t, tr.Exec(context.Background(), "k", fn))
	})

	t.Run("unknown stored value", func(t *testing.T) {
		t.Parallel()

		tr, s := newTracker(t)
		require.NoError(t, s.Set("idempotency:k", "garbage"))

		err := tr.Exec(context.Background(), "k", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}
