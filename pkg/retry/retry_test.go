package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{Initial: time.Millisecond, Max: 5 * time.Millisecond, MaxElapsed: time.Second}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, "postgres", nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxElapsed(t *testing.T) {
	p := Policy{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxElapsed: 20 * time.Millisecond}
	down := errors.New("connection refused")
	err := Do(context.Background(), p, "redis", nil, func() error { return down })
	assert.ErrorIs(t, err, down)
}

func TestDoStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Initial: time.Millisecond}, "redis", nil, func() error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
