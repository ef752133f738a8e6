package runlock_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/narration-pipeline/internal/runlock"
)

func TestRun_ExecutesAndReleases(t *testing.T) {
	t.Parallel()

	lock := runlock.New(filepath.Join(t.TempDir(), "narration.lock"))
	calls := 0

	for range 2 {
		require.NoError(t, lock.Run(context.Background(), func(context.Context) { calls++ }))
	}

	assert.Equal(t, 2, calls)
}

func TestTryRun_BusyAcrossHandles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "narration.lock")
	holder := runlock.New(path)
	other := runlock.New(path)

	var inner error

	require.NoError(t, holder.Run(context.Background(), func(ctx context.Context) {
		inner = other.TryRun(ctx, func(context.Context) { t.Error("ran while lock was held") })
	}))

	require.ErrorIs(t, inner, runlock.ErrBusy)
	require.NoError(t, other.TryRun(context.Background(), func(context.Context) {}))
}

func TestTryRun_BusyWithinProcess(t *testing.T) {
	t.Parallel()

	lock := runlock.New(filepath.Join(t.TempDir(), "narration.lock"))

	var inner error

	require.NoError(t, lock.Run(context.Background(), func(ctx context.Context) {
		inner = lock.TryRun(ctx, func(context.Context) {})
	}))

	require.ErrorIs(t, inner, runlock.ErrBusy)
}

func TestRun_GivesUpWhenContextEnds(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "narration.lock")
	holder := runlock.New(path)
	waiter := runlock.New(path)

	var inner error

	require.NoError(t, holder.Run(context.Background(), func(context.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		inner = waiter.Run(ctx, func(context.Context) { t.Error("ran while lock was held") })
	}))

	require.Error(t, inner)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "narration.lock"), waiter.Path())
}
