package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLaunchesOnce(t *testing.T) {
	var launches int
	running := false
	manager := New(Config{DebugPort: 9333},
		WithLauncher(func(ctx context.Context) error {
			launches++
			running = true
			return nil
		}),
		WithProbe(func(ctx context.Context, debugURL string) bool {
			return running
		}))

	ctx := context.Background()
	first, err := manager.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9333", first.DebugURL)
	assert.Equal(t, 1, launches)

	second, err := manager.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, launches)
	assert.Equal(t, 2, manager.Refs())

	// Releasing every lease keeps the browser running for the next task.
	first.Release()
	second.Release()
	second.Release()
	assert.Equal(t, 0, manager.Refs())
	assert.True(t, running)

	_, err = manager.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, launches)
}

func TestAcquireLaunchFailure(t *testing.T) {
	manager := New(Config{},
		WithLauncher(func(ctx context.Context) error {
			return assert.AnError
		}),
		WithProbe(func(ctx context.Context, debugURL string) bool {
			return false
		}))

	_, err := manager.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch browser")
	assert.Equal(t, 0, manager.Refs())
}
