package sizecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/pixelflood/protocol"
)

func TestMemory_GetOrFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches on miss and caches", func(t *testing.T) {
		m := NewMemory(time.Minute)

		var calls atomic.Int32
		fetch := func(context.Context) (protocol.Vec2, error) {
			calls.Add(1)
			return protocol.Vec2{X: 800, Y: 600}, nil
		}

		size, err := m.GetOrFetch(ctx, "srv:1234", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, protocol.Vec2{X: 800, Y: 600}, size)

		size, err = m.GetOrFetch(ctx, "srv:1234", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, protocol.Vec2{X: 800, Y: 600}, size)

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("different addresses are cached separately", func(t *testing.T) {
		m := NewMemory(time.Minute)

		a, err := m.GetOrFetch(ctx, "a:1", time.Minute, func(context.Context) (protocol.Vec2, error) {
			return protocol.Vec2{X: 1, Y: 1}, nil
		})
		require.NoError(t, err)

		b, err := m.GetOrFetch(ctx, "b:2", time.Minute, func(context.Context) (protocol.Vec2, error) {
			return protocol.Vec2{X: 2, Y: 2}, nil
		})
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("fetch errors are not cached", func(t *testing.T) {
		m := NewMemory(time.Minute)
		wantErr := errors.New("server unreachable")

		_, err := m.GetOrFetch(ctx, "srv:1234", time.Minute, func(context.Context) (protocol.Vec2, error) {
			return protocol.Vec2{}, wantErr
		})
		require.ErrorIs(t, err, wantErr)

		size, err := m.GetOrFetch(ctx, "srv:1234", time.Minute, func(context.Context) (protocol.Vec2, error) {
			return protocol.Vec2{X: 4, Y: 4}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, protocol.Vec2{X: 4, Y: 4}, size)
	})

	t.Run("concurrent misses collapse into one fetch", func(t *testing.T) {
		m := NewMemory(time.Minute)

		var calls atomic.Int32
		release := make(chan struct{})
		fetch := func(context.Context) (protocol.Vec2, error) {
			calls.Add(1)
			<-release
			return protocol.Vec2{X: 320, Y: 200}, nil
		}

		const goroutines = 8
		var wg sync.WaitGroup
		results := make([]protocol.Vec2, goroutines)
		errs := make([]error, goroutines)

		for i := 0; i < goroutines; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = m.GetOrFetch(ctx, "srv:1234", time.Minute, fetch)
			}()
		}

		// Let the goroutines pile up on the singleflight group.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		for i := 0; i < goroutines; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, protocol.Vec2{X: 320, Y: 200}, results[i])
		}

		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestMemory_Forget(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	var calls atomic.Int32
	fetch := func(context.Context) (protocol.Vec2, error) {
		calls.Add(1)
		return protocol.Vec2{X: 10, Y: 10}, nil
	}

	_, err := m.GetOrFetch(ctx, "srv:1234", time.Minute, fetch)
	require.NoError(t, err)
	require.NoError(t, m.Forget(ctx, "srv:1234"))

	_, err = m.GetOrFetch(ctx, "srv:1234", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParseEntry(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		size, err := parseEntry(formatEntry(protocol.Vec2{X: 1920, Y: 1080}))
		require.NoError(t, err)
		assert.Equal(t, protocol.Vec2{X: 1920, Y: 1080}, size)
	})

	t.Run("garbage entry", func(t *testing.T) {
		_, err := parseEntry("not-a-size")
		assert.Error(t, err)
	})
}
