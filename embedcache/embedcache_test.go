package embedcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := New()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("h1", []float64{1, 2, 3})
	v, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, v)

	v[0] = 99
	v2, _ := c.Get("h1")
	assert.Equal(t, float64(1), v2[0], "Get must return a defensive copy")
}

func TestCache_GetOrCompute_collapsesConcurrentMisses(t *testing.T) {
	c := New()
	var calls int32

	compute := func(ctx context.Context) ([]float64, error) {
		atomic.AddInt32(&calls, 1)
		return []float64{0.1, 0.2}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "same-hash", compute)
			assert.NoError(t, err)
			assert.Equal(t, []float64{0.1, 0.2}, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, c.Len())
}

func TestCache_GetOrCompute_propagatesError(t *testing.T) {
	c := New()
	wantErr := assert.AnError

	_, err := c.GetOrCompute(context.Background(), "h", func(ctx context.Context) ([]float64, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, c.Len())
}
