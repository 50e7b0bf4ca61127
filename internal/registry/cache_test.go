package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quartierlabs/prospector/internal/match"
)

func TestCache_LoadsLazilyAndOnce(t *testing.T) {
	t.Parallel()

	loads := map[string]int{}
	cache := NewCache(3, func(_ context.Context, dept string) ([]match.Candidate, error) {
		loads[dept]++
		return []match.Candidate{{ID: dept + "-1"}}, nil
	})

	ctx := context.Background()
	for range 3 {
		pool, err := cache.Get(ctx, "06")
		require.NoError(t, err)
		require.Len(t, pool, 1)
	}
	require.Equal(t, 1, loads["06"])
}

func TestCache_FIFOEviction(t *testing.T) {
	t.Parallel()

	loads := map[string]int{}
	cache := NewCache(2, func(_ context.Context, dept string) ([]match.Candidate, error) {
		loads[dept]++
		return nil, nil
	})

	ctx := context.Background()
	for _, dept := range []string{"01", "02", "03"} {
		_, err := cache.Get(ctx, dept)
		require.NoError(t, err)
	}
	require.Equal(t, 2, cache.Len())

	// "01" was oldest-inserted and must reload; "02" must not.
	_, err := cache.Get(ctx, "02")
	require.NoError(t, err)
	require.Equal(t, 1, loads["02"])

	_, err = cache.Get(ctx, "01")
	require.NoError(t, err)
	require.Equal(t, 2, loads["01"])
}

func TestCache_LoaderErrorNotCached(t *testing.T) {
	t.Parallel()

	var calls int
	cache := NewCache(2, func(_ context.Context, _ string) ([]match.Candidate, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("registry unavailable")
		}
		return nil, nil
	})

	ctx := context.Background()
	_, err := cache.Get(ctx, "06")
	require.Error(t, err)

	_, err = cache.Get(ctx, "06")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := NewCache(20, func(_ context.Context, dept string) ([]match.Candidate, error) {
		return []match.Candidate{{ID: dept}}, nil
	})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dept := fmt.Sprintf("%02d", i%4+1)
			for range 50 {
				pool, err := cache.Get(context.Background(), dept)
				require.NoError(t, err)
				require.Equal(t, dept, pool[0].ID)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 4, cache.Len())
}
