package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quartierlabs/prospector/internal/catalog"
	"github.com/quartierlabs/prospector/internal/checkpoint"
)

// trackingProcessor counts claims per combo and observes concurrency.
type trackingProcessor struct {
	mu      sync.Mutex
	claims  map[string]int
	delay   time.Duration
	err     error
	current atomic.Int32
	peak    atomic.Int32
}

func newTrackingProcessor(delay time.Duration) *trackingProcessor {
	return &trackingProcessor{claims: make(map[string]int), delay: delay}
}

func (p *trackingProcessor) Process(_ context.Context, combo catalog.Combo) (Result, error) {
	cur := p.current.Add(1)
	for {
		peak := p.peak.Load()
		if cur <= peak || p.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer p.current.Add(-1)

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.claims[combo.Key()]++
	p.mu.Unlock()
	return Result{Listings: 1}, p.err
}

func makeCombos(n int) []catalog.Combo {
	combos := make([]catalog.Combo, n)
	for i := range n {
		combos[i] = catalog.Combo{
			Trade: catalog.Trade{Key: "plombier"},
			City:  catalog.City{Name: string(rune('A'+i%26)) + string(rune('a'+i/26)), Department: "06"},
		}
	}
	return combos
}

func newCheckpointStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "progress.json"))
	require.NoError(t, err)
	return store
}

func TestPool_EveryComboClaimedExactlyOnce(t *testing.T) {
	t.Parallel()

	combos := makeCombos(40)
	proc := newTrackingProcessor(time.Millisecond)
	state := NewRunState()
	store := newCheckpointStore(t)

	pool := NewPool(combos, proc, state, store, PoolConfig{
		MaxWorkers:     4,
		ScaleInterval:  5 * time.Millisecond,
		WorkerDelay:    0,
		FlushEvery:     5,
		ErrorRateLimit: 0.2,
	}, zap.NewNop())

	require.NoError(t, pool.Run(context.Background()))

	require.Len(t, proc.claims, 40)
	for key, n := range proc.claims {
		require.Equalf(t, 1, n, "combo %s claimed %d times", key, n)
	}
	require.Equal(t, 40, state.Counters().CombosProcessed)
	require.Greater(t, int(proc.peak.Load()), 1, "pool never scaled past one worker")
}

func TestPool_ScaleUpSuppressedByErrorRate(t *testing.T) {
	t.Parallel()

	combos := makeCombos(30)
	proc := newTrackingProcessor(2 * time.Millisecond)
	proc.err = errors.New("fetch wall")
	state := NewRunState()
	// Prior failures already push the rate over the limit before the
	// first scale tick fires.
	state.AddError()
	state.AddError()

	pool := NewPool(combos, proc, state, newCheckpointStore(t), PoolConfig{
		MaxWorkers:     5,
		ScaleInterval:  3 * time.Millisecond,
		WorkerDelay:    0,
		FlushEvery:     5,
		ErrorRateLimit: 0.2,
	}, zap.NewNop())

	require.NoError(t, pool.Run(context.Background()))

	// Every combo errored, so the rate stayed at 100% and no second
	// worker ever started.
	require.Equal(t, 1, int(proc.peak.Load()))
	require.Equal(t, 30, state.Counters().CombosProcessed)
	require.Equal(t, 32, state.Counters().Errors)
}

func TestPool_CheckpointWrittenDuringAndAfterRun(t *testing.T) {
	t.Parallel()

	combos := makeCombos(7)
	proc := newTrackingProcessor(0)
	state := NewRunState()
	store := newCheckpointStore(t)

	pool := NewPool(combos, proc, state, store, PoolConfig{
		MaxWorkers:     1,
		ScaleInterval:  time.Hour,
		WorkerDelay:    0,
		FlushEvery:     5,
		ErrorRateLimit: 0.2,
	}, zap.NewNop())

	require.NoError(t, pool.Run(context.Background()))

	cp, err := store.Load()
	require.NoError(t, err)
	require.Len(t, cp.CompletedKeys, 7)
	require.Equal(t, 7, cp.Counters.CombosProcessed)
	require.Equal(t, 7, cp.Counters.ListingsFound)
}

func TestPool_CancellationStopsNewClaims(t *testing.T) {
	t.Parallel()

	combos := makeCombos(50)
	proc := newTrackingProcessor(5 * time.Millisecond)
	state := NewRunState()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(combos, proc, state, newCheckpointStore(t), PoolConfig{
		MaxWorkers:     1,
		ScaleInterval:  time.Hour,
		WorkerDelay:    0,
		FlushEvery:     5,
		ErrorRateLimit: 0.2,
	}, zap.NewNop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, pool.Run(ctx))

	processed := state.Counters().CombosProcessed
	require.Greater(t, processed, 0)
	require.Less(t, processed, 50)
}

func TestPool_PanicCountedAndQueueDrains(t *testing.T) {
	t.Parallel()

	combos := makeCombos(6)
	state := NewRunState()

	pool := NewPool(combos, panicOnThird{}, state, newCheckpointStore(t), PoolConfig{
		MaxWorkers:     1,
		ScaleInterval:  time.Hour,
		WorkerDelay:    0,
		FlushEvery:     5,
		ErrorRateLimit: 0.2,
	}, zap.NewNop())

	require.NoError(t, pool.Run(context.Background()))
	require.Equal(t, 6, state.Counters().CombosProcessed)
	require.Equal(t, 1, state.Counters().Errors)
}

type panicOnThird struct{}

var panicCalls atomic.Int32

func (panicOnThird) Process(context.Context, catalog.Combo) (Result, error) {
	if panicCalls.Add(1) == 3 {
		panic("bad markup")
	}
	return Result{}, nil
}
