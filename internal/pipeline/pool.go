package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quartierlabs/prospector/internal/catalog"
	"github.com/quartierlabs/prospector/internal/checkpoint"
	"github.com/quartierlabs/prospector/internal/metrics"
)

// comboProcessor lets tests substitute the Processor.
type comboProcessor interface {
	Process(ctx context.Context, combo catalog.Combo) (Result, error)
}

// PoolConfig controls worker scaling and checkpoint cadence.
type PoolConfig struct {
	// MaxWorkers caps the worker population. The effective cap is also
	// bounded by ceil(queue/10).
	MaxWorkers int
	// ScaleInterval is the delay between adding workers.
	ScaleInterval time.Duration
	// WorkerDelay is the pacing sleep after each completed combo.
	WorkerDelay time.Duration
	// FlushEvery checkpoints after this many completed combos.
	FlushEvery int
	// ErrorRateLimit suppresses scale-up while errors exceed this
	// fraction of processed combos.
	ErrorRateLimit float64
}

// DefaultPoolConfig returns the production scaling schedule.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxWorkers:     5,
		ScaleInterval:  2 * time.Minute,
		WorkerDelay:    5 * time.Second,
		FlushEvery:     5,
		ErrorRateLimit: 0.2,
	}
}

// Pool drains the combo queue with a progressively growing worker set.
// Workers claim combos through a single atomic index, so no combo is
// ever claimed twice.
type Pool struct {
	combos      []catalog.Combo
	processor   comboProcessor
	state       *RunState
	checkpoints *checkpoint.Store
	cfg         PoolConfig
	logger      *zap.Logger

	next    atomic.Int64
	workers atomic.Int32
}

// NewPool wires a Pool over the remaining combos.
func NewPool(
	combos []catalog.Combo,
	processor comboProcessor,
	state *RunState,
	checkpoints *checkpoint.Store,
	cfg PoolConfig,
	logger *zap.Logger,
) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 5
	}
	return &Pool{
		combos:      combos,
		processor:   processor,
		state:       state,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run blocks until the queue drains or ctx is canceled. In-flight
// combos finish after cancellation; only new claims stop. A final
// checkpoint flush always runs.
func (p *Pool) Run(ctx context.Context) error {
	if len(p.combos) == 0 {
		return nil
	}

	maxWorkers := p.cfg.MaxWorkers
	if bound := (len(p.combos) + 9) / 10; bound < maxWorkers {
		maxWorkers = bound
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var wg sync.WaitGroup
	start := func(id int) {
		wg.Add(1)
		n := int(p.workers.Add(1))
		p.state.SetActiveWorkers(n)
		metrics.SetActiveWorkers(n)
		p.logger.Info("worker started", zap.Int("worker", id), zap.Int("active", n))
		go func() {
			defer wg.Done()
			p.runWorker(ctx, id)
			n := int(p.workers.Add(-1))
			p.state.SetActiveWorkers(n)
			metrics.SetActiveWorkers(n)
		}()
	}

	start(1)

	scaleDone := make(chan struct{})
	go func() {
		defer close(scaleDone)
		p.scaleUp(ctx, maxWorkers, start)
	}()

	wg.Wait()
	<-scaleDone

	if err := p.flush(); err != nil {
		p.logger.Error("final checkpoint flush failed", zap.Error(err))
		return err
	}
	return nil
}

// scaleUp adds one worker per interval until the cap is reached, the
// queue drains, or ctx ends. Scale-up is skipped while the error rate
// is above the limit.
func (p *Pool) scaleUp(ctx context.Context, maxWorkers int, start func(id int)) {
	if p.cfg.ScaleInterval <= 0 || maxWorkers <= 1 {
		return
	}
	ticker := time.NewTicker(p.cfg.ScaleInterval)
	defer ticker.Stop()

	nextID := 2
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if nextID > maxWorkers || p.next.Load() >= int64(len(p.combos)) {
			return
		}
		if p.state.ErrorRateExceeds(p.cfg.ErrorRateLimit) {
			counters := p.state.Counters()
			p.logger.Warn("scale-up suppressed by error rate",
				zap.Int("errors", counters.Errors),
				zap.Int("processed", counters.CombosProcessed),
			)
			continue
		}
		start(nextID)
		nextID++
	}
}

// runWorker claims combos until the queue is exhausted or ctx ends.
func (p *Pool) runWorker(ctx context.Context, id int) {
	for ctx.Err() == nil {
		i := p.next.Add(1) - 1
		if i >= int64(len(p.combos)) {
			return
		}
		p.processOne(ctx, id, p.combos[i])

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.WorkerDelay):
		}
	}
}

// processOne runs a single combo and always marks it completed: a
// poison combo must never block the queue.
func (p *Pool) processOne(ctx context.Context, workerID int, combo catalog.Combo) {
	started := time.Now()
	outcome := "ok"

	func() {
		defer func() {
			if r := recover(); r != nil {
				outcome = "panic"
				p.state.AddError()
				p.logger.Error("combo panicked",
					zap.Int("worker", workerID),
					zap.String("combo", combo.Key()),
					zap.Any("panic", r),
				)
			}
		}()

		result, err := p.processor.Process(ctx, combo)
		if err != nil {
			outcome = "error"
			p.state.AddError()
			p.logger.Warn("combo failed",
				zap.Int("worker", workerID),
				zap.String("combo", combo.Key()),
				zap.Error(err),
			)
			return
		}
		p.logger.Info("combo processed",
			zap.Int("worker", workerID),
			zap.String("combo", combo.Key()),
			zap.Int("listings", result.Listings),
			zap.Int("phones", result.Phones),
			zap.Int("ratings", result.Ratings),
			zap.Int("websites", result.Websites),
		)
	}()

	p.state.MarkCompleted(combo.Key())
	metrics.ObserveCombo(outcome, time.Since(started))

	if p.state.Counters().CombosProcessed%p.cfg.FlushEvery == 0 {
		if err := p.flush(); err != nil {
			p.logger.Error("checkpoint flush failed", zap.Error(err))
		}
	}
}

// flush rewrites the checkpoint from current state.
func (p *Pool) flush() error {
	if p.checkpoints == nil {
		return nil
	}
	cp := checkpoint.Checkpoint{
		CompletedKeys: p.state.CompletedKeys(),
		Counters:      p.state.Counters(),
	}
	if err := p.checkpoints.Save(cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
