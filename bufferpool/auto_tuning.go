package bufferpool

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/mem"
	"github.com/sirupsen/logrus"

	"github.com/astorelabs/astore/logger"
)

// Partitions are the hot/cold/free target percentages the AutoTuner
// recommends and applies to the pool's lruK via BufferPool.SetPartitions.
// The AutoTuner itself never evicts, pins, or touches a slot directly —
// it only moves the capacity bounds lruK.Touch enforces on its own.
type Partitions struct {
	HotPercent, ColdPercent, FreePercent int
}

// AutoTuner periodically samples BufferPoolStats and host memory pressure
// via gopsutil/mem and recomputes Partitions. It is started explicitly by
// the caller, never implicitly by New, and owns a lock entirely outside
// the pool's five-position lock-ordering hierarchy — it is never held
// while any pool lock is held and never acquired while holding one.
type AutoTuner struct {
	pool       *BufferPool
	stats      *Stats
	windowSize time.Duration
	log        *logrus.Logger

	mu      sync.Mutex
	current Partitions

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutoTuner builds a tuner with the given starting targets and sampling
// window. Call Start to begin sampling.
func NewAutoTuner(pool *BufferPool, stats *Stats, windowSize time.Duration, initial Partitions) *AutoTuner {
	return &AutoTuner{
		pool:       pool,
		stats:      stats,
		windowSize: windowSize,
		log:        logger.Default(),
		current:    initial,
	}
}

// Current returns the tuner's latest recommendation.
func (t *AutoTuner) Current() Partitions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Start launches the sampling goroutine. Calling Start twice without a
// Stop in between is a caller error and panics, since it would leak a
// goroutine.
func (t *AutoTuner) Start(ctx context.Context) {
	if t.cancel != nil {
		panic("bufferpool: AutoTuner already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.windowSize)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sample()
			}
		}
	}()
}

// Stop cancels sampling and waits for the goroutine to exit.
func (t *AutoTuner) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
}

func (t *AutoTuner) sample() {
	snap := t.stats.Snapshot()
	ratio := snap.HitRatio()

	vm, err := mem.VirtualMemory()
	if err != nil {
		t.log.Warnf("bufferpool: auto-tuner could not read memory stats: %v", err)
		return
	}

	t.mu.Lock()

	// Under memory pressure, shrink the free reserve in favor of cold
	// (more working set stays resident under eviction pressure); with a
	// low hit ratio, grow hot at cold's expense (recent-use pages are
	// being evicted too soon).
	switch {
	case vm.UsedPercent > 90:
		t.current.FreePercent = maxInt(t.current.FreePercent-5, 5)
		t.current.ColdPercent = 100 - t.current.HotPercent - t.current.FreePercent
	case ratio < 0.8 && t.current.HotPercent < 70:
		t.current.HotPercent += 5
		t.current.ColdPercent = 100 - t.current.HotPercent - t.current.FreePercent
	}
	parts := t.current
	t.mu.Unlock()

	t.pool.SetPartitions(parts)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
