package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/corefan/fiberscheduler/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
// *core.Scheduler satisfies this directly via its Stats method.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports a Scheduler's Stats() snapshot
// into Prometheus gauges. Adapted from the codebase's own
// RunnerSnapshotProvider/PoolSnapshotProvider poller, collapsed to the
// single facade this domain exposes.
type SnapshotPoller struct {
	interval time.Duration

	mu        sync.RWMutex
	providers map[string]SchedulerSnapshotProvider

	freeFibers         *prom.GaugeVec
	boundFibers        *prom.GaugeVec
	outstandingByGroup *prom.GaugeVec
	fiberExhausted     *prom.GaugeVec
	staleHandle        *prom.GaugeVec
	waitTimedOut       *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	freeFibers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fiberscheduler",
		Name:      "snapshot_free_fibers",
		Help:      "Free fibers per scheduler instance.",
	}, []string{"scheduler"})
	boundFibers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fiberscheduler",
		Name:      "snapshot_bound_fibers",
		Help:      "Bound fibers per scheduler instance.",
	}, []string{"scheduler"})
	outstandingByGroup := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fiberscheduler",
		Name:      "snapshot_group_outstanding",
		Help:      "Outstanding task count per group.",
	}, []string{"scheduler", "group"})
	fiberExhausted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fiberscheduler",
		Name:      "snapshot_fiber_exhausted_total",
		Help:      "Cumulative fiber-exhaustion refusals snapshot.",
	}, []string{"scheduler"})
	staleHandle := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fiberscheduler",
		Name:      "snapshot_stale_handle_total",
		Help:      "Cumulative stale pool-handle operations snapshot.",
	}, []string{"scheduler"})
	waitTimedOut := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fiberscheduler",
		Name:      "snapshot_wait_timed_out_total",
		Help:      "Cumulative WaitGroup/WaitAll timeouts snapshot.",
	}, []string{"scheduler"})

	var err error
	if freeFibers, err = registerCollector(reg, freeFibers); err != nil {
		return nil, err
	}
	if boundFibers, err = registerCollector(reg, boundFibers); err != nil {
		return nil, err
	}
	if outstandingByGroup, err = registerCollector(reg, outstandingByGroup); err != nil {
		return nil, err
	}
	if fiberExhausted, err = registerCollector(reg, fiberExhausted); err != nil {
		return nil, err
	}
	if staleHandle, err = registerCollector(reg, staleHandle); err != nil {
		return nil, err
	}
	if waitTimedOut, err = registerCollector(reg, waitTimedOut); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:           interval,
		providers:          make(map[string]SchedulerSnapshotProvider),
		freeFibers:         freeFibers,
		boundFibers:        boundFibers,
		outstandingByGroup: outstandingByGroup,
		fiberExhausted:     fiberExhausted,
		staleHandle:        staleHandle,
		waitTimedOut:       waitTimedOut,
	}, nil
}

// Add adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) Add(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.mu.Lock()
	p.providers[name] = provider
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.providers {
		stats := provider.Stats()
		p.freeFibers.WithLabelValues(name).Set(float64(stats.FreeFibers))
		p.boundFibers.WithLabelValues(name).Set(float64(stats.FiberCount - stats.FreeFibers))
		for i, outstanding := range stats.OutstandingByGroup {
			p.outstandingByGroup.WithLabelValues(name, groupLabel(core.Group(i))).Set(float64(outstanding))
		}
		p.fiberExhausted.WithLabelValues(name).Set(float64(stats.Diagnostics.FiberExhausted))
		p.staleHandle.WithLabelValues(name).Set(float64(stats.Diagnostics.StaleHandle))
		p.waitTimedOut.WithLabelValues(name).Set(float64(stats.Diagnostics.WaitTimedOut))
	}
}
