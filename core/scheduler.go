package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// taskPoolCapacity is the Generation-Tagged Pool capacity backing live
// TaskDesc records. It must be a power of two comfortably larger than
// any expected in-flight task count; exhaustion is benign back-pressure
// (§7) logged as a diagnostic, not an error returned to the caller.
const taskPoolCapacity = 8192

// Scheduler is the Scheduler Facade of §4.G: it owns the worker array,
// the fiber-context array and free-fiber queue, the group array, and
// the round-robin submission index.
type Scheduler struct {
	config Config
	diag   *Diagnostics

	groups     *groupManager
	taskPool   *Pool[*taskDesc]
	fibers     []*fiberContext
	freeFibers *ConcurrentQueue[*fiberContext]
	workers    []*worker
	history    *executionHistory

	nextWorker atomic.Uint64

	stopOnce sync.Once
	stopped  atomic.Bool
	wg       sync.WaitGroup
}

// NewScheduler constructs a scheduler per cfg, pre-populating the fiber
// pool and launching one goroutine per configured worker.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	diag := &Diagnostics{}

	s := &Scheduler{
		config:     cfg,
		diag:       diag,
		groups:     newGroupManager(cfg.GroupCount),
		taskPool:   NewPool[*taskDesc](taskPoolCapacity, diag),
		fibers:     make([]*fiberContext, cfg.FiberCount),
		freeFibers: NewConcurrentQueue[*fiberContext](),
		workers:    make([]*worker, cfg.WorkerCount),
		history:    newExecutionHistory(cfg.HistoryCapacity),
	}

	for i := 0; i < cfg.FiberCount; i++ {
		fc := newFiberContext(i)
		s.fibers[i] = fc
		s.freeFibers.Push(fc)
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		w := newWorker(i, s)
		s.workers[i] = w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.run()
		}()
	}

	cfg.Logger.Info("scheduler started",
		F("workers", cfg.WorkerCount), F("fibers", cfg.FiberCount), F("groups", cfg.GroupCount))

	return s, nil
}

// Submit is the client-facing fire-and-forget entry point of §6: each
// task is assigned to group, allocated a pool handle, and pushed onto a
// round-robin-selected worker queue.
func (s *Scheduler) Submit(group Group, specs []TaskSpec) {
	if len(specs) == 0 {
		return
	}
	descs := make([]*taskDesc, len(specs))
	for i, spec := range specs {
		descs[i] = &taskDesc{
			id:    newTaskID(),
			name:  spec.Name,
			fn:    spec.Fn,
			group: group,
		}
	}
	s.submitDescs(group, descs)
}

// submitDescs is the shared path between Submit and RunSubtasks: it
// allocates a pool handle per descriptor, registers the group's
// outstanding count, and enqueues onto round-robin workers, preserving
// per-batch submission order per worker per §4.G.
func (s *Scheduler) submitDescs(group Group, descs []*taskDesc) {
	gs := s.groups.state(group)
	gs.onSubmit(int64(len(descs)))

	for _, desc := range descs {
		desc.group = group
		h, ok := s.taskPool.Allocate(desc)
		if !ok {
			s.config.Logger.Warn("task record pool exhausted, dropping task",
				F("task", desc.name), F("group", s.GroupLabel(group)))
			s.config.Metrics.RecordDispatchRefused("task_pool_exhausted")
			gs.onTaskFinished()
			continue
		}
		desc.selfHandle = h
		s.enqueueRoundRobin(h)
	}
}

// GroupLabel resolves group to the human-readable name the caller gave
// it via Config.GroupLabels at construction time, falling back to its
// numeric index when no label was supplied. Only ever used for log
// fields and metrics labels; it has no bearing on scheduling.
func (s *Scheduler) GroupLabel(group Group) string {
	if group == GroupUndefined {
		return "undefined"
	}
	if int(group) >= 0 && int(group) < len(s.config.GroupLabels) {
		if label := s.config.GroupLabels[group]; label != "" {
			return label
		}
	}
	return fmt.Sprintf("%d", int(group))
}

// recordFiberOccupancy reports the current free/bound fiber split.
// Called from worker.dispatch and worker.finish, the two places the
// split actually changes, rather than on a timer: that way the gauge is
// exact rather than merely sampled.
func (s *Scheduler) recordFiberOccupancy() {
	free := s.freeFibers.Len()
	s.config.Metrics.RecordFiberOccupancy(free, len(s.fibers)-free)
}

// enqueueRoundRobin implements §4.G's tie-break: the index need not be
// atomic across calls for correctness, only monotone within one call;
// a relaxed atomic Add satisfies that without a lock on the submission
// path (§9's resolved open question).
func (s *Scheduler) enqueueRoundRobin(h Handle[*taskDesc]) {
	idx := s.nextWorker.Add(1) - 1
	w := s.workers[idx%uint64(len(s.workers))]
	w.enqueue(h)
}

// WaitGroup blocks until group's outstanding count reaches zero or
// timeout elapses, returning whether it reached zero.
func (s *Scheduler) WaitGroup(group Group, timeout time.Duration) bool {
	signalled := s.groups.state(group).event.Wait(timeout)
	if !signalled {
		s.diag.waitTimedOut.Add(1)
	}
	return signalled
}

// WaitAll waits every group concurrently against a shared deadline,
// per §11's wiring of errgroup.WithContext — cutting worst-case latency
// from the sum of per-group waits to the max, which §4.F's "may be
// implemented as sequential timed waits" permits but does not require.
func (s *Scheduler) WaitAll(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	results := make([]bool, len(s.groups.groups))

	for i := range s.groups.groups {
		i := i
		g.Go(func() error {
			results[i] = s.waitGroupCtx(ctx, Group(i))
			return nil
		})
	}
	_ = g.Wait()

	allOK := true
	for _, ok := range results {
		if !ok {
			allOK = false
		}
	}
	if !allOK {
		s.diag.waitTimedOut.Add(1)
	}
	return allOK
}

func (s *Scheduler) waitGroupCtx(ctx context.Context, group Group) bool {
	event := s.groups.state(group).event
	select {
	case <-eventDone(event):
		return true
	case <-ctx.Done():
		return false
	}
}

// eventDone adapts ManualResetEvent's polling Wait into a channel usable
// in a select alongside ctx.Done(), without spawning an unbounded
// goroutine per wait: it reuses the event's own closed-on-signal channel.
func eventDone(e *ManualResetEvent) <-chan struct{} {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	return ch
}

// Diagnostics returns a snapshot of the benign-error counters §7 calls
// for.
func (s *Scheduler) Diagnostics() DiagnosticsSnapshot {
	return s.diag.Snapshot()
}

// Stats returns a point-in-time observability snapshot mirroring the
// codebase's RunnerStats/PoolStats shape (§10).
func (s *Scheduler) Stats() SchedulerStats {
	outstanding := make([]int64, len(s.groups.groups))
	for i, g := range s.groups.groups {
		outstanding[i] = g.outstanding.Load()
	}
	return SchedulerStats{
		WorkerCount:       len(s.workers),
		FiberCount:        len(s.fibers),
		FreeFibers:        s.freeFibers.Len(),
		OutstandingByGroup: outstanding,
		Diagnostics:       s.diag.Snapshot(),
	}
}

// History returns up to limit of the most recently finished tasks,
// newest first. limit <= 0 returns all retained records.
func (s *Scheduler) History(limit int) []executionRecord {
	return s.history.Recent(limit)
}

// Shutdown stops every worker goroutine and destroys every fiber
// goroutine, joining all of them before returning. Safe to call more
// than once. Callers should WaitAll (or WaitGroup on every group) first:
// Shutdown does not cancel tasks still parked mid-run, it only stops
// accepting new dispatches and tears down idle fibers.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		for _, w := range s.workers {
			close(w.stopCh)
			w.wake.Signal()
		}
		for _, w := range s.workers {
			<-w.done
		}
		for _, fc := range s.fibers {
			fc.destroy()
		}
		s.config.Logger.Info("scheduler stopped")
	})
}
