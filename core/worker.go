package core

import "time"

// wakeInterval is the short timeout the worker parks on while idle, so
// it stays responsive to shutdown without busy-spinning. §4.D calls
// this out explicitly as a bounded park, not an unbounded block.
const wakeInterval = 20 * time.Millisecond

// worker is the Worker Thread of §4.D: it owns a private queue of
// pool handles, a wake event, and drives the drain/dispatch/park loop
// from its own goroutine (standing in for the OS thread of the
// original design).
type worker struct {
	id        int
	scheduler *Scheduler
	log       Logger

	queue *ConcurrentQueue[Handle[*taskDesc]]
	wake  *ManualResetEvent

	stopCh chan struct{}
	done   chan struct{}
}

func newWorker(id int, s *Scheduler) *worker {
	return &worker{
		id:        id,
		scheduler: s,
		log:       Named(s.config.Logger, F("worker", id)),
		queue:     NewConcurrentQueue[Handle[*taskDesc]](),
		wake:      NewManualResetEvent(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (w *worker) enqueue(h Handle[*taskDesc]) {
	w.push(h)
	w.wake.Signal()
}

// push appends to this worker's own queue and reports the resulting
// depth, whatever the reason for the push (submission, re-enqueue after
// a yield, or a parked-task retry after fiber exhaustion).
func (w *worker) push(h Handle[*taskDesc]) {
	w.queue.Push(h)
	w.scheduler.config.Metrics.RecordQueueDepth(w.id, w.queue.Len())
}

func (w *worker) run() {
	defer close(w.done)

	for {
		for {
			h, ok := w.queue.Pop()
			if !ok {
				break
			}
			if !w.dispatch(h) {
				// Fiber pool exhausted: stop draining this round and
				// park, per §4.E's forward-progress note.
				break
			}
		}

		select {
		case <-w.stopCh:
			return
		default:
		}

		w.wake.Wait(wakeInterval)
		w.wake.Reset()
	}
}

// dispatch runs one task to its next suspension point or completion.
// Returns false if the task could not be dispatched because the
// free-fiber queue is empty; dispatch has then pushed the handle back
// onto this worker's queue, and the caller stops draining and parks.
func (w *worker) dispatch(h Handle[*taskDesc]) bool {
	task, ok := w.scheduler.taskPool.Get(h)
	if !ok {
		// Stale handle: the task already finished through some other
		// path. Nothing to do.
		return true
	}

	if task.fiber == nil {
		fc, ok := w.scheduler.freeFibers.Pop()
		if !ok {
			w.scheduler.diag.fiberExhausted.Add(1)
			w.scheduler.config.Metrics.RecordDispatchRefused("fiber_exhausted")
			w.push(h)
			return false
		}
		task.fiber = fc
		fc.activeTask = task
		fc.status = statusRunning
		task.startedAt = time.Now().UnixNano()
		w.scheduler.recordFiberOccupancy()
	}

	fc := task.fiber
	fc.activeWorker = w
	fc.status = statusRunning

	w.log.Debug("dispatch", F("task", task.name), F("group", w.scheduler.GroupLabel(task.group)), F("fiber", fc.id))
	fc.switchTo()

	switch fc.status {
	case statusFinished:
		w.finish(task, fc)
	case statusWaitingChildren:
		// Not re-enqueued here; the last finishing child does it.
	case statusRunning:
		w.push(task.selfHandle)
	default:
		panicInvariant("fiber %d returned from switch in unexpected status %d", fc.id, fc.status)
	}

	return true
}

func (w *worker) finish(task *taskDesc, fc *fiberContext) {
	now := time.Now()
	w.scheduler.history.Add(executionRecord{
		Name:     task.name,
		Group:    task.group,
		Finished: now,
	})
	if task.startedAt != 0 {
		w.scheduler.config.Metrics.RecordTaskDuration(task.name, task.group, time.Duration(now.UnixNano()-task.startedAt))
	}

	fc.activeTask = nil
	fc.activeWorker = nil
	fc.status = statusUnknown
	task.fiber = nil
	w.scheduler.freeFibers.Push(fc)
	w.scheduler.recordFiberOccupancy()

	w.scheduler.taskPool.Destroy(task.selfHandle)
	w.scheduler.groups.state(task.group).onTaskFinished()

	w.wakeParentIfWaiting(task)
}

// wakeParentIfWaiting decrements the parent task's outstanding-children
// count, if this task was spawned via RunSubtasks, and — only for the
// child that drives the count to zero — resolves the waitState handshake
// against the parent's WaitSubtasks (see its doc comment for the CAS
// protocol both sides follow). A parent that spawned children and
// returned without waiting (§4.E's fire-and-forget case) will already
// have finished and destroyed its own pool handle by the time its last
// child gets here, so Get fails on the stale handle and nothing happens.
// If the parent hasn't armed yet, this leaves a permit for it to claim
// later instead of enqueuing anything, since pushing its handle while it
// may still be running elsewhere would double-dispatch it.
func (w *worker) wakeParentIfWaiting(task *taskDesc) {
	if !task.parent.Valid() {
		return
	}
	parent, ok := w.scheduler.taskPool.Get(task.parent)
	if !ok {
		return
	}
	if parent.childTasksCount.Add(-1) != 0 {
		return
	}

	for {
		switch childWaitState(parent.waitState.Load()) {
		case waitArmed:
			if parent.waitState.CompareAndSwap(int32(waitArmed), int32(waitNeutral)) {
				w.scheduler.enqueueRoundRobin(parent.selfHandle)
				return
			}
		case waitNeutral:
			if parent.waitState.CompareAndSwap(int32(waitNeutral), int32(waitPermitReady)) {
				return
			}
		default:
			return
		}
	}
}
