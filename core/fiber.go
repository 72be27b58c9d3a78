package core

// fiberContext is the Fiber Context of §3: it lives for the lifetime of
// the scheduler, and is bound to at most one taskDesc at a time. It
// backs a real goroutine that is parked on resume/parked channels
// between dispatches — the goroutine's own call stack is the "saved
// machine context" §4.C treats as a primitive.
//
// The resume/parked handoff is grounded on the wake/acker channel-pair
// idiom: the scheduler fiber signals resume and blocks on parked; the
// task goroutine blocks on resume and signals parked when it yields,
// waits on children, or finishes.
type fiberContext struct {
	id int

	resume chan struct{}
	parked chan struct{}

	activeTask   *taskDesc
	activeWorker *worker

	// status is written by the dispatching worker before switchTo and
	// after the task finishes, and by this fiber's own goroutine while the
	// task runs; the worker reads it after switchTo returns. The
	// resume/parked channel handoff orders these accesses, so a plain
	// field is enough. No other goroutine touches it — a finishing child that
	// needs to know whether its parent is parked in WaitSubtasks goes
	// through taskDesc.waitState instead, which lives on the pool-managed
	// descriptor rather than a fiber that may already have been recycled
	// to an unrelated task.
	status taskStatus

	// done is closed once the trampoline goroutine has exited, used by
	// Scheduler.Shutdown to join every fiber goroutine.
	done chan struct{}
}

func newFiberContext(id int) *fiberContext {
	fc := &fiberContext{
		id:     id,
		resume: make(chan struct{}),
		parked: make(chan struct{}),
		done:   make(chan struct{}),
		status: statusUnknown,
	}
	go fc.trampoline()
	return fc
}

// trampoline is the fiber's entry per §4.E: read the bound task out of
// the fiber context, run it, mark FINISHED, switch back to the
// scheduler fiber, then loop to accept the next bound task without
// tearing down the goroutine's stack.
func (fc *fiberContext) trampoline() {
	defer close(fc.done)

	for range fc.resume {
		fc.runBoundTask()
		fc.parked <- struct{}{}
	}
}

func (fc *fiberContext) runBoundTask() {
	task := fc.activeTask
	worker := fc.activeWorker

	defer func() {
		if r := recover(); r != nil {
			if worker != nil && worker.scheduler != nil {
				worker.scheduler.diag.taskPanics.Add(1)
				worker.scheduler.config.Metrics.RecordTaskPanic(task.name, r)
				worker.scheduler.config.Logger.Error("task panicked",
					F("task", task.name), F("recover", r))
			}
		}
		fc.status = statusFinished
	}()

	tc := &ThreadContext{fiber: fc, worker: worker, scheduler: worker.scheduler}
	task.fn(tc)
}

// switchTo hands control to this fiber's bound task and blocks until
// the task yields, waits on children, or finishes.
func (fc *fiberContext) switchTo() {
	fc.resume <- struct{}{}
	<-fc.parked
}

// destroy stops the fiber's goroutine. Called only at scheduler
// shutdown; fibers are otherwise never individually destroyed (§5).
func (fc *fiberContext) destroy() {
	close(fc.resume)
	<-fc.done
}

// ThreadContext is handed to a running task's entry function, exposing
// Yield and WaitSubtasks, the suspension points §5 permits besides
// returning, and RunSubtasks, which spawns children without suspending.
type ThreadContext struct {
	fiber     *fiberContext
	worker    *worker
	scheduler *Scheduler
}

// Yield sets the task as RUNNING (re-enqueue desired) and switches back
// to the worker's scheduler fiber. The worker re-enqueues the task at
// its own queue's tail per §4.D.
func (tc *ThreadContext) Yield() {
	tc.fiber.status = statusRunning
	tc.fiber.parked <- struct{}{}
	<-tc.fiber.resume
}

// RunSubtasks spawns children into group (or the calling task's own
// group if group is GroupUndefined), recording a parent link on each
// child and incrementing the caller's child counter before enqueueing
// them, per §4.E. The caller is not required to follow up with
// WaitSubtasks: a task may spawn children and return, in which case the
// children simply run to completion unobserved (§4.E's fire-and-forget
// case).
func (tc *ThreadContext) RunSubtasks(group Group, specs []TaskSpec) {
	if len(specs) == 0 {
		return
	}
	self := tc.fiber.activeTask
	if group == GroupUndefined {
		group = self.group
	}

	n := int32(len(specs))
	if self.childTasksCount.Add(n) == n {
		// A permit left by an earlier, fully finished batch must not
		// release a wait on this one.
		self.waitState.CompareAndSwap(int32(waitPermitReady), int32(waitNeutral))
	}

	descs := make([]*taskDesc, len(specs))
	for i, spec := range specs {
		descs[i] = &taskDesc{
			id:     newTaskID(),
			name:   spec.Name,
			fn:     spec.Fn,
			group:  group,
			parent: self.selfHandle,
		}
	}
	tc.scheduler.submitDescs(group, descs)
}

// WaitSubtasks marks the task as awaiting its children and switches to
// the scheduler fiber without requesting re-enqueue; the last child to
// finish re-enqueues this task (§4.D, §4.E).
//
// Arming is a CAS handshake against taskDesc.waitState rather than a
// plain flag: if the last child has already finished by the time we get
// here, it left a permit behind (waitPermitReady) and we consume it and
// return without parking at all; otherwise we claim waitArmed and the
// child that later finds the count at zero is the one that re-enqueues
// us. Either order is race-free because only one side ever wins each
// CAS.
func (tc *ThreadContext) WaitSubtasks() {
	self := tc.fiber.activeTask
	if self.childTasksCount.Load() == 0 {
		self.waitState.CompareAndSwap(int32(waitPermitReady), int32(waitNeutral))
		return
	}

	for {
		switch childWaitState(self.waitState.Load()) {
		case waitPermitReady:
			if self.waitState.CompareAndSwap(int32(waitPermitReady), int32(waitNeutral)) {
				return
			}
		case waitNeutral:
			if self.waitState.CompareAndSwap(int32(waitNeutral), int32(waitArmed)) {
				goto armed
			}
		default:
			panicInvariant("WaitSubtasks called while already armed on task %s", self.name)
		}
	}

armed:
	tc.fiber.status = statusWaitingChildren
	tc.fiber.parked <- struct{}{}
	<-tc.fiber.resume
	self.waitState.Store(int32(waitNeutral))
}
