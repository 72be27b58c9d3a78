package core

import (
	"fmt"
	"sync/atomic"
)

// TaskFunc is the unit of work. It receives the ThreadContext of the
// fiber it is running on, through which it may Yield, RunSubtasks, or
// WaitSubtasks.
type TaskFunc func(tc *ThreadContext)

// Group identifies a task group by index. GroupUndefined is the
// construction-time sentinel §3 describes; the facade assigns the
// submission-time group before a task is ever enqueued with it.
type Group int

const GroupUndefined Group = -1

// taskStatus is the internal per-task state. The original FiberTaskStatus
// enum only distinguishes {UNKNOWN, RUNNING, FINISHED}; this rendition
// adds statusWaitingChildren as an explicit state check (per §9's own
// suggestion) so the worker can tell a Yield-style suspension apart from
// a WaitSubtasks-style one without reconstructing the fiber.
type taskStatus int32

const (
	statusUnknown taskStatus = iota
	statusRunning
	statusWaitingChildren
	statusFinished
)

// childWaitState drives the WaitSubtasks/wakeParentIfWaiting handshake
// on taskDesc.waitState. waitNeutral is the rest state between cycles;
// waitArmed means the parent has parked and is waiting for a wakeup;
// waitPermitReady means the last child already finished before the
// parent got around to arming, and the permit is waiting to be claimed
// the moment WaitSubtasks is called.
type childWaitState int32

const (
	waitNeutral childWaitState = iota
	waitArmed
	waitPermitReady
)

// taskID is a monotonic identifier used only for diagnostics/history; it
// has no bearing on scheduling.
type taskID uint64

var nextTaskID atomic.Uint64

func newTaskID() taskID {
	return taskID(nextTaskID.Add(1))
}

func (id taskID) String() string {
	return fmt.Sprintf("task-%d", uint64(id))
}

// taskDesc is the Task Descriptor of §3: a value carrying the entry
// function, a name (for diagnostics/history), the group it belongs to,
// and the fiber it is currently bound to, if any.
type taskDesc struct {
	id    taskID
	name  string
	fn    TaskFunc
	group Group

	// parent, if Valid, is the pool handle of the task that spawned this
	// one via RunSubtasks. A handle rather than a raw *fiberContext: the
	// parent may finish (and have its fiber recycled) before this task
	// does, if the parent never calls WaitSubtasks, and the pool's
	// generation check is what lets a late finisher tell "parent already
	// gone" apart from "parent still alive" without touching a recycled
	// fiber's memory.
	parent Handle[*taskDesc]

	// fiber is the currently-bound Fiber Execution Context, or nil if
	// this task has never been dispatched (or has just finished and
	// been released).
	fiber *fiberContext

	// selfHandle is the Generation-Tagged Pool handle this descriptor
	// was allocated under. A task re-enqueued by its last finishing
	// child (after WaitSubtasks) is found again through this handle,
	// not through the worker queue.
	selfHandle Handle[*taskDesc]

	// childTasksCount tracks outstanding children spawned via
	// RunSubtasks. Lives on the task descriptor rather than the fiber:
	// the fiber is recycled the moment this task finishes, but a
	// fire-and-forget parent (RunSubtasks without WaitSubtasks) may
	// finish while children are still outstanding, and those children
	// must not corrupt some unrelated task's counter on the reused fiber.
	childTasksCount atomic.Int32

	// waitState is the handshake between WaitSubtasks arming itself and
	// the last finishing child delivering the wakeup — a plain bool
	// checked after a separate count load would race: the last child
	// could finish, see the flag still clear, and skip the wakeup just
	// before the parent sets it and parks forever. The CAS states below
	// make arming and delivery mutually exclusive regardless of which
	// side gets there first. Kept on the descriptor, not the fiber, so
	// a finishing child never has to touch fiber state that may already
	// belong to an unrelated task.
	waitState atomic.Int32

	startedAt int64 // unix nanos, set on first dispatch; 0 until then
}

// TaskSpec is what a client hands to Submit/RunSubtasks: a named task
// function. Name is optional and is used only in logs, metrics and
// history; an empty Name is passed through unchanged.
type TaskSpec struct {
	Name string
	Fn   TaskFunc
}
