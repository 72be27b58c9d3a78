package core

import (
	"fmt"
	"sync/atomic"
)

// InvariantViolation is panicked when the scheduler observes a programmer
// error rather than an expected runtime condition: a pool capacity that
// is not a power of two, a group index out of range, a group counter
// going negative, WaitSubtasks called while already armed, or a fiber
// returning from a switch in an unexpected status — the kind of cases
// §7 classifies as fatal assertions.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("fiberscheduler: invariant violation: %s", e.Reason)
}

func panicInvariant(format string, args ...any) {
	panic(&InvariantViolation{Reason: fmt.Sprintf(format, args...)})
}

// Diagnostics holds the benign-error counters §7 calls for: conditions
// that are not exceptional from the caller's point of view but are worth
// counting for operators. All fields are updated with atomic adds and are
// safe to read concurrently via Snapshot.
type Diagnostics struct {
	submissionRefused atomic.Int64
	staleHandle        atomic.Int64
	waitTimedOut       atomic.Int64
	fiberExhausted     atomic.Int64
	taskPanics         atomic.Int64
}

// DiagnosticsSnapshot is a point-in-time copy of Diagnostics' counters.
type DiagnosticsSnapshot struct {
	SubmissionRefused int64
	StaleHandle       int64
	WaitTimedOut      int64
	FiberExhausted    int64
	TaskPanics        int64
}

func (d *Diagnostics) Snapshot() DiagnosticsSnapshot {
	return DiagnosticsSnapshot{
		SubmissionRefused: d.submissionRefused.Load(),
		StaleHandle:       d.staleHandle.Load(),
		WaitTimedOut:      d.waitTimedOut.Load(),
		FiberExhausted:    d.fiberExhausted.Load(),
		TaskPanics:        d.taskPanics.Load(),
	}
}
