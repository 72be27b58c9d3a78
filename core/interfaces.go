package core

import "time"

// Metrics defines the interface for collecting scheduler observability
// events. Implementations can send them to monitoring systems
// (Prometheus, StatsD, etc.); all methods are optional and must handle
// nil receivers gracefully. Adapted from the codebase's own Metrics
// interface, re-scoped from task-runner concerns to fiber-scheduler
// ones (§10).
type Metrics interface {
	// RecordTaskDuration records a task's total wall-clock lifetime,
	// from its first dispatch to its final finish, including any time
	// spent queued between yields.
	RecordTaskDuration(taskName string, group Group, duration time.Duration)

	// RecordTaskPanic records that a task's entry function panicked
	// and was recovered at the trampoline boundary.
	RecordTaskPanic(taskName string, panicInfo any)

	// RecordDispatchRefused records a benign back-pressure event: the
	// free-fiber queue or task-record pool had nothing to give.
	RecordDispatchRefused(reason string)

	// RecordFiberOccupancy records the free/bound fiber split at some
	// sampling instant.
	RecordFiberOccupancy(free, bound int)

	// RecordQueueDepth records one worker's queue length.
	RecordQueueDepth(workerID int, depth int)
}

// NilMetrics is a no-op Metrics implementation; it is the scheduler's
// default when Config.Metrics is unset.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(taskName string, group Group, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(taskName string, panicInfo any)                          {}
func (m *NilMetrics) RecordDispatchRefused(reason string)                                     {}
func (m *NilMetrics) RecordFiberOccupancy(free, bound int)                                    {}
func (m *NilMetrics) RecordQueueDepth(workerID int, depth int)                                {}
