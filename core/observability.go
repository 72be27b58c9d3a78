package core

// SchedulerStats represents a runtime observability snapshot of the
// scheduler facade, mirroring the codebase's own RunnerStats/PoolStats
// shape (§10) but scoped to fiber-scheduler concerns: worker and fiber
// counts, per-group outstanding tasks, and the benign-error counters.
type SchedulerStats struct {
	WorkerCount        int
	FiberCount         int
	FreeFibers         int
	OutstandingByGroup []int64
	Diagnostics        DiagnosticsSnapshot
}
