package core

import "fmt"

// Config collects the compile-time constants the original fiber scheduler
// exposed as build-time options. WorkerCount, FiberCount and GroupCount
// are validated once at NewScheduler time rather than enforced by the
// type system.
type Config struct {
	// WorkerCount is the number of OS-thread-equivalent workers.
	WorkerCount int

	// FiberCount is the size of the fixed fiber pool shared by all workers.
	// Must be >= WorkerCount*2.
	FiberCount int

	// GroupCount is the number of task groups clients may submit into.
	GroupCount int

	// SchedulerStackSize and FiberStackSize are retained for interface
	// fidelity with the original stack-allocator contract; goroutine
	// stacks grow on demand and are never sized or guard-paged manually.
	SchedulerStackSize int
	FiberStackSize     int

	// HistoryCapacity bounds the execution history ring buffer. Zero
	// selects the default.
	HistoryCapacity int

	// GroupLabels optionally names each group by index: GroupLabels[i]
	// labels Group(i) in log fields (via Scheduler.GroupLabel) and, when
	// threaded into observability/prometheus.ExporterOptions.GroupLabels,
	// in metric labels too. A missing or empty entry falls back to the
	// group's numeric index; labels have no effect on scheduling.
	GroupLabels []string

	Logger  Logger
	Metrics Metrics
}

// DefaultConfig returns the configuration the original scheduler shipped
// with: 4 workers, 128 fibers, 3 groups.
func DefaultConfig() Config {
	return Config{
		WorkerCount:        4,
		FiberCount:         128,
		GroupCount:         3,
		SchedulerStackSize: 64 * 1024,
		FiberStackSize:     64 * 1024,
		HistoryCapacity:    defaultTaskHistoryCapacity,
	}
}

// Validate enforces the invariants §4.A and §6 require of a usable
// configuration.
func (c Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("fiberscheduler: WorkerCount must be positive, got %d", c.WorkerCount)
	}
	if c.FiberCount < c.WorkerCount*2 {
		return fmt.Errorf("fiberscheduler: FiberCount (%d) must be >= WorkerCount*2 (%d)", c.FiberCount, c.WorkerCount*2)
	}
	if c.FiberCount&(c.FiberCount-1) != 0 {
		return fmt.Errorf("fiberscheduler: FiberCount must be a power of two, got %d", c.FiberCount)
	}
	if c.GroupCount <= 0 {
		return fmt.Errorf("fiberscheduler: GroupCount must be positive, got %d", c.GroupCount)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = defaultTaskHistoryCapacity
	}
	return c
}
