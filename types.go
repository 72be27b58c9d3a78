package fiberscheduler

import "github.com/corefan/fiberscheduler/core"

// Re-export commonly used types from core so callers need only import
// the root package for the common path.

// TaskFunc is the unit of work run on a fiber.
type TaskFunc = core.TaskFunc

// TaskSpec names a TaskFunc for submission.
type TaskSpec = core.TaskSpec

// ThreadContext is handed to a running task, exposing Yield,
// RunSubtasks, and WaitSubtasks.
type ThreadContext = core.ThreadContext

// Group identifies a task group by index.
type Group = core.Group

// GroupUndefined is the construction-time sentinel; the facade assigns
// the submission-time group before a task is ever enqueued with it.
const GroupUndefined = core.GroupUndefined

// Config collects the scheduler's compile-time constants.
type Config = core.Config

// DefaultConfig returns the configuration the original scheduler
// shipped with: 4 workers, 128 fibers, 3 groups.
var DefaultConfig = core.DefaultConfig

// Scheduler is the facade clients construct and submit work through.
type Scheduler = core.Scheduler

// NewScheduler constructs a scheduler per cfg.
var NewScheduler = core.NewScheduler

// Logger, Field, and the default logging implementations.
type Logger = core.Logger
type Field = core.Field

var (
	F               = core.F
	NewDefaultLogger = core.NewDefaultLogger
	NewNoOpLogger    = core.NewNoOpLogger
)

// Metrics is the observability hook adapted by observability/prometheus.
type Metrics = core.Metrics

// SchedulerStats and DiagnosticsSnapshot are the point-in-time
// observability snapshots exposed by Scheduler.Stats/Diagnostics.
type SchedulerStats = core.SchedulerStats
type DiagnosticsSnapshot = core.DiagnosticsSnapshot
