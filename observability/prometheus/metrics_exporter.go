package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/corefan/fiberscheduler/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64

	// GroupLabels mirrors core.Config.GroupLabels: GroupLabels[i] names
	// core.Group(i) in the "group" label of every metric this exporter
	// produces, instead of the bare numeric index. Pass the same slice
	// given to the Scheduler's Config so dashboards and logs agree.
	GroupLabels []string
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds  *prom.HistogramVec
	taskPanicTotal       *prom.CounterVec
	dispatchRefusedTotal *prom.CounterVec
	fiberFree            prom.Gauge
	fiberBound           prom.Gauge
	queueDepth           *prom.GaugeVec

	groupLabels []string
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "fiberscheduler"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task wall-clock duration in seconds, from first dispatch to finish.",
		Buckets:   buckets,
	}, []string{"task", "group"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics recovered at the trampoline boundary.",
	}, []string{"task"})
	refusedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_refused_total",
		Help:      "Total number of benign dispatch refusals (fiber or task-pool exhaustion).",
	}, []string{"reason"})
	fiberFree := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "fibers_free",
		Help:      "Number of fibers currently idle in the free-fiber queue.",
	})
	fiberBound := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "fibers_bound",
		Help:      "Number of fibers currently bound to a task.",
	})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_queue_depth",
		Help:      "Current queue depth per worker.",
	}, []string{"worker"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if refusedVec, err = registerCollector(reg, refusedVec); err != nil {
		return nil, err
	}
	if fiberFree, err = registerCollector(reg, fiberFree); err != nil {
		return nil, err
	}
	if fiberBound, err = registerCollector(reg, fiberBound); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:  durationVec,
		taskPanicTotal:       panicVec,
		dispatchRefusedTotal: refusedVec,
		fiberFree:            fiberFree,
		fiberBound:           fiberBound,
		queueDepth:           queueDepthVec,
		groupLabels:          opts.GroupLabels,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(taskName string, group core.Group, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(taskName, "unknown"), m.resolveGroupLabel(group)).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(taskName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(taskName, "unknown")).Inc()
}

// RecordDispatchRefused records a benign dispatch-time refusal.
func (m *MetricsExporter) RecordDispatchRefused(reason string) {
	if m == nil {
		return
	}
	m.dispatchRefusedTotal.WithLabelValues(normalizeLabel(reason, "unknown")).Inc()
}

// RecordFiberOccupancy records the free/bound fiber split.
func (m *MetricsExporter) RecordFiberOccupancy(free, bound int) {
	if m == nil {
		return
	}
	m.fiberFree.Set(float64(free))
	m.fiberBound.Set(float64(bound))
}

// RecordQueueDepth records one worker's queue depth.
func (m *MetricsExporter) RecordQueueDepth(workerID int, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(fmt.Sprintf("%d", workerID)).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// groupLabel is the numeric fallback used where no exporter-specific
// label override is available, e.g. SnapshotPoller's per-scheduler
// gauges, which aren't tied to a single MetricsExporter's GroupLabels.
func groupLabel(group core.Group) string {
	if group == core.GroupUndefined {
		return "undefined"
	}
	return fmt.Sprintf("%d", int(group))
}

// resolveGroupLabel prefers the caller-supplied name from
// ExporterOptions.GroupLabels, falling back to the numeric index.
func (m *MetricsExporter) resolveGroupLabel(group core.Group) string {
	if group != core.GroupUndefined && int(group) >= 0 && int(group) < len(m.groupLabels) {
		if label := m.groupLabels[group]; label != "" {
			return label
		}
	}
	return groupLabel(group)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
