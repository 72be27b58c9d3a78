package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

// TestScheduler_SingleTaskSingleGroup covers spec scenario 1: one task
// submitted to a group completes and WaitGroup observes it within 1s.
func TestScheduler_SingleTaskSingleGroup(t *testing.T) {
	s := newTestScheduler(t, DefaultConfig())

	var ran atomic.Bool
	s.Submit(0, []TaskSpec{{Name: "one-shot", Fn: func(tc *ThreadContext) {
		ran.Store(true)
	}}})

	if !s.WaitGroup(0, 1*time.Second) {
		t.Fatal("WaitGroup timed out, want completion within 1s")
	}
	if !ran.Load() {
		t.Fatal("task never ran")
	}
}

// TestScheduler_ParallelIndependentTasks covers spec scenario 2: 32
// tasks in one group each increment a shared counter; after WaitGroup
// returns true the counter is exactly 32 (no double dispatch either).
func TestScheduler_ParallelIndependentTasks(t *testing.T) {
	s := newTestScheduler(t, DefaultConfig())

	var counter atomic.Int64
	specs := make([]TaskSpec, 32)
	for i := range specs {
		specs[i] = TaskSpec{Name: "incr", Fn: func(tc *ThreadContext) {
			counter.Add(1)
		}}
	}
	s.Submit(0, specs)

	if !s.WaitGroup(0, 5*time.Second) {
		t.Fatal("WaitGroup timed out")
	}
	if got := counter.Load(); got != 32 {
		t.Fatalf("counter = %d, want 32 (no double dispatch)", got)
	}
}

// TestScheduler_YieldInterleaving covers spec scenario 3: two tasks on a
// single-worker scheduler each yield 3 times, appending to a shared log;
// the log interleaves rather than running purely block-by-block.
func TestScheduler_YieldInterleaving(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	s := newTestScheduler(t, cfg)

	var mu sync.Mutex
	var log []string
	record := func(name string) {
		mu.Lock()
		log = append(log, name)
		mu.Unlock()
	}

	makeTask := func(name string) TaskFunc {
		return func(tc *ThreadContext) {
			for i := 0; i < 3; i++ {
				record(name)
				tc.Yield()
			}
		}
	}

	s.Submit(0, []TaskSpec{
		{Name: "A", Fn: makeTask("A")},
		{Name: "B", Fn: makeTask("B")},
	})

	if !s.WaitGroup(0, 5*time.Second) {
		t.Fatal("WaitGroup timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(log) != 6 {
		t.Fatalf("log length = %d, want 6", len(log))
	}
	if log[0] == log[1] && log[1] == log[2] && log[2] == log[3] {
		t.Fatalf("log %v is purely blocky, want interleaved", log)
	}
}

// TestScheduler_ParentWaitsOnChildren covers spec scenario 4: a parent
// spawns 8 children, calls WaitSubtasks, and its completion record is
// strictly after all children's.
func TestScheduler_ParentWaitsOnChildren(t *testing.T) {
	s := newTestScheduler(t, DefaultConfig())

	var mu sync.Mutex
	var order []string

	s.Submit(1, []TaskSpec{{Name: "parent", Fn: func(tc *ThreadContext) {
		children := make([]TaskSpec, 8)
		for i := range children {
			children[i] = TaskSpec{Name: "child", Fn: func(tc *ThreadContext) {
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				order = append(order, "child")
				mu.Unlock()
			}}
		}
		tc.RunSubtasks(GroupUndefined, children)
		tc.WaitSubtasks()

		mu.Lock()
		order = append(order, "done")
		mu.Unlock()
	}}})

	if !s.WaitGroup(1, 5*time.Second) {
		t.Fatal("WaitGroup timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 9 {
		t.Fatalf("order length = %d, want 9", len(order))
	}
	for i, v := range order {
		if i < 8 && v != "child" {
			t.Fatalf("order[%d] = %q, want child", i, v)
		}
	}
	if order[8] != "done" {
		t.Fatalf("order[8] = %q, want done (parent resumed before all children finished)", order[8])
	}
}

// TestScheduler_FireAndForgetChildrenSurviveParent covers the
// fire-and-forget case §4.E permits: a parent calls RunSubtasks and
// returns without WaitSubtasks. The parent finishes (and its fiber is
// recycled) well before its children do; the children must still run to
// completion, and their finishing must not crash or double-dispatch
// whatever unrelated task later lands on the parent's recycled fiber.
func TestScheduler_FireAndForgetChildrenSurviveParent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FiberCount = 4
	cfg.WorkerCount = 2
	s := newTestScheduler(t, cfg)

	var childrenDone atomic.Int32
	s.Submit(0, []TaskSpec{{Name: "parent", Fn: func(tc *ThreadContext) {
		children := make([]TaskSpec, 4)
		for i := range children {
			children[i] = TaskSpec{Name: "child", Fn: func(tc *ThreadContext) {
				time.Sleep(30 * time.Millisecond)
				childrenDone.Add(1)
			}}
		}
		tc.RunSubtasks(GroupUndefined, children)
		// No WaitSubtasks: returns immediately, fire-and-forget.
	}}})

	if !s.WaitGroup(0, 2*time.Second) {
		t.Fatal("WaitGroup timed out waiting for parent and children")
	}
	if got := childrenDone.Load(); got != 4 {
		t.Fatalf("children completed = %d, want 4", got)
	}

	// Flood the now-recycled fibers with unrelated work; none of it
	// should have been double-dispatched or corrupted by the earlier
	// parent/child bookkeeping.
	var unrelatedRuns atomic.Int32
	specs := make([]TaskSpec, 20)
	for i := range specs {
		specs[i] = TaskSpec{Name: "unrelated", Fn: func(tc *ThreadContext) {
			unrelatedRuns.Add(1)
		}}
	}
	s.Submit(1, specs)
	if !s.WaitGroup(1, 2*time.Second) {
		t.Fatal("WaitGroup timed out on unrelated follow-up work")
	}
	if got := unrelatedRuns.Load(); got != 20 {
		t.Fatalf("unrelated runs = %d, want 20 (no double dispatch)", got)
	}
}

// TestScheduler_TaskPanicIsContained covers §4.E/§7/§12's panic
// containment: a panicking task's entry function must not crash the
// scheduler or the sibling tasks sharing its worker, and the panic must
// be counted in Diagnostics.
func TestScheduler_TaskPanicIsContained(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	s := newTestScheduler(t, cfg)

	var survivorRan atomic.Bool
	s.Submit(0, []TaskSpec{
		{Name: "boom", Fn: func(tc *ThreadContext) {
			panic("deliberate failure")
		}},
		{Name: "survivor", Fn: func(tc *ThreadContext) {
			survivorRan.Store(true)
		}},
	})

	if !s.WaitGroup(0, 2*time.Second) {
		t.Fatal("WaitGroup timed out; scheduler likely wedged after panic")
	}
	if !survivorRan.Load() {
		t.Fatal("sibling task never ran after the panicking task")
	}
	if got := s.Diagnostics().TaskPanics; got != 1 {
		t.Fatalf("Diagnostics().TaskPanics = %d, want 1", got)
	}

	// The scheduler (and the fiber that ran "boom") must still be usable.
	var ranAfter atomic.Bool
	s.Submit(1, []TaskSpec{{Name: "after", Fn: func(tc *ThreadContext) {
		ranAfter.Store(true)
	}}})
	if !s.WaitGroup(1, 2*time.Second) {
		t.Fatal("WaitGroup timed out on post-panic task")
	}
	if !ranAfter.Load() {
		t.Fatal("scheduler did not run tasks submitted after a panic")
	}
}

// TestScheduler_GroupIndependence covers spec scenario 5: a short task
// in one group completes before a batch of long tasks in another.
func TestScheduler_GroupIndependence(t *testing.T) {
	s := newTestScheduler(t, DefaultConfig())

	longSpecs := make([]TaskSpec, 10)
	for i := range longSpecs {
		longSpecs[i] = TaskSpec{Name: "long", Fn: func(tc *ThreadContext) {
			time.Sleep(300 * time.Millisecond)
		}}
	}
	s.Submit(0, longSpecs)
	s.Submit(1, []TaskSpec{{Name: "short", Fn: func(tc *ThreadContext) {}}})

	// Round-robin places the short task on worker 2 behind two long tasks
	// (about 600ms), while workers 0 and 1 each hold three (about 900ms),
	// so group 1 must complete while group 0 is still outstanding.
	if !s.WaitGroup(1, 2*time.Second) {
		t.Fatal("WaitGroup(group 1) timed out")
	}
	if s.WaitGroup(0, 0) {
		t.Fatal("group 0 completed before group 1's short task, want the short group first")
	}

	if !s.WaitGroup(0, 2*time.Second) {
		t.Fatal("WaitGroup(group 0) timed out")
	}
}

// TestScheduler_WaitGroupTimeout covers spec scenario 6: a busy task
// causes an early WaitGroup to time out, and a later one to succeed.
func TestScheduler_WaitGroupTimeout(t *testing.T) {
	s := newTestScheduler(t, DefaultConfig())

	s.Submit(0, []TaskSpec{{Name: "busy", Fn: func(tc *ThreadContext) {
		time.Sleep(500 * time.Millisecond)
	}}})

	if s.WaitGroup(0, 50*time.Millisecond) {
		t.Fatal("WaitGroup(50ms) succeeded, want timeout")
	}
	if !s.WaitGroup(0, 2*time.Second) {
		t.Fatal("WaitGroup(2s) timed out, want success")
	}
}

// TestScheduler_FiberConservation verifies free+bound fiber counts sum
// to FiberCount at rest, both before and after a burst of work.
func TestScheduler_FiberConservation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FiberCount = 16
	cfg.WorkerCount = 4
	s := newTestScheduler(t, cfg)

	assertConserved := func() {
		stats := s.Stats()
		if stats.FreeFibers != stats.FiberCount {
			t.Fatalf("free fibers = %d, want %d at rest", stats.FreeFibers, stats.FiberCount)
		}
	}
	assertConserved()

	specs := make([]TaskSpec, 50)
	for i := range specs {
		specs[i] = TaskSpec{Name: "noop", Fn: func(tc *ThreadContext) {}}
	}
	s.Submit(0, specs)
	if !s.WaitGroup(0, 5*time.Second) {
		t.Fatal("WaitGroup timed out")
	}

	assertConserved()
}

// TestScheduler_GroupLabel verifies Config.GroupLabels is surfaced by
// Scheduler.GroupLabel, falling back to the numeric index when a group
// has no configured label.
func TestScheduler_GroupLabel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GroupLabels = []string{"ingest", "", "export"}
	s := newTestScheduler(t, cfg)

	if got := s.GroupLabel(0); got != "ingest" {
		t.Fatalf("GroupLabel(0) = %q, want %q", got, "ingest")
	}
	if got := s.GroupLabel(1); got != "1" {
		t.Fatalf("GroupLabel(1) = %q, want %q (no label configured)", got, "1")
	}
	if got := s.GroupLabel(2); got != "export" {
		t.Fatalf("GroupLabel(2) = %q, want %q", got, "export")
	}
	if got := s.GroupLabel(GroupUndefined); got != "undefined" {
		t.Fatalf("GroupLabel(GroupUndefined) = %q, want %q", got, "undefined")
	}
}

// TestScheduler_WaitAll verifies WaitAll reports success only once every
// group's outstanding count has reached zero.
func TestScheduler_WaitAll(t *testing.T) {
	s := newTestScheduler(t, DefaultConfig())

	for g := Group(0); int(g) < s.config.GroupCount; g++ {
		s.Submit(g, []TaskSpec{{Name: "noop", Fn: func(tc *ThreadContext) {}}})
	}

	if !s.WaitAll(2 * time.Second) {
		t.Fatal("WaitAll timed out, want success")
	}
}
