// Package fiberscheduler implements a user-space task scheduler built
// around cooperative fibers executed atop a fixed-size pool of worker
// goroutines standing in for OS threads.
//
// Work is submitted as named functions grouped into logical task
// groups; a running task may voluntarily yield the worker, or spawn
// child tasks and wait for them, without blocking the goroutine
// underneath it.
//
// # Quick Start
//
//	sched, err := fiberscheduler.NewScheduler(fiberscheduler.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sched.Shutdown()
//
//	sched.Submit(0, []fiberscheduler.TaskSpec{
//		{Name: "hello", Fn: func(tc *fiberscheduler.ThreadContext) {
//			fmt.Println("hello from a fiber")
//		}},
//	})
//	sched.WaitGroup(0, 1*time.Second)
//
// # Key Concepts
//
// Task: a named TaskFunc submitted into a Group. Group: a logical set
// of tasks a client waits on as a unit via WaitGroup/WaitAll. Fiber: a
// goroutine parked between dispatches, recycled across many task
// executions rather than spawned per task.
//
// # Suspension
//
// From inside a task, ThreadContext exposes two suspension points
// besides returning: Yield (cooperatively give up the worker,
// re-enqueued at the tail) and WaitSubtasks (park until all children
// spawned so far have finished). RunSubtasks spawns children into a
// group without suspending.
//
// For more details, see the package's design notes.
package fiberscheduler
