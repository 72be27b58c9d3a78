package core

import "sync/atomic"

// groupState is the Group State of §3/§4.F: an atomic outstanding-task
// counter and a manual-reset event. The event is non-signalled whenever
// the counter is positive and signalled when it reaches zero.
type groupState struct {
	outstanding atomic.Int64
	event       *ManualResetEvent
}

func newGroupState() *groupState {
	g := &groupState{event: NewManualResetEvent()}
	g.event.Signal() // an empty group starts "complete"
	return g
}

// onSubmit registers n new outstanding tasks, resetting the completion
// event if it had been signalled.
func (g *groupState) onSubmit(n int64) {
	if n <= 0 {
		return
	}
	if g.outstanding.Add(n) == n {
		// Transitioned 0 -> n: the group was complete, now isn't.
		g.event.Reset()
	}
}

// onTaskFinished decrements the outstanding count by one, signalling the
// completion event if it reaches zero.
func (g *groupState) onTaskFinished() {
	remaining := g.outstanding.Add(-1)
	if remaining < 0 {
		panicInvariant("group outstanding counter went negative")
	}
	if remaining == 0 {
		g.event.Signal()
	}
}

// groupManager owns the fixed-size array of groupState described in
// §3/§4.G.
type groupManager struct {
	groups []*groupState
}

func newGroupManager(count int) *groupManager {
	gm := &groupManager{groups: make([]*groupState, count)}
	for i := range gm.groups {
		gm.groups[i] = newGroupState()
	}
	return gm
}

func (gm *groupManager) state(g Group) *groupState {
	if g < 0 || int(g) >= len(gm.groups) {
		panicInvariant("group index %d out of range [0,%d)", g, len(gm.groups))
	}
	return gm.groups[g]
}
