package flow

import "sync"

// replayLog is the replay oracle: the event list indexed by source id,
// seeded from the stored log at run entry and kept current as the run
// appends.
//
// During a run every task invocation recomputes its stable source id
// and asks the oracle for a prior terminal event. A hit means this
// invocation already executed — in an earlier run of this execution or
// earlier in the current one — and the recorded value (or recorded
// failure) is served without appending anything new. A miss means live
// execution. Retry, fallback, and rollback framing events are skipped
// implicitly: only the terminal TASK_COMPLETED / TASK_FAILED matters
// for resumption.
//
// Source-id determinism is the foundation: for a given workflow
// function, input, and argument sequence, every recomputed source id
// must equal the stored one, so a replayed run re-takes the identical
// control-flow path.
type replayLog struct {
	mu        sync.RWMutex
	seeded    int
	terminals map[string]ExecutionEvent // sourceID -> first TASK_COMPLETED/TASK_FAILED
	started   map[string]struct{}       // sourceIDs with TASK_STARTED
}

func newReplayLog(events []ExecutionEvent) *replayLog {
	rl := &replayLog{
		seeded:    len(events),
		terminals: make(map[string]ExecutionEvent),
		started:   make(map[string]struct{}),
	}
	for _, ev := range events {
		rl.index(ev)
	}
	return rl
}

func (rl *replayLog) index(ev ExecutionEvent) {
	switch {
	case ev.Type == TaskStarted:
		rl.started[ev.SourceID] = struct{}{}
	case ev.Type.IsTaskTerminal():
		if _, dup := rl.terminals[ev.SourceID]; !dup {
			rl.terminals[ev.SourceID] = ev
		}
	}
}

// observe folds a freshly appended event into the oracle, so a second
// identical invocation later in the same run replays instead of
// re-executing.
func (rl *replayLog) observe(ev ExecutionEvent) {
	rl.mu.Lock()
	rl.index(ev)
	rl.mu.Unlock()
}

// terminal returns the recorded terminal event for a source id.
func (rl *replayLog) terminal(sourceID string) (ExecutionEvent, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	ev, ok := rl.terminals[sourceID]
	return ev, ok
}

// startedOnly reports whether the source id has a TASK_STARTED with no
// terminal — the signature of the pause point a resumed run is
// re-entering, or of an invocation interrupted by a crash.
func (rl *replayLog) startedOnly(sourceID string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.terminals[sourceID]; ok {
		return false
	}
	_, ok := rl.started[sourceID]
	return ok
}

// empty reports whether the oracle started with no prior events (a
// fresh run).
func (rl *replayLog) empty() bool { return rl.seeded == 0 }
