package flow

import (
	"encoding/json"
	"testing"
)

func TestReplayLogTerminal(t *testing.T) {
	sid, _ := TaskID("fetch", "x")
	rl := newReplayLog([]ExecutionEvent{
		NewEvent(TaskStarted, sid, "fetch", nil),
		NewEvent(TaskCompleted, sid, "fetch", json.RawMessage(`"result"`)),
	})

	ev, ok := rl.terminal(sid)
	if !ok {
		t.Fatal("expected a terminal event")
	}
	if ev.Type != TaskCompleted {
		t.Errorf("expected TASK_COMPLETED, got %s", ev.Type)
	}
	if string(ev.Value) != `"result"` {
		t.Errorf("expected recorded value, got %s", ev.Value)
	}
}

func TestReplayLogFailedTerminal(t *testing.T) {
	sid, _ := TaskID("fetch", "x")
	rl := newReplayLog([]ExecutionEvent{
		NewEvent(TaskStarted, sid, "fetch", nil),
		NewEvent(TaskFailed, sid, "fetch", FailureValue{Message: "boom"}),
	})

	ev, ok := rl.terminal(sid)
	if !ok {
		t.Fatal("expected a terminal event")
	}
	if ev.Type != TaskFailed {
		t.Errorf("expected TASK_FAILED, got %s", ev.Type)
	}
}

// The first terminal wins: retries append at most one terminal per
// source id in practice, but the oracle must be insensitive to later
// duplicates anyway.
func TestReplayLogFirstTerminalWins(t *testing.T) {
	sid, _ := TaskID("fetch", "x")
	rl := newReplayLog([]ExecutionEvent{
		NewEvent(TaskStarted, sid, "fetch", nil),
		NewEvent(TaskCompleted, sid, "fetch", json.RawMessage(`"first"`)),
		NewEvent(TaskCompleted, sid, "fetch", json.RawMessage(`"second"`)),
	})

	ev, _ := rl.terminal(sid)
	if string(ev.Value) != `"first"` {
		t.Errorf("expected first terminal to win, got %s", ev.Value)
	}
}

func TestReplayLogStartedOnly(t *testing.T) {
	started, _ := TaskID("slow", "a")
	finished, _ := TaskID("fast", "b")
	rl := newReplayLog([]ExecutionEvent{
		NewEvent(TaskStarted, started, "slow", nil),
		NewEvent(TaskStarted, finished, "fast", nil),
		NewEvent(TaskCompleted, finished, "fast", json.RawMessage(`1`)),
	})

	if !rl.startedOnly(started) {
		t.Error("task with no terminal should be started-only")
	}
	if rl.startedOnly(finished) {
		t.Error("completed task is not started-only")
	}
	if rl.startedOnly("never-seen") {
		t.Error("unknown source id is not started-only")
	}
}

func TestReplayLogEmpty(t *testing.T) {
	if !newReplayLog(nil).empty() {
		t.Error("nil event list should be empty")
	}
	if newReplayLog([]ExecutionEvent{NewEvent(WorkflowStarted, "w_1", "w", nil)}).empty() {
		t.Error("non-empty event list should not be empty")
	}
}
