package emit

import "testing"

func TestBufferedEmitterHistory(t *testing.T) {
	b := NewBufferedEmitter()

	b.Emit(Event{ExecutionID: "e1", Type: "WORKFLOW_STARTED", Name: "order"})
	b.Emit(Event{ExecutionID: "e1", Type: "TASK_STARTED", Name: "charge", SourceID: "charge_1"})
	b.Emit(Event{ExecutionID: "e2", Type: "WORKFLOW_STARTED", Name: "other"})

	h1 := b.GetHistory("e1")
	if len(h1) != 2 {
		t.Fatalf("expected 2 events for e1, got %d", len(h1))
	}
	if h1[0].Type != "WORKFLOW_STARTED" || h1[1].Type != "TASK_STARTED" {
		t.Errorf("events out of order: %v", h1)
	}

	if got := b.GetHistory("e2"); len(got) != 1 {
		t.Errorf("expected 1 event for e2, got %d", len(got))
	}
	if got := b.GetHistory("missing"); got == nil || len(got) != 0 {
		t.Errorf("unknown execution should return empty, non-nil history, got %v", got)
	}
}

func TestBufferedEmitterFilter(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{ExecutionID: "e1", Type: "TASK_STARTED", Name: "charge", SourceID: "s1"})
	b.Emit(Event{ExecutionID: "e1", Type: "TASK_COMPLETED", Name: "charge", SourceID: "s1"})
	b.Emit(Event{ExecutionID: "e1", Type: "TASK_STARTED", Name: "refund", SourceID: "s2"})

	byType := b.GetHistoryWithFilter("e1", HistoryFilter{Type: "TASK_STARTED"})
	if len(byType) != 2 {
		t.Errorf("type filter: expected 2, got %d", len(byType))
	}

	byName := b.GetHistoryWithFilter("e1", HistoryFilter{Name: "charge"})
	if len(byName) != 2 {
		t.Errorf("name filter: expected 2, got %d", len(byName))
	}

	combined := b.GetHistoryWithFilter("e1", HistoryFilter{Type: "TASK_STARTED", SourceID: "s1"})
	if len(combined) != 1 {
		t.Errorf("combined filter: expected 1, got %d", len(combined))
	}
}

func TestBufferedEmitterClear(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{ExecutionID: "e1", Type: "WORKFLOW_STARTED"})
	b.Emit(Event{ExecutionID: "e2", Type: "WORKFLOW_STARTED"})

	b.Clear("e1")
	if len(b.GetHistory("e1")) != 0 {
		t.Error("Clear should remove the execution's history")
	}
	if len(b.GetHistory("e2")) != 1 {
		t.Error("Clear of one execution must not touch others")
	}

	b.Clear("")
	if len(b.GetHistory("e2")) != 0 {
		t.Error("Clear with empty id should drop everything")
	}
}

func TestBufferedEmitterHistoryIsACopy(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{ExecutionID: "e1", Type: "WORKFLOW_STARTED"})

	h := b.GetHistory("e1")
	h[0].Type = "MUTATED"

	if b.GetHistory("e1")[0].Type != "WORKFLOW_STARTED" {
		t.Error("mutating a returned history leaked into the buffer")
	}
}
