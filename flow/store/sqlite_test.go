package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/duraflow-go/flow"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "duraflow.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func seedContext(name string) *flow.ExecutionContext {
	ec := flow.NewExecutionContext(name, json.RawMessage(`{"id":1}`))
	sid, _ := flow.TaskID("step", 1)
	ec.Append(flow.NewEvent(flow.WorkflowStarted, name+"_"+ec.ExecutionID(), name, ec.Input()))
	ec.Append(flow.NewEvent(flow.TaskStarted, sid, "step", json.RawMessage(`1`)))
	ec.Append(flow.NewEvent(flow.TaskCompleted, sid, "step", json.RawMessage(`2`)))
	return ec
}

func TestSQLiteSaveAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ec := seedContext("order")
	if err := s.Save(ctx, ec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, ec.ExecutionID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name() != "order" {
		t.Errorf("expected name order, got %q", got.Name())
	}
	if string(got.Input()) != `{"id":1}` {
		t.Errorf("input mismatch: %s", got.Input())
	}
	if got.EventCount() != 3 {
		t.Errorf("expected 3 events, got %d", got.EventCount())
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, flow.ErrContextNotFound) {
		t.Errorf("expected ErrContextNotFound, got %v", err)
	}
}

// The events table keys on (execution_id, source_id, type); saving the
// same context repeatedly must not duplicate rows.
func TestSQLiteIdempotentSave(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ec := seedContext("order")
	for i := 0; i < 3; i++ {
		if err := s.Save(ctx, ec); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	got, err := s.Get(ctx, ec.ExecutionID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.EventCount() != 3 {
		t.Errorf("repeated saves duplicated events: got %d", got.EventCount())
	}
}

func TestSQLiteEventOrderPreserved(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ec := seedContext("order")
	wfSID := "order_" + ec.ExecutionID()
	ec.Append(flow.NewEvent(flow.WorkflowCompleted, wfSID, "order", json.RawMessage(`2`)))
	if err := s.Save(ctx, ec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, ec.ExecutionID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := []flow.EventType{
		flow.WorkflowStarted, flow.TaskStarted, flow.TaskCompleted, flow.WorkflowCompleted,
	}
	events := got.Events()
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, w := range want {
		if events[i].Type != w {
			t.Errorf("event %d: expected %s, got %s", i, w, events[i].Type)
		}
	}
}

// Incremental saves across simulated runs: a resume appends new events
// to an already-persisted execution.
func TestSQLiteIncrementalSave(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ec := seedContext("order")
	if err := s.Save(ctx, ec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Get(ctx, ec.ExecutionID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	wfSID := "order_" + loaded.ExecutionID()
	loaded.Append(flow.NewEvent(flow.WorkflowCompleted, wfSID, "order", json.RawMessage(`"ok"`)))
	if err := s.Save(ctx, loaded); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	final, err := s.Get(ctx, ec.ExecutionID())
	if err != nil {
		t.Fatalf("final Get failed: %v", err)
	}
	if final.EventCount() != 4 {
		t.Errorf("expected 4 events after resume save, got %d", final.EventCount())
	}
	if !final.Succeeded() {
		t.Error("restored context should reflect the completion")
	}
}

func TestSQLiteWorksAsEngineStore(t *testing.T) {
	s := newTestSQLite(t)

	task := flow.NewTask("double", func(_ *flow.Ctx, n int) (int, error) {
		return n * 2, nil
	})
	wf := flow.NewWorkflow("math", func(c *flow.Ctx) (any, error) {
		var n int
		if err := c.BindInput(&n); err != nil {
			return nil, err
		}
		return task.Call(c, n)
	})

	engine := flow.NewEngine(flow.WithStore(s))
	ec, err := engine.Run(context.Background(), wf, 21)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ec.Succeeded() {
		t.Fatal("expected success")
	}

	// The persisted context is fully recoverable.
	stored, err := s.Get(context.Background(), ec.ExecutionID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var out int
	if ok, _ := stored.BindOutput(&out); !ok || out != 42 {
		t.Errorf("expected persisted output 42, got %d", out)
	}
}

func TestSQLiteDoubleClose(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "duraflow.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
