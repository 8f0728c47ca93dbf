package flow_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dshills/duraflow-go/flow"
)

// Three pause points, four runs: each run executes exactly the tasks
// between the previous pause and the next one, and the fourth run
// completes. Every task body executes exactly once across all runs.
func TestThreePausePointsFourRuns(t *testing.T) {
	executions := map[string]int{}
	step := func(name string) *flow.Task[string, string] {
		return flow.NewTask(name, func(_ *flow.Ctx, _ string) (string, error) {
			executions[name]++
			return name + " done", nil
		})
	}
	stepA, stepB, stepC, stepD := step("a"), step("b"), step("c"), step("d")

	wf := flow.NewWorkflow("staged", func(c *flow.Ctx) (any, error) {
		if _, err := stepA.Call(c, "in"); err != nil {
			return nil, err
		}
		if err := flow.Pause(c, "after_a"); err != nil {
			return nil, err
		}
		if _, err := stepB.Call(c, "in"); err != nil {
			return nil, err
		}
		if err := flow.Pause(c, "after_b"); err != nil {
			return nil, err
		}
		if _, err := stepC.Call(c, "in"); err != nil {
			return nil, err
		}
		if err := flow.Pause(c, "after_c"); err != nil {
			return nil, err
		}
		return stepD.Call(c, "in")
	})

	engine := flow.NewEngine()
	ctx := context.Background()

	ec, err := engine.Run(ctx, wf, nil)
	if err != nil {
		t.Fatalf("run 1 failed: %v", err)
	}
	if !ec.Paused() {
		t.Fatal("run 1 should pause")
	}
	id := ec.ExecutionID()

	for run := 2; run <= 3; run++ {
		ec, err = engine.Run(ctx, wf, nil, flow.WithExecutionID(id))
		if err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
		if !ec.Paused() {
			t.Fatalf("run %d should pause again", run)
		}
	}

	ec, err = engine.Run(ctx, wf, nil, flow.WithExecutionID(id))
	if err != nil {
		t.Fatalf("run 4 failed: %v", err)
	}
	if !ec.Succeeded() {
		t.Fatal("run 4 should complete the workflow")
	}
	if ec.Paused() {
		t.Error("completed workflow must not report Paused")
	}

	for _, name := range []string{"a", "b", "c", "d"} {
		if executions[name] != 1 {
			t.Errorf("task %s executed %d times, expected 1", name, executions[name])
		}
	}

	if got := countType(ec, flow.WorkflowPaused); got != 3 {
		t.Errorf("expected 3 WORKFLOW_PAUSED events, got %d", got)
	}
	if got := countType(ec, flow.WorkflowResumed); got != 3 {
		t.Errorf("expected 3 WORKFLOW_RESUMED events, got %d", got)
	}
	if got := countType(ec, flow.WorkflowStarted); got != 1 {
		t.Errorf("expected 1 WORKFLOW_STARTED, got %d", got)
	}
	if got := countType(ec, flow.WorkflowCompleted); got != 1 {
		t.Errorf("expected 1 WORKFLOW_COMPLETED, got %d", got)
	}

	// Pauses and resumes pair up on the same source id.
	resumed := map[string]int{}
	for _, ev := range ec.Events() {
		if ev.Type == flow.WorkflowResumed {
			resumed[ev.SourceID]++
		}
	}
	for _, ev := range ec.Events() {
		if ev.Type == flow.WorkflowPaused && resumed[ev.SourceID] != 1 {
			t.Errorf("pause %s resumed %d times", ev.SourceID, resumed[ev.SourceID])
		}
	}
}

func TestPauseForInput(t *testing.T) {
	var received json.RawMessage
	wf := flow.NewWorkflow("approval", func(c *flow.Ctx) (any, error) {
		decision, err := flow.PauseForInput(c, "await_approval")
		if err != nil {
			return nil, err
		}
		received = decision
		return json.RawMessage(decision), nil
	})

	engine := flow.NewEngine()
	ctx := context.Background()

	ec, err := engine.Run(ctx, wf, map[string]any{"order": 7})
	if err != nil {
		t.Fatalf("initial run failed: %v", err)
	}
	if !ec.Paused() {
		t.Fatal("expected the workflow to pause for input")
	}

	resumed, err := engine.Run(ctx, wf, map[string]any{"approved": true},
		flow.WithExecutionID(ec.ExecutionID()))
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !resumed.Succeeded() {
		t.Fatal("resumed run should complete")
	}

	var decision map[string]any
	if err := json.Unmarshal(received, &decision); err != nil {
		t.Fatalf("pause point returned invalid JSON: %v", err)
	}
	if decision["approved"] != true {
		t.Errorf("expected the resume input at the pause point, got %s", received)
	}
}

// The pause payload carries the reference and the wait-for-input flag
// so operators can see what the run is waiting on.
func TestPauseEventPayload(t *testing.T) {
	wf := flow.NewWorkflow("parked", func(c *flow.Ctx) (any, error) {
		if _, err := flow.PauseForInput(c, "need_docs"); err != nil {
			return nil, err
		}
		return "done", nil
	})

	engine := flow.NewEngine()
	ec, err := engine.Run(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, ev := range ec.Events() {
		if ev.Type == flow.WorkflowPaused {
			var pv flow.PauseValue
			if err := json.Unmarshal(ev.Value, &pv); err != nil {
				t.Fatalf("pause payload not a PauseValue: %v", err)
			}
			if pv.Reference != "need_docs" {
				t.Errorf("expected reference need_docs, got %q", pv.Reference)
			}
			if !pv.WaitForInput {
				t.Error("expected wait_for_input to be set")
			}
			return
		}
	}
	t.Fatal("no WORKFLOW_PAUSED event found")
}

// Swallowing the pause signal inside workflow code would turn a pause
// into a silent no-op; IsPause lets code rethrow correctly.
func TestIsPause(t *testing.T) {
	wf := flow.NewWorkflow("parked", func(c *flow.Ctx) (any, error) {
		err := flow.Pause(c, "gate")
		if !flow.IsPause(err) {
			t.Error("Pause should return a pause signal")
		}
		return nil, err
	})

	engine := flow.NewEngine()
	ec, err := engine.Run(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ec.Paused() {
		t.Fatal("expected Paused")
	}
	if ec.Failed() {
		t.Error("a pause is not a failure")
	}
}
