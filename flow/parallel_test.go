package flow_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/duraflow-go/flow"
)

// Parallel fan-out: members run concurrently, results come back in
// declaration order, and every task invocation has its own source id.
func TestParallelFanOut(t *testing.T) {
	fetch := flow.NewTask("fetch", func(_ *flow.Ctx, region string) (string, error) {
		return "data:" + region, nil
	})

	wf := flow.NewWorkflow("fanout", func(c *flow.Ctx) (any, error) {
		return flow.Parallel(c,
			func(c *flow.Ctx) (any, error) { return fetch.Call(c, "us") },
			func(c *flow.Ctx) (any, error) { return fetch.Call(c, "eu") },
			func(c *flow.Ctx) (any, error) { return fetch.Call(c, "ap") },
		)
	})

	engine := flow.NewEngine(flow.WithMaxWorkers(3))
	ec, err := engine.Run(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ec.Succeeded() {
		t.Fatal("expected success")
	}

	var out []string
	if ok, err := ec.BindOutput(&out); !ok || err != nil {
		t.Fatalf("BindOutput failed: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(out, []string{"data:us", "data:eu", "data:ap"}) {
		t.Errorf("results must preserve declaration order, got %v", out)
	}

	sids := map[string]bool{}
	for _, ev := range ec.Events() {
		if ev.Type == flow.TaskStarted {
			sids[ev.SourceID] = true
		}
	}
	if len(sids) != 3 {
		t.Errorf("expected 3 distinct source ids, got %d", len(sids))
	}
	if got := countType(ec, flow.TaskCompleted); got != 3 {
		t.Errorf("expected 3 TASK_COMPLETED, got %d", got)
	}
}

func TestParallelBranchFailure(t *testing.T) {
	ok := flow.NewTask("ok", func(_ *flow.Ctx, n int) (int, error) { return n, nil })
	bad := flow.NewTask("bad", func(_ *flow.Ctx, _ int) (int, error) {
		return 0, errors.New("branch broke")
	})

	wf := flow.NewWorkflow("mixed", func(c *flow.Ctx) (any, error) {
		return flow.Parallel(c,
			func(c *flow.Ctx) (any, error) { return ok.Call(c, 1) },
			func(c *flow.Ctx) (any, error) { return bad.Call(c, 2) },
		)
	})

	engine := flow.NewEngine()
	ec, err := engine.Run(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ec.Failed() {
		t.Error("a failing branch should fail the workflow")
	}
}

// Replaying a fan-out serves every member from the log.
func TestParallelReplay(t *testing.T) {
	liveCalls := 0
	fetch := flow.NewTask("fetch", func(_ *flow.Ctx, region string) (string, error) {
		liveCalls++
		return "data:" + region, nil
	})
	wf := flow.NewWorkflow("fanout", func(c *flow.Ctx) (any, error) {
		return flow.Parallel(c,
			func(c *flow.Ctx) (any, error) { return fetch.Call(c, "us") },
			func(c *flow.Ctx) (any, error) { return fetch.Call(c, "eu") },
		)
	})

	engine := flow.NewEngine()
	ctx := context.Background()

	first, err := engine.Run(ctx, wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if liveCalls != 2 {
		t.Fatalf("expected 2 live calls, got %d", liveCalls)
	}

	_, err = engine.Run(ctx, wf, nil,
		flow.WithExecutionID(first.ExecutionID()), flow.WithForceReplay())
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if liveCalls != 2 {
		t.Errorf("replay re-executed branches: %d live calls", liveCalls)
	}
}

func TestPipeline(t *testing.T) {
	wf := flow.NewWorkflow("pipe", func(c *flow.Ctx) (any, error) {
		return flow.Pipeline(c, 2,
			func(_ *flow.Ctx, in any) (any, error) {
				return in.(int) * 3, nil
			},
			func(_ *flow.Ctx, in any) (any, error) {
				return in.(int) + 1, nil
			},
		)
	})

	engine := flow.NewEngine()
	ec, err := engine.Run(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var out int
	if ok, _ := ec.BindOutput(&out); !ok || out != 7 {
		t.Errorf("expected 7 from the pipeline, got %d", out)
	}
}

func TestPipelineStopsOnError(t *testing.T) {
	secondRan := false
	wf := flow.NewWorkflow("pipe", func(c *flow.Ctx) (any, error) {
		return flow.Pipeline(c, 1,
			func(_ *flow.Ctx, _ any) (any, error) {
				return nil, errors.New("stage one broke")
			},
			func(_ *flow.Ctx, in any) (any, error) {
				secondRan = true
				return in, nil
			},
		)
	})

	engine := flow.NewEngine()
	ec, err := engine.Run(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ec.Failed() {
		t.Error("expected the workflow to fail")
	}
	if secondRan {
		t.Error("later stages must not run after a failure")
	}
}
