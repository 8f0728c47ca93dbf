package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/duraflow-go/flow"
)

// A durable UUID draw must survive resumption: the value observed
// before a pause and the value observed after resuming are the same
// recorded draw.
func TestUUIDStableAcrossResume(t *testing.T) {
	var draws []string
	wf := flow.NewWorkflow("ids", func(c *flow.Ctx) (any, error) {
		id, err := flow.UUID(c, "request")
		if err != nil {
			return nil, err
		}
		draws = append(draws, id)
		if err := flow.Pause(c, "checkpoint"); err != nil {
			return nil, err
		}
		return id, nil
	})

	engine := flow.NewEngine()
	ctx := context.Background()

	ec, err := engine.Run(ctx, wf, nil)
	if err != nil {
		t.Fatalf("run 1 failed: %v", err)
	}
	if !ec.Paused() {
		t.Fatal("expected pause")
	}

	resumed, err := engine.Run(ctx, wf, nil, flow.WithExecutionID(ec.ExecutionID()))
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !resumed.Succeeded() {
		t.Fatal("expected completion")
	}

	if len(draws) != 2 {
		t.Fatalf("expected the body to observe the draw twice, got %d", len(draws))
	}
	if draws[0] != draws[1] {
		t.Errorf("replayed UUID differs from the live draw: %q != %q", draws[0], draws[1])
	}
	if draws[0] == "" {
		t.Error("empty UUID draw")
	}
}

// Labels keep multiple draws distinct; the same label within one
// workflow is one draw.
func TestNowLabels(t *testing.T) {
	var first, second, firstAgain time.Time
	wf := flow.NewWorkflow("times", func(c *flow.Ctx) (any, error) {
		var err error
		if first, err = flow.Now(c, "start"); err != nil {
			return nil, err
		}
		time.Sleep(5 * time.Millisecond)
		if second, err = flow.Now(c, "end"); err != nil {
			return nil, err
		}
		if firstAgain, err = flow.Now(c, "start"); err != nil {
			return nil, err
		}
		return nil, nil
	})

	engine := flow.NewEngine()
	if _, err := engine.Run(context.Background(), wf, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !second.After(first) {
		t.Errorf("distinct labels should be distinct draws: %v then %v", first, second)
	}
	if !firstAgain.Equal(first) {
		t.Errorf("repeated label should replay the recorded draw: %v != %v", firstAgain, first)
	}
}

func TestRandomIntBounds(t *testing.T) {
	var v int
	wf := flow.NewWorkflow("dice", func(c *flow.Ctx) (any, error) {
		var err error
		v, err = flow.RandomInt(c, 1, 6)
		return v, err
	})

	engine := flow.NewEngine()
	for i := 0; i < 10; i++ {
		if _, err := engine.Run(context.Background(), wf, nil); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if v < 1 || v > 6 {
			t.Fatalf("draw %d outside [1, 6]", v)
		}
	}
}

func TestRandomRangeBounds(t *testing.T) {
	var v int
	wf := flow.NewWorkflow("stride", func(c *flow.Ctx) (any, error) {
		var err error
		v, err = flow.RandomRange(c, 10, 20, 2)
		return v, err
	})

	engine := flow.NewEngine()
	for i := 0; i < 10; i++ {
		if _, err := engine.Run(context.Background(), wf, nil); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if v < 10 || v >= 20 {
			t.Fatalf("draw %d outside [10, 20)", v)
		}
		if (v-10)%2 != 0 {
			t.Fatalf("draw %d not aligned to step 2", v)
		}
	}
}

// The live run sleeps; a replay of the same execution skips the wait
// because the completion is already recorded.
func TestSleepSkippedOnReplay(t *testing.T) {
	wf := flow.NewWorkflow("nap", func(c *flow.Ctx) (any, error) {
		if err := flow.Sleep(c, 50*time.Millisecond); err != nil {
			return nil, err
		}
		return "rested", nil
	})

	engine := flow.NewEngine()
	ctx := context.Background()

	start := time.Now()
	ec, err := engine.Run(ctx, wf, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("live run should actually sleep, finished in %v", elapsed)
	}

	start = time.Now()
	if _, err := engine.Run(ctx, wf, nil,
		flow.WithExecutionID(ec.ExecutionID()), flow.WithForceReplay()); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("replay should skip the sleep, took %v", elapsed)
	}
}
