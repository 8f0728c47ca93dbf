package flow

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Durable helpers: the sanctioned sources of nondeterminism inside
// workflow code. Each records its value as a task invocation, so a
// replayed run observes the identical value instead of drawing a fresh
// one.
//
// Helper identity follows task identity: two calls with the same
// (name, input) pair share a source id. A workflow calling Now twice
// therefore sees the same instant twice on replay AND on first
// execution of the second call; workflows needing distinct draws pass
// a distinguishing label.

var nowTask = NewTask("now", func(_ *Ctx, _ string) (time.Time, error) {
	return time.Now().UTC(), nil
})

// Now returns the durable current time. Labels distinguish multiple
// reads within one workflow.
func Now(c *Ctx, label string) (time.Time, error) {
	return nowTask.Call(c, label)
}

var uuidTask = NewTask("uuid4", func(_ *Ctx, _ string) (string, error) {
	return uuid.NewString(), nil
})

// UUID returns a durable random UUID. Labels distinguish multiple
// draws within one workflow.
func UUID(c *Ctx, label string) (string, error) {
	return uuidTask.Call(c, label)
}

type randIntInput struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

var randIntTask = NewTask("randint", func(_ *Ctx, in randIntInput) (int, error) {
	return in.Min + rand.Intn(in.Max-in.Min+1), nil
})

// RandomInt returns a durable uniform draw from [min, max], inclusive
// on both ends.
func RandomInt(c *Ctx, min, max int) (int, error) {
	return randIntTask.Call(c, randIntInput{Min: min, Max: max})
}

type randRangeInput struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

var randRangeTask = NewTask("randrange", func(_ *Ctx, in randRangeInput) (int, error) {
	step := in.Step
	if step <= 0 {
		step = 1
	}
	count := (in.Stop - in.Start + step - 1) / step
	if count <= 0 {
		count = 1
	}
	return in.Start + step*rand.Intn(count), nil
})

// RandomRange returns a durable draw from start, start+step, ... up to
// but excluding stop.
func RandomRange(c *Ctx, start, stop, step int) (int, error) {
	return randRangeTask.Call(c, randRangeInput{Start: start, Stop: stop, Step: step})
}

var sleepTask = NewTask("sleep", func(c *Ctx, seconds float64) (float64, error) {
	d := time.Duration(seconds * float64(time.Second))
	if err := sleepContext(c.Context(), d); err != nil {
		return 0, err
	}
	return seconds, nil
})

// Sleep suspends the workflow for the duration. The live run sleeps;
// a replayed run skips the wait entirely, since the recorded
// completion proves the sleep already happened.
func Sleep(c *Ctx, d time.Duration) error {
	_, err := sleepTask.Call(c, d.Seconds())
	return err
}

// Pause suspends the workflow at a named point. The engine records
// WORKFLOW_PAUSED and returns the paused context to the caller; a
// later run targeting the same execution id resumes past this point.
//
// Propagate the returned error unchanged — it is the pause control
// signal, and swallowing it turns a pause into a no-op.
func Pause(c *Ctx, reference string) error {
	_, err := pausePoint(c, reference, false)
	return err
}

// PauseForInput suspends like Pause, additionally declaring that the
// resume call supplies a fresh workflow input. After resumption it
// returns that input.
func PauseForInput(c *Ctx, reference string) (json.RawMessage, error) {
	return pausePoint(c, reference, true)
}

// pausePoint is the pause state machine. Three cases on the replay
// oracle:
//   - recorded terminal: this pause already resumed in a prior run;
//     serve the recorded value and continue
//   - started only: the run is resuming through this point right now;
//     complete it with the (possibly replaced) workflow input
//   - neither: a live pause; mark the point started and raise the
//     control signal for the engine envelope to trap
func pausePoint(c *Ctx, reference string, waitForInput bool) (json.RawMessage, error) {
	if c == nil || c.eng == nil {
		return nil, ErrNoEngine
	}
	sid, err := TaskID("pause", reference)
	if err != nil {
		return nil, err
	}
	if ev, ok := c.oracle.terminal(sid); ok {
		return ev.Value, nil
	}
	if c.oracle.startedOnly(sid) {
		input := c.ec.Input()
		c.record(NewEvent(TaskCompleted, sid, "pause", input))
		if perr := c.persist(); perr != nil {
			return nil, perr
		}
		return input, nil
	}
	c.record(NewEvent(TaskStarted, sid, "pause", PauseValue{
		Reference:    reference,
		WaitForInput: waitForInput,
	}))
	return nil, &PauseSignal{Reference: reference, WaitForInput: waitForInput}
}

// sleepContext sleeps for d, aborting early on context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
