package flow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CallWorkflow runs another cataloged workflow as a durable step of
// the current one. The child runs under its own execution context with
// its own event log; the parent records the call as a task named
// "call_workflow_<name>", so replay serves the child's recorded output
// without re-running it.
//
// A child that fails fails the call (catchable as *ExecutionError). A
// child that pauses fails the call as well: parked parent-child pause
// chains are not supported, pause at the parent level instead.
//
// Example:
//
//	total, err := flow.CallWorkflow[float64](c, "price_order", order)
func CallWorkflow[O any](c *Ctx, name string, input any) (O, error) {
	var zero O
	if c == nil || c.eng == nil {
		return zero, ErrNoEngine
	}
	taskName := "call_workflow_" + name
	sid, err := TaskID(taskName, input)
	if err != nil {
		return zero, err
	}

	if ev, ok := c.oracle.terminal(sid); ok {
		if ev.Type == TaskFailed {
			return zero, &ExecutionError{TaskName: taskName, SourceID: sid, Inner: errors.New(failureMessage(ev.Value))}
		}
		return decodeAs[O](ev.Value)
	}

	if !c.oracle.startedOnly(sid) {
		c.record(NewEvent(TaskStarted, sid, taskName, marshalValue(input)))
	}

	child, err := c.eng.Execute(c.stdctx, name, input)
	if err != nil {
		return failCall[O](c, taskName, sid, err)
	}
	if child.Paused() {
		return failCall[O](c, taskName, sid, fmt.Errorf("sub-workflow %s paused at execution %s", name, child.ExecutionID()))
	}
	if child.Failed() {
		return failCall[O](c, taskName, sid, errors.New(failureMessage(child.Output())))
	}

	output := child.Output()
	c.record(NewEvent(TaskCompleted, sid, taskName, output))
	if perr := c.persist(); perr != nil {
		return zero, perr
	}
	return decodeAs[O](output)
}

func failCall[O any](c *Ctx, taskName, sid string, cause error) (O, error) {
	var zero O
	c.record(NewEvent(TaskFailed, sid, taskName, failureValueOf(cause)))
	if perr := c.persist(); perr != nil {
		return zero, perr
	}
	return zero, &ExecutionError{TaskName: taskName, SourceID: sid, Inner: cause}
}

func decodeAs[O any](payload json.RawMessage) (O, error) {
	var out O
	if len(payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode sub-workflow result: %w", err)
	}
	return out, nil
}
