package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxRetryDelay caps exponential backoff growth between retry attempts.
const maxRetryDelay = 600 * time.Second

// TaskFunc is the body of a task: the unit of side-effectful work. The
// input and output must be JSON-serializable; the runtime records both
// in the execution log.
type TaskFunc[I, O any] func(c *Ctx, in I) (O, error)

// Task is a named, durable unit of work. Calling it inside a workflow
// records TASK_STARTED / TASK_COMPLETED framing, serves recorded
// results on replay, and applies the configured recovery chain (retry,
// fallback, rollback) on failure.
//
// Configuration is chainable:
//
//	fetchUser := flow.NewTask("fetch_user", fetchUserFn).
//	    WithRetry(3, time.Second, 2.0).
//	    WithTimeout(30 * time.Second).
//	    WithFallback(cachedUserFn)
//
// A Task is immutable after construction aside from the chainable
// setters, which are expected to run before first use; share freely
// across workflows and goroutines.
type Task[I, O any] struct {
	name         string
	fn           TaskFunc[I, O]
	nameFn       func(I) string
	retryMax     int
	retryDelay   time.Duration
	retryBackoff float64
	timeout      time.Duration
	fallback     TaskFunc[I, O]
	rollback     func(c *Ctx, in I) error
	secretNames  []string
	cacheTTL     time.Duration
	cacheVersion string
	storage      OutputStorage
	resources    Resources
}

// NewTask creates a task definition with no recovery configured.
func NewTask[I, O any](name string, fn TaskFunc[I, O]) *Task[I, O] {
	return &Task[I, O]{name: name, fn: fn}
}

// Name returns the task's logical name.
func (t *Task[I, O]) Name() string { return t.name }

// WithRetry configures the retry loop: up to maxAttempts re-executions
// after a failed initial attempt, sleeping delay before each and
// multiplying it by backoff after each failure (capped at ten
// minutes). Zero delay or backoff fall back to the engine defaults at
// call time.
func (t *Task[I, O]) WithRetry(maxAttempts int, delay time.Duration, backoff float64) *Task[I, O] {
	t.retryMax = maxAttempts
	t.retryDelay = delay
	t.retryBackoff = backoff
	return t
}

// WithTimeout bounds each attempt's wall-clock duration. On expiry the
// attempt fails with an ExecutionTimeoutError, which flows through the
// normal recovery chain.
func (t *Task[I, O]) WithTimeout(d time.Duration) *Task[I, O] {
	t.timeout = d
	return t
}

// WithFallback sets the alternative producer invoked after the retry
// budget is exhausted. A successful fallback result becomes the task
// result; the log shows the detour but downstream code cannot tell.
func (t *Task[I, O]) WithFallback(fn TaskFunc[I, O]) *Task[I, O] {
	t.fallback = fn
	return t
}

// WithRollback sets the compensation hook invoked when the task is
// about to fail permanently. Rollback is compensation only: it cannot
// rescue the task, and its own failure never masks the original error.
func (t *Task[I, O]) WithRollback(fn func(c *Ctx, in I) error) *Task[I, O] {
	t.rollback = fn
	return t
}

// WithSecrets declares secret names resolved through the engine's
// secret manager before each live attempt and exposed to the body via
// c.Secrets(). Secret values never appear in the execution log.
func (t *Task[I, O]) WithSecrets(names ...string) *Task[I, O] {
	t.secretNames = names
	return t
}

// WithCache enables result caching with the given ttl. A version tag
// invalidates older entries after a behavior change: a lookup with a
// different version misses.
func (t *Task[I, O]) WithCache(ttl time.Duration, version string) *Task[I, O] {
	t.cacheTTL = ttl
	t.cacheVersion = version
	return t
}

// WithOutputStorage routes the task result through a storage backend;
// the TASK_COMPLETED payload becomes a storage reference. Overrides
// the engine default.
func (t *Task[I, O]) WithOutputStorage(s OutputStorage) *Task[I, O] {
	t.storage = s
	return t
}

// WithNameFormat derives the effective task name from the input, for
// tasks whose identity depends on what they are applied to (e.g. a
// sub-workflow invoker named after the target workflow).
func (t *Task[I, O]) WithNameFormat(fn func(I) string) *Task[I, O] {
	t.nameFn = fn
	return t
}

// WithResources declares advisory resource requirements. When the
// engine has an admission gate, the task queues on it before each live
// attempt.
func (t *Task[I, O]) WithResources(r Resources) *Task[I, O] {
	t.resources = r
	return t
}

// Call invokes the task inside a workflow.
//
// On replay (a prior terminal event exists for this invocation's
// source id) the recorded result or recorded failure is served without
// executing the body. On live execution the runtime records the task
// framing, runs the body under the attempt timeout, and applies the
// recovery chain on failure. A task that fails permanently records
// TASK_FAILED and returns an *ExecutionError the workflow may catch or
// propagate.
func (t *Task[I, O]) Call(c *Ctx, in I) (O, error) {
	var zero O
	if c == nil || c.eng == nil {
		return zero, ErrNoEngine
	}

	name := t.name
	if t.nameFn != nil {
		name = t.nameFn(in)
	}
	sid, err := TaskID(name, in)
	if err != nil {
		return zero, err
	}

	if ev, ok := c.oracle.terminal(sid); ok {
		return t.replayTerminal(c, name, sid, ev)
	}

	rawIn := marshalValue(in)
	if !c.oracle.startedOnly(sid) {
		c.record(NewEvent(TaskStarted, sid, name, rawIn))
	}

	if t.cacheTTL > 0 && c.eng.cache != nil {
		if val, hit, cerr := c.eng.cache.GetResult(c.stdctx, sid, t.cacheVersion); cerr == nil && hit {
			out, derr := t.decodePayload(c, val)
			if derr == nil {
				c.record(NewEvent(TaskCompleted, sid, name, val))
				if perr := c.persist(); perr != nil {
					return zero, perr
				}
				return out, nil
			}
		}
	}

	release, err := c.eng.admission.acquire(c.stdctx, t.resources)
	if err != nil {
		return zero, err
	}
	defer release()

	tc := c
	if len(t.secretNames) > 0 {
		bundle, serr := t.resolveSecrets(c)
		if serr != nil {
			return t.fail(c, name, sid, serr)
		}
		tc = c.withSecrets(bundle)
	}

	result, err := t.attempt(tc, name, sid, in)
	if err != nil && !IsPause(err) {
		result, err = t.recoverFailure(tc, name, sid, in, err)
	}
	if IsPause(err) {
		return zero, err
	}
	if err != nil {
		if t.rollback != nil {
			c.record(NewEvent(TaskRollbackStarted, sid, name, rawIn))
			if rbErr := t.runRollback(tc, in); rbErr == nil {
				c.record(NewEvent(TaskRollbackCompleted, sid, name, nil))
			}
		}
		return t.fail(c, name, sid, err)
	}

	payload, err := t.storeResult(c, sid, result)
	if err != nil {
		return t.fail(c, name, sid, err)
	}
	if t.cacheTTL > 0 && c.eng.cache != nil {
		// Best effort; a cache write failure never fails the task.
		_ = c.eng.cache.SetResult(c.stdctx, sid, t.cacheVersion, payload, t.cacheTTL)
	}
	c.record(NewEvent(TaskCompleted, sid, name, payload))
	if perr := c.persist(); perr != nil {
		return zero, perr
	}
	return result, nil
}

// Map calls the task once per input, concurrently, bounded by the
// engine's worker cap. Results come back in input order. Each member
// has its own source id, so replay serves completed members from the
// log and re-runs only the rest.
func (t *Task[I, O]) Map(c *Ctx, inputs []I) ([]O, error) {
	if c == nil || c.eng == nil {
		return nil, ErrNoEngine
	}
	results := make([]O, len(inputs))
	g, gctx := errgroup.WithContext(c.stdctx)
	g.SetLimit(c.eng.maxWorkers)
	for i, in := range inputs {
		g.Go(func() error {
			out, err := t.Call(c.branch(gctx), in)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// attempt runs the body once under the attempt timeout, with panic
// recovery.
func (t *Task[I, O]) attempt(c *Ctx, name, sid string, in I) (O, error) {
	var zero O
	call := func(tc *Ctx) (any, error) { return t.fn(tc, in) }
	var res any
	var err error
	if t.timeout > 0 {
		res, err = callWithTimeout(c, t.timeout, &ExecutionTimeoutError{
			Kind:     "task",
			Name:     name,
			SourceID: sid,
			Timeout:  t.timeout,
		}, call)
	} else {
		res, err = callSafely(func() (any, error) { return call(c) })
	}
	if err != nil {
		return zero, err
	}
	out, _ := res.(O)
	return out, nil
}

// recoverFailure drives the retry loop and fallback after a failed
// initial attempt. It returns the rescued result, or the error that
// should fail the task.
func (t *Task[I, O]) recoverFailure(c *Ctx, name, sid string, in I, cause error) (O, error) {
	var zero O

	// A task with no retry policy of its own inherits the engine's
	// retry budget, with the engine's delay and backoff defaults.
	retryMax := t.retryMax
	if retryMax == 0 {
		retryMax = c.eng.retryAttempts
	}
	if retryMax > 0 {
		delay := t.retryDelay
		if delay <= 0 {
			delay = c.eng.retryDelay
		}
		backoff := t.retryBackoff
		if backoff <= 0 {
			backoff = c.eng.retryBackoff
		}
		last := cause
		for attempt := 1; attempt <= retryMax; attempt++ {
			if err := sleepContext(c.stdctx, delay); err != nil {
				return zero, err
			}
			// The backoff multiplication lands before the event is
			// recorded, so the logged delay is the grown interval the
			// next failure would wait.
			delay = time.Duration(float64(delay) * backoff)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			rv := RetryValue{
				Attempt:     attempt,
				MaxAttempts: retryMax,
				Delay:       delay.Seconds(),
				Backoff:     backoff,
			}
			c.record(NewEvent(TaskRetryStarted, sid, name, rv))
			result, err := t.attempt(c, name, sid, in)
			if err == nil {
				c.record(NewEvent(TaskRetryCompleted, sid, name, rv))
				return result, nil
			}
			if IsPause(err) {
				return zero, err
			}
			last = err
			c.record(NewEvent(TaskRetryFailed, sid, name, rv))
		}
		cause = &RetryError{Cause: last, Attempts: retryMax, Delay: delay, Backoff: backoff}
	}

	if t.fallback != nil {
		c.record(NewEvent(TaskFallbackStarted, sid, name, failureValueOf(cause)))
		res, err := callSafely(func() (any, error) { return t.fallback(c, in) })
		if err == nil {
			out, _ := res.(O)
			c.record(NewEvent(TaskFallbackCompleted, sid, name, marshalValue(out)))
			return out, nil
		}
		if IsPause(err) {
			return zero, err
		}
		cause = fmt.Errorf("fallback failed: %w", err)
	}

	return zero, cause
}

func (t *Task[I, O]) runRollback(c *Ctx, in I) error {
	_, err := callSafely(func() (any, error) { return nil, t.rollback(c, in) })
	return err
}

// fail records the terminal failure and wraps the cause so workflow
// code can catch it with errors.As.
func (t *Task[I, O]) fail(c *Ctx, name, sid string, cause error) (O, error) {
	var zero O
	c.record(NewEvent(TaskFailed, sid, name, failureValueOf(cause)))
	if perr := c.persist(); perr != nil {
		return zero, perr
	}
	return zero, &ExecutionError{TaskName: name, SourceID: sid, Inner: cause}
}

// replayTerminal serves a recorded terminal event: the value for
// TASK_COMPLETED, the recorded failure (re-wrapped as ExecutionError)
// for TASK_FAILED.
func (t *Task[I, O]) replayTerminal(c *Ctx, name, sid string, ev ExecutionEvent) (O, error) {
	var zero O
	if ev.Type == TaskFailed {
		return zero, &ExecutionError{TaskName: name, SourceID: sid, Inner: errors.New(failureMessage(ev.Value))}
	}
	return t.decodePayload(c, ev.Value)
}

// decodePayload resolves a recorded payload (dereferencing storage
// references) into the task's output type.
func (t *Task[I, O]) decodePayload(c *Ctx, payload json.RawMessage) (O, error) {
	var out O
	if len(payload) == 0 {
		return out, nil
	}
	storage := t.storage
	if storage == nil {
		storage = c.eng.storage
	}
	if _, isRef := ParseStorageRef(payload); isRef && storage != nil {
		resolved, err := storage.Load(c.stdctx, payload)
		if err != nil {
			return out, fmt.Errorf("load stored result: %w", err)
		}
		payload = resolved
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode task result: %w", err)
	}
	return out, nil
}

// storeResult serializes the result and routes it through the
// effective output storage.
func (t *Task[I, O]) storeResult(c *Ctx, sid string, result any) (json.RawMessage, error) {
	raw := marshalValue(result)
	storage := t.storage
	if storage == nil {
		storage = c.eng.storage
	}
	if raw == nil || storage == nil {
		return raw, nil
	}
	return storage.Store(c.stdctx, sid, raw)
}

func (t *Task[I, O]) resolveSecrets(c *Ctx) (Secrets, error) {
	bundle := make(Secrets, len(t.secretNames))
	for _, n := range t.secretNames {
		v, err := c.eng.secrets.GetSecret(c.stdctx, n)
		if err != nil {
			return nil, fmt.Errorf("resolve secret %q: %w", n, err)
		}
		bundle[n] = v
	}
	return bundle, nil
}

// failureMessage extracts the rendered message from a FailureValue
// payload, falling back to the raw text.
func failureMessage(payload json.RawMessage) string {
	var fv FailureValue
	if err := json.Unmarshal(payload, &fv); err == nil && fv.Message != "" {
		return fv.Message
	}
	return string(payload)
}
