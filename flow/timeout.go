package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// callSafely invokes fn, recovering panics into errors. A panicking
// task or workflow body becomes a recorded failure instead of tearing
// down the engine.
func callSafely(fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}

// callWithTimeout drives fn in a goroutine bounded by the timeout
// budget, handing it a branched Ctx whose cancellation context expires
// with the budget. On expiry the caller receives timeoutErr; the
// goroutine keeps running until fn observes the cancellation, which is
// why bodies doing I/O must thread c.Context() through.
func callWithTimeout(c *Ctx, timeout time.Duration, timeoutErr error, fn func(*Ctx) (any, error)) (any, error) {
	tctx, cancel := context.WithTimeout(c.stdctx, timeout)
	defer cancel()
	tc := c.branch(tctx)

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := callSafely(func() (any, error) { return fn(tc) })
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-tctx.Done():
		// Distinguish caller cancellation from budget expiry.
		if c.stdctx.Err() != nil {
			return nil, c.stdctx.Err()
		}
		return nil, timeoutErr
	}
}
