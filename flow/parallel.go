package flow

import "golang.org/x/sync/errgroup"

// Branch is one member of a parallel group.
type Branch func(c *Ctx) (any, error)

// Parallel runs the branches concurrently and returns their results in
// declaration order. Concurrency is bounded by the engine's worker
// cap; the first error cancels the remaining branches.
//
// Each branch receives a branched Ctx sharing the execution context
// and replay oracle, so branch task calls record into the same log and
// replay individually: on a re-run, branches whose tasks completed are
// served from the log while the rest execute live.
//
// Example:
//
//	results, err := flow.Parallel(c,
//	    func(c *flow.Ctx) (any, error) { return fetchA.Call(c, id) },
//	    func(c *flow.Ctx) (any, error) { return fetchB.Call(c, id) },
//	)
func Parallel(c *Ctx, branches ...Branch) ([]any, error) {
	if c == nil || c.eng == nil {
		return nil, ErrNoEngine
	}
	results := make([]any, len(branches))
	g, gctx := errgroup.WithContext(c.stdctx)
	g.SetLimit(c.eng.maxWorkers)
	for i, branch := range branches {
		g.Go(func() error {
			out, err := branch(c.branch(gctx))
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

// Stage is one step of a pipeline: it receives the previous stage's
// output.
type Stage func(c *Ctx, in any) (any, error)

// Pipeline threads input through the stages sequentially, feeding each
// stage the previous stage's result, and returns the final output.
func Pipeline(c *Ctx, input any, stages ...Stage) (any, error) {
	current := input
	for _, stage := range stages {
		out, err := stage(c, current)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}
