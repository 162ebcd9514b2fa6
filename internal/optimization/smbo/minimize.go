package smbo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MechCoder/BlackBox/internal/optimization"
)

// Minimize drives the full ask/evaluate/tell loop for budget
// iterations and returns the accumulated result. Cancellation of ctx
// is honored between iterations; whatever was observed so far is
// still returned. A failed evaluation is recorded in the result and
// the loop continues, unless Strict is set, in which case the run
// stops after recording it.
func Minimize(ctx context.Context, cfg Config, objective optimization.Objective, budget int) (*optimization.Result, error) {
	if objective == nil {
		return nil, optimization.E(optimization.KindConfiguration, "an objective function is required").WithComponent("smbo")
	}
	if budget < 1 {
		return nil, optimization.Ef(optimization.KindConfiguration, "budget must be positive, got %d", budget).WithComponent("smbo")
	}

	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return c.Minimize(ctx, objective, budget)
}

// Minimize runs the loop on an existing controller, so a resumed run
// continues from its persisted history.
func (c *Controller) Minimize(ctx context.Context, objective optimization.Objective, budget int) (*optimization.Result, error) {
	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return c.Result(), optimization.WrapError(err, optimization.KindEvaluation, "run cancelled").WithComponent("smbo")
		}

		point, err := c.Ask()
		if err != nil {
			return c.Result(), err
		}

		value, err := c.evaluate(ctx, objective, point)
		if err != nil {
			c.recordFailure(i, point, err)
			if c.cfg.Strict {
				return c.Result(), optimization.WrapError(err, optimization.KindEvaluation, "objective evaluation failed").WithComponent("smbo")
			}
			continue
		}

		if err := c.Tell(point, value); err != nil {
			return c.Result(), err
		}
	}
	return c.Result(), nil
}

// MinimizeBatch runs the loop with batched proposals evaluated
// concurrently. Each round asks for up to k points, fans the
// evaluations out over at most Workers goroutines and tells the
// outcomes back in proposal order, so the history stays deterministic
// for a given set of outcomes.
func (c *Controller) MinimizeBatch(ctx context.Context, objective optimization.Objective, budget, k int) (*optimization.Result, error) {
	if objective == nil {
		return nil, optimization.E(optimization.KindConfiguration, "an objective function is required").WithComponent("smbo")
	}
	if k < 1 {
		return nil, optimization.Ef(optimization.KindConfiguration, "batch size must be positive, got %d", k).WithComponent("smbo")
	}
	if budget < 1 {
		return nil, optimization.Ef(optimization.KindConfiguration, "budget must be positive, got %d", budget).WithComponent("smbo")
	}

	workers := c.cfg.Workers
	if workers <= 0 || workers > k {
		workers = k
	}

	done := 0
	for done < budget {
		if err := ctx.Err(); err != nil {
			return c.Result(), optimization.WrapError(err, optimization.KindEvaluation, "run cancelled").WithComponent("smbo")
		}

		size := k
		if remaining := budget - done; size > remaining {
			size = remaining
		}
		points, err := c.AskBatch(size)
		if err != nil {
			return c.Result(), err
		}

		values := make([]float64, len(points))
		errs := make([]error, len(points))

		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i, p := range points {
			wg.Add(1)
			go func(i int, p optimization.Point) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				values[i], errs[i] = c.evaluate(ctx, objective, p)
			}(i, p)
		}
		wg.Wait()

		var batchErr error
		for i, p := range points {
			if errs[i] != nil {
				c.recordFailure(done+i, p, errs[i])
				if c.cfg.BatchFailure == AbortBatch && batchErr == nil {
					batchErr = errs[i]
				}
				continue
			}
			if err := c.Tell(p, values[i]); err != nil {
				return c.Result(), err
			}
		}
		done += len(points)

		if batchErr != nil {
			return c.Result(), optimization.WrapError(batchErr, optimization.KindEvaluation, "batch evaluation failed").WithComponent("smbo")
		}
	}
	return c.Result(), nil
}

// evaluate calls the objective, optionally bounded by EvalTimeout.
// The evaluation goroutine is left to finish on its own after a
// timeout; its result is discarded.
func (c *Controller) evaluate(ctx context.Context, objective optimization.Objective, p optimization.Point) (float64, error) {
	if c.cfg.EvalTimeout <= 0 {
		return objective(p)
	}

	type outcome struct {
		value float64
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := objective(p)
		ch <- outcome{v, err}
	}()

	timer := time.NewTimer(c.cfg.EvalTimeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.value, out.err
	case <-timer.C:
		return 0, optimization.Ef(optimization.KindEvaluation, "objective evaluation exceeded %s", c.cfg.EvalTimeout).WithComponent("smbo")
	case <-ctx.Done():
		return 0, optimization.WrapError(ctx.Err(), optimization.KindEvaluation, "objective evaluation cancelled").WithComponent("smbo")
	}
}

func (c *Controller) recordFailure(iteration int, p optimization.Point, err error) {
	c.failures = append(c.failures, optimization.EvaluationFailure{
		Iteration: iteration,
		Point:     p.Clone(),
		Reason:    err.Error(),
	})
	c.logger.Warn("objective evaluation failed",
		zap.Int("iteration", iteration),
		zap.Error(err),
	)
}
