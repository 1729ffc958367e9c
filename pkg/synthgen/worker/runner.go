package worker

import (
	"context"
	"fmt"
	"time"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

// ErrorHandler receives every failed attempt. attempt is 1-based.
// When a bounded policy gives up, it is called once more with an error wrapping
// synthgen.ErrRetriesExhausted.
type ErrorHandler func(task synthgen.Task, attempt int, err error)

// Runner performs isolated generation attempts against one random State.
// A Runner is NOT safe for concurrent use; each worker must have its own Runner.
type Runner struct {
	state   *randstate.State
	policy  Policy
	onError ErrorHandler
}

// NewRunner creates a Runner bound to state. onError may be nil.
func NewRunner(state *randstate.State, policy Policy, onError ErrorHandler) *Runner {
	return &Runner{
		state:   state,
		policy:  policy,
		onError: onError,
	}
}

// State returns the random state the runner isolates.
func (r *Runner) State() *randstate.State {
	return r.state
}

// Run generates the payload for task. Generation errors never escape: they are
// reported to the ErrorHandler and, once the policy gives up, the result is marked
// Absent. The random state is back to its pre-call value when Run returns.
func (r *Runner) Run(ctx context.Context, p synthgen.Producer, task synthgen.Task) synthgen.Result {
	ctx = synthgen.ContextWithTask(ctx, task)

	for attempt := 1; ; attempt++ {
		payload, err := r.attempt(ctx, p, task.Seed)
		if err == nil {
			return synthgen.Result{Index: task.Index, Payload: payload, Attempts: attempt}
		}
		r.report(task, attempt, err)

		if !r.policy.shouldRetry(attempt) {
			if r.policy.Retry {
				r.report(task, attempt, fmt.Errorf("task %d after %d attempts: %w",
					task.Index, attempt, synthgen.ErrRetriesExhausted))
			}
			return synthgen.Result{Index: task.Index, Absent: true, Attempts: attempt}
		}

		if !r.wait(ctx, r.policy.delay(attempt)) {
			return synthgen.Result{Index: task.Index, Absent: true, Attempts: attempt}
		}
	}
}

// attempt runs Generate once with the state seeded from seed and restores it afterwards.
func (r *Runner) attempt(ctx context.Context, p synthgen.Producer, seed synthgen.Seed) (payload any, err error) {
	snap := r.state.Capture()
	defer r.state.Restore(snap)

	defer func() {
		if rec := recover(); rec != nil {
			payload = nil
			err = fmt.Errorf("%w: %v", synthgen.ErrGenerationPanic, rec)
		}
	}()

	r.state.Seed(seed.Hi, seed.Lo)
	return p.Generate(ctx)
}

func (r *Runner) report(task synthgen.Task, attempt int, err error) {
	if r.onError != nil {
		r.onError(task, attempt, err)
	}
}

// wait sleeps for d, returning false if ctx ends first.
func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
