package master

import (
	"fmt"
	"log"
	"time"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
	"pkg.jsn.cam/synthgen/pkg/synthgen/worker"
)

// Unbounded as Config.Count makes a run yield until the caller stops pulling.
const Unbounded = -1

// Reporter observes progress once per yielded item.
// current increases by one per call; total is Unbounded for endless runs.
type Reporter interface {
	Update(current, total int, elapsed time.Duration)
}

// Config holds master configuration
type Config struct {
	Template synthgen.Template
	Factory  synthgen.Factory

	Count   int     // items to yield, or Unbounded
	Workers int     // 0 generates on the calling goroutine
	Seed    *uint64 // master seed; nil draws one from entropy

	Policy  worker.Policy
	OnError worker.ErrorHandler

	// Rate caps task submissions per second. Zero disables throttling.
	Rate float64

	// State is the random state of the sequential-mode producer. It is shared with
	// the caller, and every task restores it before returning. Ignored when Workers > 0.
	State *randstate.State

	Reporter Reporter
	Logger   *log.Logger
}

func (c Config) validate() error {
	switch {
	case c.Factory == nil:
		return fmt.Errorf("%w: no template factory", synthgen.ErrInvalidConfig)
	case c.Count < Unbounded:
		return fmt.Errorf("%w: count must be >= 0, got %d", synthgen.ErrInvalidConfig, c.Count)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0, got %d", synthgen.ErrInvalidConfig, c.Workers)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must be >= 0, got %v", synthgen.ErrInvalidConfig, c.Rate)
	case c.Policy.MaxAttempts < 0:
		return fmt.Errorf("%w: max attempts must be >= 0, got %d", synthgen.ErrInvalidConfig, c.Policy.MaxAttempts)
	}
	return nil
}

func countString(n int) string {
	if n == Unbounded {
		return "unbounded"
	}
	return fmt.Sprintf("%d", n)
}
