// Package master drives generation runs: it hands out seeded tasks, either to a
// single in-place producer or to a pool of workers, and yields their results.
package master

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/seedseq"
	"pkg.jsn.cam/synthgen/pkg/synthgen/worker"
)

// Master starts generation runs from a fixed configuration.
type Master struct {
	cfg    Config
	logger *log.Logger
}

// New validates cfg and creates a Master.
func New(cfg Config) (*Master, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Master{cfg: cfg, logger: logger}, nil
}

// Run is a single generation run. Iterate it with All and release it with Close.
type Run struct {
	cfg    Config
	logger *log.Logger
	seq    *seedseq.Sequencer

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	nodes   []*worker.Node
	tasks   chan synthgen.Task
	results chan synthgen.Result
	limiter *rate.Limiter

	start     time.Time
	submitted int
	yielded   atomic.Int64
	iterating atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// Start builds every producer the run needs and, in pooled mode, starts the workers.
// A producer construction failure aborts the run and is returned wrapped in
// synthgen.ErrTemplateConstruction.
func (m *Master) Start(ctx context.Context) (*Run, error) {
	runCtx, cancel := context.WithCancel(ctx)

	r := &Run{
		cfg:    m.cfg,
		logger: m.logger,
		seq:    seedseq.New(m.cfg.Seed),
		ctx:    runCtx,
		cancel: cancel,
	}

	if m.cfg.Rate > 0 {
		burst := int(m.cfg.Rate)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(m.cfg.Rate), burst)
	}

	nodeCount := m.cfg.Workers
	if nodeCount == 0 {
		nodeCount = 1
	}

	for i := 0; i < nodeCount; i++ {
		nodeCfg := worker.Config{
			Template: m.cfg.Template,
			Factory:  m.cfg.Factory,
			Policy:   m.cfg.Policy,
			OnError:  m.cfg.OnError,
			Logger:   m.logger,
		}
		if m.cfg.Workers == 0 {
			nodeCfg.State = m.cfg.State
		}

		node, err := worker.NewNode(nodeCfg)
		if err != nil {
			cancel()
			return nil, err
		}
		r.nodes = append(r.nodes, node)
	}

	m.logger.Printf("[MASTER] Starting run: template %s, workers %d, count %s, master seed %d",
		m.cfg.Template, m.cfg.Workers, countString(m.cfg.Count), r.seq.Master())

	if m.cfg.Workers > 0 {
		r.tasks = make(chan synthgen.Task, m.cfg.Workers)
		r.results = make(chan synthgen.Result, m.cfg.Workers)

		var gctx context.Context
		r.group, gctx = errgroup.WithContext(runCtx)
		r.ctx = gctx
		for _, node := range r.nodes {
			r.group.Go(func() error {
				m.logger.Printf("[WORKER:%s] Starting worker", node.ID())
				return node.Serve(gctx, r.tasks, r.results)
			})
		}
	}

	r.start = time.Now()
	return r, nil
}

// Generate runs a whole generation and calls fn for every result.
// It stops at the first error from fn, or with ctx's error if ctx ends first.
func (m *Master) Generate(ctx context.Context, fn func(index int, result synthgen.Result) error) error {
	run, err := m.Start(ctx)
	if err != nil {
		return err
	}

	for index, result := range run.All() {
		if err := fn(index, result); err != nil {
			return errors.Join(err, run.Close())
		}
	}

	if err := run.Close(); err != nil {
		return err
	}
	if m.cfg.Count == Unbounded || run.Yielded() < m.cfg.Count {
		return ctx.Err()
	}
	return nil
}

// MasterSeed returns the seed the task sequence was derived from.
func (r *Run) MasterSeed() uint64 {
	return r.seq.Master()
}

// WorkerIDs returns the IDs of the run's worker nodes.
func (r *Run) WorkerIDs() []string {
	ids := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		ids[i] = n.ID()
	}
	return ids
}

// Yielded returns how many results have been handed to the caller.
func (r *Run) Yielded() int {
	return int(r.yielded.Load())
}

// All yields (task index, result) pairs. In sequential mode they arrive in index
// order; in pooled mode they arrive in completion order. The run is closed when the
// sequence ends or the caller stops early. All may be iterated only once.
func (r *Run) All() iter.Seq2[int, synthgen.Result] {
	return func(yield func(int, synthgen.Result) bool) {
		defer r.Close()

		if r.iterating.Swap(true) {
			r.logger.Printf("[MASTER] Run already iterated: %v", synthgen.ErrRunClosed)
			return
		}

		if r.cfg.Workers == 0 {
			r.runSequential(yield)
		} else {
			r.runPooled(yield)
		}
	}
}

// Close cancels the run and waits for every worker to exit. It is safe to call more
// than once.
func (r *Run) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		if r.group != nil {
			r.closeErr = r.group.Wait()
		}
		r.logger.Printf("[MASTER] Run finished: %d items in %v", r.Yielded(), time.Since(r.start).Round(time.Millisecond))
	})
	return r.closeErr
}

func (r *Run) runSequential(yield func(int, synthgen.Result) bool) {
	node := r.nodes[0]

	for r.more() {
		if !r.throttle() {
			return
		}
		task := r.seq.Next()
		r.submitted++

		result := node.Process(r.ctx, task)
		if r.ctx.Err() != nil {
			return
		}
		if !r.deliver(result, yield) {
			return
		}
	}
}

func (r *Run) runPooled(yield func(int, synthgen.Result) bool) {
	prime := r.cfg.Workers
	if r.cfg.Count != Unbounded && r.cfg.Count < prime {
		prime = r.cfg.Count
	}
	for i := 0; i < prime; i++ {
		if !r.submit() {
			return
		}
	}

	for r.more() {
		var result synthgen.Result
		select {
		case <-r.ctx.Done():
			return
		case result = <-r.results:
		}

		if r.cfg.Count == Unbounded || r.submitted < r.cfg.Count {
			if !r.submit() {
				return
			}
		}

		if !r.deliver(result, yield) {
			return
		}
	}
}

// more reports whether the caller is still owed results.
func (r *Run) more() bool {
	return r.cfg.Count == Unbounded || r.Yielded() < r.cfg.Count
}

// submit queues the next task for the pool.
func (r *Run) submit() bool {
	if !r.throttle() {
		return false
	}

	task := r.seq.Next()
	select {
	case <-r.ctx.Done():
		return false
	case r.tasks <- task:
		r.submitted++
		return true
	}
}

func (r *Run) throttle() bool {
	if r.limiter == nil {
		return r.ctx.Err() == nil
	}
	if err := r.limiter.Wait(r.ctx); err != nil {
		return false
	}
	return true
}

func (r *Run) deliver(result synthgen.Result, yield func(int, synthgen.Result) bool) bool {
	n := int(r.yielded.Add(1))
	if r.cfg.Reporter != nil {
		r.cfg.Reporter.Update(n, r.cfg.Count, time.Since(r.start))
	}
	return yield(result.Index, result)
}

func (r *Run) String() string {
	return fmt.Sprintf("run(seed=%d, workers=%d, yielded=%d)", r.MasterSeed(), r.cfg.Workers, r.Yielded())
}
