// Package worker runs generation tasks: Runner isolates a single task, Node is one
// pool member that owns a producer and its random state.
package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

// Config holds worker configuration
type Config struct {
	Template synthgen.Template
	Factory  synthgen.Factory
	Policy   Policy
	OnError  ErrorHandler
	Logger   *log.Logger
	State    *randstate.State // nil creates a fresh entropy-seeded state
}

// Node represents a worker node
type Node struct {
	id       string
	producer synthgen.Producer
	runner   *Runner
	logger   *log.Logger
}

// NewNode builds the node's producer. A construction failure is returned wrapped in
// synthgen.ErrTemplateConstruction and is not retried.
func NewNode(cfg Config) (*Node, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("%w: no template factory", synthgen.ErrInvalidConfig)
	}

	state := cfg.State
	if state == nil {
		state = randstate.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	producer, err := cfg.Factory(cfg.Template, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", synthgen.ErrTemplateConstruction, cfg.Template, err)
	}

	return &Node{
		id:       uuid.New().String(),
		producer: producer,
		runner:   NewRunner(state, cfg.Policy, cfg.OnError),
		logger:   logger,
	}, nil
}

// ID returns the node's unique identifier.
func (n *Node) ID() string {
	return n.id
}

// Producer returns the node's producer instance.
func (n *Node) Producer() synthgen.Producer {
	return n.producer
}

// Process runs a single task on this node.
func (n *Node) Process(ctx context.Context, task synthgen.Task) synthgen.Result {
	return n.runner.Run(ctx, n.producer, task)
}

// Serve processes tasks until ctx is done or tasks is closed.
// Each task's result is sent on results before the next task is received.
func (n *Node) Serve(ctx context.Context, tasks <-chan synthgen.Task, results chan<- synthgen.Result) error {
	processed := 0
	defer func() {
		n.logger.Printf("[WORKER:%s] Stopped after %d tasks", n.id, processed)
	}()

	for {
		var task synthgen.Task
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-tasks:
			if !ok {
				return nil
			}
			task = t
		}

		result := n.Process(ctx, task)

		select {
		case <-ctx.Done():
			return nil
		case results <- result:
			processed++
		}
	}
}
