// Package seedseq derives the per-task seed sequence from a master seed.
package seedseq

import (
	"math/rand/v2"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
)

// stream selects the PCG stream used for task seeds.
const stream = 0x5eed

// Sequencer produces tasks with increasing indexes and reproducible seeds.
// Its generator is private: nothing else can advance it, so task seeds depend only on
// the master seed and the task index.
// A Sequencer is NOT safe for concurrent use.
type Sequencer struct {
	master uint64
	rng    *rand.Rand
	next   int
}

// New creates a Sequencer. A nil master seed draws one from runtime entropy.
func New(master *uint64) *Sequencer {
	var seed uint64
	if master != nil {
		seed = *master
	} else {
		seed = rand.Uint64()
	}

	return &Sequencer{
		master: seed,
		rng:    rand.New(rand.NewPCG(seed, stream)),
	}
}

// Next returns the next task.
func (s *Sequencer) Next() synthgen.Task {
	task := synthgen.Task{
		Index: s.next,
		Seed: synthgen.Seed{
			Hi: s.rng.Uint64(),
			Lo: s.rng.Uint64(),
		},
	}
	s.next++
	return task
}

// Issued returns how many tasks have been handed out.
func (s *Sequencer) Issued() int {
	return s.next
}

// Master returns the effective master seed.
func (s *Sequencer) Master() uint64 {
	return s.master
}
