// Package randstate holds the random generators a producer draws from and lets a
// runner snapshot, reseed and restore them around a single generation call.
package randstate

import (
	"encoding/binary"
	"math/rand/v2"
)

// chachaSalt decorrelates the ChaCha8 key from the PCG stream seeded with the same value.
const chachaSalt = 0x9e3779b97f4a7c15

// State owns a PCG and a ChaCha8 source and the *rand.Rand views over them.
// The views stay valid across Seed and Restore; only the source state changes.
// A State is NOT safe for concurrent use.
type State struct {
	pcg    *rand.PCG
	chacha *rand.ChaCha8
	rand   *rand.Rand
	strong *rand.Rand
}

// Snapshot is a by-value copy of every generator in a State.
type Snapshot struct {
	pcg    rand.PCG
	chacha rand.ChaCha8
}

// New returns a State seeded from runtime entropy.
func New() *State {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a State seeded deterministically from the 128-bit value hi:lo.
func NewSeeded(hi, lo uint64) *State {
	s := &State{
		pcg:    rand.NewPCG(0, 0),
		chacha: rand.NewChaCha8([32]byte{}),
	}
	s.rand = rand.New(s.pcg)
	s.strong = rand.New(s.chacha)
	s.Seed(hi, lo)
	return s
}

// Rand returns the PCG-backed generator.
func (s *State) Rand() *rand.Rand {
	return s.rand
}

// ChaCha returns the ChaCha8-backed generator.
func (s *State) ChaCha() *rand.Rand {
	return s.strong
}

// Seed re-initialises every generator from the 128-bit value hi:lo.
// Two States seeded with the same value produce bit-identical draws.
func (s *State) Seed(hi, lo uint64) {
	s.pcg.Seed(hi, lo)

	var key [32]byte
	mix := rand.NewPCG(hi^chachaSalt, lo)
	for i := 0; i < len(key); i += 8 {
		binary.LittleEndian.PutUint64(key[i:], mix.Uint64())
	}
	s.chacha.Seed(key)
}

// Capture copies the current state of every generator.
func (s *State) Capture() Snapshot {
	return Snapshot{
		pcg:    *s.pcg,
		chacha: *s.chacha,
	}
}

// Restore overwrites every generator with a previously captured snapshot.
func (s *State) Restore(snap Snapshot) {
	*s.pcg = snap.pcg
	*s.chacha = snap.chacha
}
