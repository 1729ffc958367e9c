package synthgen

import (
	"context"
	"fmt"

	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

// Seed is a 128-bit task seed.
type Seed struct {
	Hi uint64 `json:"hi"`
	Lo uint64 `json:"lo"`
}

// Low8 returns the lowest 8 bits of the seed.
func (s Seed) Low8() uint8 {
	return uint8(s.Lo)
}

func (s Seed) String() string {
	return fmt.Sprintf("%016x%016x", s.Hi, s.Lo)
}

// Task is one unit of generation work.
type Task struct {
	Index int  `json:"index"`
	Seed  Seed `json:"seed"`
}

// Result is the outcome of running a Task.
// Absent is set when generation did not succeed; Payload is nil in that case.
type Result struct {
	Index    int  `json:"index"`
	Payload  any  `json:"payload,omitempty"`
	Absent   bool `json:"absent,omitempty"`
	Attempts int  `json:"attempts"`
}

// Producer generates one data item per call.
// A Producer is NOT safe for concurrent use; each worker owns its own instance.
type Producer interface {
	Generate(ctx context.Context) (any, error)
}

// Saver is the optional persistence lifecycle a Producer may implement.
// InitSave is called once per run, Save once per yielded item, EndSave once at the end.
type Saver interface {
	InitSave(dir string) error
	Save(dir string, payload any, index int) error
	EndSave(dir string) error
}

// Template references a producer implementation.
type Template struct {
	Location string         // script / resource location, interpretation is up to the factory
	Name     string         // template name
	Config   map[string]any // optional configuration
}

func (t Template) String() string {
	if t.Location == "" {
		return t.Name
	}
	return t.Location + ":" + t.Name
}

// Factory builds a fresh Producer bound to the given random state.
// The producer must draw all of its randomness from state.
type Factory func(tmpl Template, state *randstate.State) (Producer, error)
