package templates

import (
	"context"
	"fmt"
	"math"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

var metricKeys = []string{
	"temperature",
	"humidity",
	"pressure",
	"cpu_usage",
	"memory_usage",
	"disk_io",
	"network_latency",
	"response_time",
	"error_rate",
	"request_count",
}

// Metric is one key:value sample.
type Metric struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Line  string  `json:"line"`
}

// MaxValue generates metric samples for max/average style processing.
type MaxValue struct {
	itemSaver

	keys   []string
	max    float64
	state  *randstate.State
	faults faults
}

// NewMaxValue builds the maxvalue template. key_count limits how many metric keys
// are used; location optionally names a file of keys, one per line.
func NewMaxValue(location string, cfg map[string]any, state *randstate.State) (synthgen.Producer, error) {
	keys, err := loadVocabulary(location, metricKeys)
	if err != nil {
		return nil, err
	}
	keyCount, err := intOption(cfg, "key_count", len(keys))
	if err != nil {
		return nil, err
	}
	if keyCount < 1 {
		return nil, fmt.Errorf("%w: key_count must be >= 1, got %d", synthgen.ErrInvalidConfig, keyCount)
	}
	if keyCount < len(keys) {
		keys = keys[:keyCount]
	}

	maxValue, err := floatOption(cfg, "max_value", 100)
	if err != nil {
		return nil, err
	}
	f, err := newFaults(cfg)
	if err != nil {
		return nil, err
	}
	saver, err := newItemSaver("maxvalue", cfg)
	if err != nil {
		return nil, err
	}

	return &MaxValue{
		itemSaver: saver,
		keys:      keys,
		max:       maxValue,
		state:     state,
		faults:    f,
	}, nil
}

func (g *MaxValue) Generate(ctx context.Context) (any, error) {
	r := g.state.Rand()
	key := pick(r, g.keys)
	// Two decimal places, as the line format shows.
	value := math.Round(r.Float64()*g.max*100) / 100

	if err := g.faults.check(); err != nil {
		return nil, err
	}
	return Metric{Key: key, Value: value, Line: fmt.Sprintf("%s:%.2f", key, value)}, nil
}

func (g *MaxValue) Description() string {
	return "Metric data: key:value (for max/average operations)"
}
