package templates

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
)

func intOption(cfg map[string]any, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", synthgen.ErrInvalidConfig, key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", synthgen.ErrInvalidConfig, key, v)
	}
}

func floatOption(cfg map[string]any, key string, def float64) (float64, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", synthgen.ErrInvalidConfig, key, v)
	}
}

func stringOption(cfg map[string]any, key, def string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", synthgen.ErrInvalidConfig, key, v)
	}
	return s, nil
}

func section(cfg map[string]any, key string) (map[string]any, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a mapping, got %T", synthgen.ErrInvalidConfig, key, v)
	}
	return m, nil
}

// loadVocabulary reads newline-separated entries from path, falling back to def
// when no path is given. Blank lines and lines starting with # are skipped.
func loadVocabulary(path string, def []string) ([]string, error) {
	if path == "" || path == "-" {
		return def, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: vocabulary %s is empty", synthgen.ErrInvalidConfig, path)
	}
	return words, nil
}

func pick(r *rand.Rand, words []string) string {
	return words[r.IntN(len(words))]
}

// faults injects transient generation failures. The failure draw comes from a
// private entropy-seeded generator: task seeding never resets it and it never
// touches the shared state, so a retried task can succeed and payloads do not
// depend on whether an attempt failed.
type faults struct {
	rate float64
	rng  *rand.Rand
}

var errInjected = errors.New("injected failure")

func newFaults(cfg map[string]any) (faults, error) {
	rate, err := floatOption(cfg, "failure_rate", 0)
	if err != nil {
		return faults{}, err
	}
	if rate < 0 || rate > 1 {
		return faults{}, fmt.Errorf("%w: failure_rate must be within [0, 1], got %v", synthgen.ErrInvalidConfig, rate)
	}
	if rate == 0 {
		return faults{}, nil
	}
	return faults{
		rate: rate,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

func (f faults) check() error {
	if f.rng != nil && f.rng.Float64() < f.rate {
		return errInjected
	}
	return nil
}
