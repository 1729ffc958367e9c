package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

func TestActionCount(t *testing.T) {
	t.Parallel()

	state := randstate.NewSeeded(3, 4)
	p, err := NewActionCount("", map[string]any{"user_count": 5}, state)
	if err != nil {
		t.Fatalf("NewActionCount failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		v, err := p.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		event := v.(ActionEvent)
		if !strings.HasPrefix(event.User, userPrefix) {
			t.Errorf("unexpected user %q", event.User)
		}
		if event.User >= "user_5" {
			t.Errorf("user %q outside user_count", event.User)
		}
		if event.Line != event.User+" did "+event.Action {
			t.Errorf("line %q does not match event", event.Line)
		}
	}
}

func TestActionCountVocabularyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "actions.txt")
	if err := os.WriteFile(path, []byte("# actions\njumped\n\n  slept  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewActionCount(path, nil, randstate.New())
	if err != nil {
		t.Fatalf("NewActionCount failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		v, _ := p.Generate(context.Background())
		if action := v.(ActionEvent).Action; action != "jumped" && action != "slept" {
			t.Errorf("action %q not from vocabulary", action)
		}
	}
}

func TestVocabularyErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewMaxValue(empty, nil, randstate.New()); !errors.Is(err, synthgen.ErrInvalidConfig) {
		t.Errorf("empty vocabulary: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewURLDedup(filepath.Join(dir, "missing.txt"), nil, randstate.New()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing vocabulary: expected ErrNotExist, got %v", err)
	}
}

func TestMaxValue(t *testing.T) {
	t.Parallel()

	p, err := NewMaxValue("", map[string]any{"key_count": 2, "max_value": 10}, randstate.New())
	if err != nil {
		t.Fatalf("NewMaxValue failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		v, _ := p.Generate(context.Background())
		m := v.(Metric)
		if m.Key != metricKeys[0] && m.Key != metricKeys[1] {
			t.Errorf("key %q outside key_count", m.Key)
		}
		if m.Value < 0 || m.Value > 10 {
			t.Errorf("value %v outside [0, 10]", m.Value)
		}
		if !strings.HasPrefix(m.Line, m.Key+":") {
			t.Errorf("line %q does not match key", m.Line)
		}
	}
}

func TestURLDedupRepeats(t *testing.T) {
	t.Parallel()

	p, err := NewURLDedup("", nil, randstate.New())
	if err != nil {
		t.Fatalf("NewURLDedup failed: %v", err)
	}

	seen := make(map[string]int)
	for i := 0; i < 2000; i++ {
		v, _ := p.Generate(context.Background())
		rec := v.(URLRecord)
		if !strings.HasPrefix(rec.URL, "https://"+rec.Domain) {
			t.Fatalf("url %q does not start with domain %q", rec.URL, rec.Domain)
		}
		seen[rec.URL]++
	}
	// 10 domains x 13 paths x 6 params bounds the distinct URLs.
	if len(seen) > len(domains)*len(paths)*len(params) {
		t.Errorf("too many distinct urls: %d", len(seen))
	}
	if len(seen) == 2000 {
		t.Error("expected repeated urls")
	}
}

func TestFailureRate(t *testing.T) {
	t.Parallel()

	t.Run("AlwaysFails", func(t *testing.T) {
		p, err := NewActionCount("", map[string]any{"failure_rate": 1.0}, randstate.New())
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 10; i++ {
			if _, err := p.Generate(context.Background()); !errors.Is(err, errInjected) {
				t.Fatalf("expected injected failure, got %v", err)
			}
		}
	})

	t.Run("RetrySucceedsWithSamePayload", func(t *testing.T) {
		state := randstate.New()
		p, err := NewActionCount("", map[string]any{"failure_rate": 0.5}, state)
		if err != nil {
			t.Fatal(err)
		}
		clean, _ := NewActionCount("", nil, randstate.New())

		state.Seed(9, 9)
		for {
			v, err := p.Generate(context.Background())
			if err == nil {
				cleanState := clean.(*ActionCount).state
				cleanState.Seed(9, 9)
				want, _ := clean.Generate(context.Background())
				if v != want {
					t.Errorf("payload %v differs from failure-free %v", v, want)
				}
				return
			}
			state.Seed(9, 9)
		}
	})
}
