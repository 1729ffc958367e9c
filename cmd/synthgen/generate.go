package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
	"pkg.jsn.cam/synthgen/internal/config"
	"pkg.jsn.cam/synthgen/internal/progress"
	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/master"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
	"pkg.jsn.cam/synthgen/pkg/synthgen/worker"
	"pkg.jsn.cam/synthgen/pkg/templates"
)

// settings is the effective configuration of a generate command, after flags
// have been merged over the config file.
type settings struct {
	Script   string        `yaml:"script"`
	Name     string        `yaml:"name"`
	Config   string        `yaml:"config,omitempty"`
	Output   string        `yaml:"output,omitempty"`
	Count    int           `yaml:"count"`
	Workers  int           `yaml:"workers"`
	Seed     *uint64       `yaml:"seed"`
	Verbose  bool          `yaml:"verbose"`
	Progress bool          `yaml:"progress"`
	Rate     float64       `yaml:"rate,omitempty"`
	Policy   worker.Policy `yaml:"-"`
	Retry    retrySettings `yaml:"retry"`
}

type retrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff,omitempty"`
	MaxBackoff  string `yaml:"max_backoff,omitempty"`
}

// defaultMaxBackoff caps the doubling retry delay when only a backoff is given.
const defaultMaxBackoff = 30 * time.Second

// resolve merges explicitly set flags over the file's generation section.
func resolve(opts *options, positional []string, file *config.Config) (settings, error) {
	gen := file.Generation
	s := settings{
		Script:   positional[0],
		Name:     positional[1],
		Count:    opts.count,
		Workers:  opts.workers,
		Verbose:  gen.Verbose,
		Progress: opts.progress,
		Rate:     gen.Rate,
		Policy:   gen.Retry.Policy(),
		Output:   opts.output,
	}
	if len(positional) == 3 {
		s.Config = positional[2]
	}

	if opts.set["verbose"] {
		s.Verbose = opts.verbose
	}
	if gen.Count != nil && !opts.set["count"] {
		s.Count = *gen.Count
	}
	if gen.Workers != nil && !opts.set["worker"] {
		s.Workers = *gen.Workers
	}
	if gen.Progress != nil && !opts.set["progress"] {
		s.Progress = *gen.Progress
	}
	if opts.set["seed"] {
		seed := opts.seed
		s.Seed = &seed
	} else if gen.Seed != nil {
		s.Seed = gen.Seed
	}
	if opts.set["rate"] {
		s.Rate = opts.rate
	}
	if opts.noRetry {
		s.Policy.Retry = false
	}
	if opts.set["max-attempts"] {
		s.Policy.MaxAttempts = opts.maxAttempts
	}
	if opts.set["backoff"] {
		s.Policy.Backoff = opts.backoff
	}
	if opts.set["max-backoff"] {
		s.Policy.MaxBackoff = opts.maxBackoff
	}
	if s.Policy.Backoff > 0 && s.Policy.MaxBackoff == 0 {
		s.Policy.MaxBackoff = defaultMaxBackoff
	}

	switch {
	case s.Count < master.Unbounded:
		return s, fmt.Errorf("%w: count must be >= 0 or -1, got %d", errUsage, s.Count)
	case s.Workers < 0:
		return s, fmt.Errorf("%w: worker must be >= 0, got %d", errUsage, s.Workers)
	case s.Rate < 0:
		return s, fmt.Errorf("%w: rate must be >= 0, got %v", errUsage, s.Rate)
	case s.Policy.MaxAttempts < 0:
		return s, fmt.Errorf("%w: max-attempts must be >= 0, got %d", errUsage, s.Policy.MaxAttempts)
	case s.Policy.Backoff < 0:
		return s, fmt.Errorf("%w: backoff must be >= 0, got %v", errUsage, s.Policy.Backoff)
	case s.Policy.MaxBackoff < 0:
		return s, fmt.Errorf("%w: max-backoff must be >= 0, got %v", errUsage, s.Policy.MaxBackoff)
	}

	s.Retry = retrySettings{Enabled: s.Policy.Retry, MaxAttempts: s.Policy.MaxAttempts}
	if s.Policy.Backoff > 0 {
		s.Retry.Backoff = s.Policy.Backoff.String()
	}
	if s.Policy.MaxBackoff > 0 {
		s.Retry.MaxBackoff = s.Policy.MaxBackoff.String()
	}
	return s, nil
}

func generateCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	start := time.Now()

	var opts options
	positional, err := opts.parse(args, stderr)
	if err != nil {
		return err
	}

	var configPath string
	if len(positional) == 3 {
		configPath = positional[2]
	}
	file, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	s, err := resolve(&opts, positional, file)
	if err != nil {
		return err
	}
	if err := printSettings(stdout, s, file.Document); err != nil {
		return err
	}

	if err := generate(ctx, s, file.Document, stdout, stderr); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%.2f seconds elapsed\n", time.Since(start).Seconds())
	return nil
}

func printSettings(w io.Writer, s settings, doc map[string]any) error {
	out, err := yaml.Marshal(struct {
		Settings settings       `yaml:"settings"`
		Config   map[string]any `yaml:"config"`
	}{s, doc})
	if err != nil {
		return fmt.Errorf("print settings: %w", err)
	}
	_, err = w.Write(out)
	return err
}

type summary struct {
	generated int
	absent    int
	elapsed   time.Duration
}

func generate(ctx context.Context, s settings, doc map[string]any, stdout, stderr io.Writer) error {
	logger := log.New(stderr, "", log.LstdFlags)
	tmpl := synthgen.Template{Location: s.Script, Name: s.Name, Config: doc}

	cfg := master.Config{
		Template: tmpl,
		Factory:  templates.Factory,
		Count:    s.Count,
		Workers:  s.Workers,
		Seed:     s.Seed,
		Policy:   s.Policy,
		Rate:     s.Rate,
		State:    randstate.New(),
		Logger:   logger,
	}
	if s.Verbose {
		cfg.OnError = func(task synthgen.Task, attempt int, err error) {
			logger.Printf("[WORKER] Task %d (seed %s) attempt %d failed: %v", task.Index, task.Seed, attempt, err)
		}
	}

	var reporter progress.Reporter
	if s.Progress {
		if f, ok := stderr.(*os.File); ok {
			reporter = progress.New(f, s.Count)
		} else {
			reporter = progress.NewText(stderr, s.Count)
		}
		cfg.Reporter = reporter
	}

	m, err := master.New(cfg)
	if err != nil {
		return err
	}
	run, err := m.Start(ctx)
	if err != nil {
		return err
	}
	defer run.Close()

	if s.Verbose {
		for _, id := range run.WorkerIDs() {
			logger.Printf("[MASTER] Worker %s ready", id)
		}
	}

	// Saving uses its own producer so the run's producers only ever generate.
	var saver synthgen.Saver
	if s.Output != "" {
		saver, err = newSaver(tmpl)
		if err != nil {
			return err
		}
		if err := saver.InitSave(s.Output); err != nil {
			return fmt.Errorf("init save: %w", err)
		}
	}

	var sum summary
	var saveErr error
	began := time.Now()
	for index, result := range run.All() {
		if result.Absent {
			sum.absent++
		} else {
			sum.generated++
			if saver != nil {
				if saveErr = saver.Save(s.Output, result.Payload, index); saveErr != nil {
					break
				}
			}
		}

		if !s.Progress {
			fmt.Fprintf(stdout, "Generated %d data (task %d)\n", sum.generated+sum.absent, index)
		}
	}
	runErr := run.Close()
	sum.elapsed = time.Since(began)

	if reporter != nil {
		reporter.Finish()
	}

	var endErr error
	if saver != nil {
		endErr = finishSave(saver, s.Output, saveErr != nil || runErr != nil || ctx.Err() != nil)
	}

	printSummary(stdout, sum)

	if err := errors.Join(saveErr, runErr, endErr); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d items: %w", run.Yielded(), ctx.Err())
	}
	return nil
}

// saveAborter is implemented by savers that can close a run without marking
// it finished.
type saveAborter interface {
	AbortSave(dir string) error
}

// finishSave records the run as finished, unless it stopped early, in which
// case the store is only closed so readers can tell it is incomplete.
func finishSave(saver synthgen.Saver, dir string, stopped bool) error {
	if a, ok := saver.(saveAborter); ok && stopped {
		if err := a.AbortSave(dir); err != nil {
			return fmt.Errorf("abort save: %w", err)
		}
		return nil
	}
	if err := saver.EndSave(dir); err != nil {
		return fmt.Errorf("end save: %w", err)
	}
	return nil
}

func newSaver(tmpl synthgen.Template) (synthgen.Saver, error) {
	p, err := templates.Factory(tmpl, randstate.New())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", synthgen.ErrTemplateConstruction, err)
	}
	saver, ok := p.(synthgen.Saver)
	if !ok {
		return nil, fmt.Errorf("template %s does not support saving", tmpl.Name)
	}
	return saver, nil
}

func printSummary(w io.Writer, sum summary) {
	var perSecond float64
	if secs := sum.elapsed.Seconds(); secs > 0 {
		perSecond = float64(sum.generated) / secs
	}
	fmt.Fprintf(w, "Generated %s items in %s (%s items/s)",
		humanize.Comma(int64(sum.generated)),
		sum.elapsed.Round(time.Millisecond),
		humanize.FtoaWithDigits(perSecond, 1))
	if sum.absent > 0 {
		fmt.Fprintf(w, ", %s absent", humanize.Comma(int64(sum.absent)))
	}
	fmt.Fprintln(w)
}
