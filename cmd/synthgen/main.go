package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pkg.jsn.cam/synthgen/pkg/templates"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks command-line mistakes; they exit with exitUsage.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var err error
	if len(args) > 0 && args[0] == "inspect" {
		err = inspect(args[1:], stdout, stderr)
	} else {
		err = generateCommand(ctx, args, stdout, stderr)
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "synthgen: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "synthgen: %v\n", err)
		return exitError
	}
}

// options are the generate command's flags.
type options struct {
	output      string
	count       int
	workers     int
	seed        uint64
	verbose     bool
	progress    bool
	noRetry     bool
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	rate        float64

	set map[string]bool
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("synthgen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.output, "o", "", "Directory path to save data")
	fs.StringVar(&opts.output, "output", "", "Directory path to save data")
	fs.IntVar(&opts.count, "c", 100, "Number of output data, -1 for unbounded")
	fs.IntVar(&opts.count, "count", 100, "Number of output data, -1 for unbounded")
	fs.IntVar(&opts.workers, "w", 0, "Number of workers. If 0, data is generated on the main goroutine")
	fs.IntVar(&opts.workers, "worker", 0, "Number of workers. If 0, data is generated on the main goroutine")
	fs.Uint64Var(&opts.seed, "s", 0, "Random seed (default: from entropy)")
	fs.Uint64Var(&opts.seed, "seed", 0, "Random seed (default: from entropy)")
	fs.BoolVar(&opts.verbose, "v", false, "Print error messages while generating data")
	fs.BoolVar(&opts.verbose, "verbose", false, "Print error messages while generating data")
	fs.BoolVar(&opts.progress, "progress", false, "Print progress bar while generating data")
	fs.BoolVar(&opts.noRetry, "no-retry", false, "Give up on a task after its first failure")
	fs.IntVar(&opts.maxAttempts, "max-attempts", 0, "Attempts per task before giving up (0: unlimited)")
	fs.DurationVar(&opts.backoff, "backoff", 0, "Delay before the first retry, doubled on each further retry")
	fs.DurationVar(&opts.maxBackoff, "max-backoff", 0, "Upper bound on the retry delay (default 30s when -backoff is set)")
	fs.Float64Var(&opts.rate, "rate", 0, "Maximum tasks started per second (0: unlimited)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  synthgen [flags] SCRIPT NAME [CONFIG]\n")
		fmt.Fprintf(stderr, "  synthgen inspect [-n N] DIR\n\n")
		fmt.Fprintf(stderr, "SCRIPT is the template's vocabulary file, or - for the built-in one.\n")
		fmt.Fprintf(stderr, "NAME is one of: %s\n\n", strings.Join(templates.List(), ", "))
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags that may appear before, between or after positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func (o *options) parse(args []string, stderr io.Writer) ([]string, error) {
	fs := newFlagSet(o, stderr)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		o.set[canonical(f.Name)] = true
	})

	if len(positional) < 2 || len(positional) > 3 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected SCRIPT NAME [CONFIG], got %d arguments", errUsage, len(positional))
	}
	return positional, nil
}

var shortNames = map[string]string{
	"o": "output",
	"c": "count",
	"w": "worker",
	"s": "seed",
	"v": "verbose",
}

func canonical(name string) string {
	if long, ok := shortNames[name]; ok {
		return long
	}
	return name
}
