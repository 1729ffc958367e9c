package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"pkg.jsn.cam/synthgen/pkg/templates"
)

var errStopListing = errors.New("stop listing")

// inspect prints the metadata of a saved run and its first items.
func inspect(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("n", 5, "Number of items to print")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: synthgen inspect [-n N] DIR\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("%w: expected DIR", errUsage)
	}
	dir := fs.Arg(0)

	run, err := templates.OpenSaved(dir)
	if err != nil {
		return err
	}
	defer run.Close()

	count, err := run.Count()
	if err != nil {
		return err
	}

	info := run.Info
	fmt.Fprintf(stdout, "Run Details:\n")
	fmt.Fprintf(stdout, "  ID:        %s\n", info.RunID)
	fmt.Fprintf(stdout, "  Template:  %s\n", info.Template)
	fmt.Fprintf(stdout, "  Version:   %s\n", info.Version)
	fmt.Fprintf(stdout, "  Items:     %s\n", humanize.Comma(int64(count)))
	fmt.Fprintf(stdout, "  Started:   %s (%s)\n", info.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(info.StartedAt))
	fmt.Fprintf(stdout, "  Duration:  %v\n", info.FinishedAt.Sub(info.StartedAt))
	if stat, err := os.Stat(filepath.Join(dir, templates.StoreFile)); err == nil {
		fmt.Fprintf(stdout, "  Size:      %s\n", humanize.Bytes(uint64(stat.Size())))
	}

	if *limit <= 0 || count == 0 {
		return nil
	}

	fmt.Fprintf(stdout, "\nItems:\n")
	shown := 0
	err = run.Each(func(index int, raw []byte) error {
		if shown == *limit {
			return errStopListing
		}
		fmt.Fprintf(stdout, "  %6d  %s\n", index, raw)
		shown++
		return nil
	})
	if err != nil && !errors.Is(err, errStopListing) {
		return err
	}
	if count > shown {
		fmt.Fprintf(stdout, "  ... %s more\n", humanize.Comma(int64(count-shown)))
	}
	return nil
}
