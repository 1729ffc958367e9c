// Package progress renders generation progress for the CLI.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"pkg.jsn.cam/synthgen/pkg/synthgen/master"
)

var (
	_ master.Reporter = (*Bar)(nil)
	_ master.Reporter = (*Text)(nil)
)

// Reporter is a master.Reporter that must be finished once the run ends.
type Reporter interface {
	master.Reporter
	Finish() error
}

// New returns a Bar when f is a terminal and a Text reporter otherwise.
// total is master.Unbounded for endless runs.
func New(f *os.File, total int) Reporter {
	if IsTerminal(f) {
		return NewBar(f, total)
	}
	return NewText(f, total)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Bar draws an interactive progress bar. An unbounded total draws a spinner.
type Bar struct {
	bar   *progressbar.ProgressBar
	empty bool
}

func NewBar(w io.Writer, total int) *Bar {
	// progressbar also uses -1 for an unknown length.
	bar := progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Generating"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
	return &Bar{bar: bar, empty: total == 0}
}

func (b *Bar) Update(current, total int, elapsed time.Duration) {
	b.bar.Set(current)
}

// Finish completes the bar. An empty run never drew one.
func (b *Bar) Finish() error {
	if b.empty {
		return nil
	}
	return b.bar.Finish()
}

const textWidth = 30

// Text writes a carriage-return progress line: [=====-----] 5/10 - ETA: 1.20s
type Text struct {
	mu    sync.Mutex
	w     io.Writer
	total int
	last  int
}

func NewText(w io.Writer, total int) *Text {
	return &Text{w: w, total: total}
}

func (t *Text) Update(current, total int, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = current
	fmt.Fprintf(t.w, "\r%s", Line(current, total, elapsed))
	if current == total {
		fmt.Fprintln(t.w)
	}
}

// Finish ends the line if the run stopped before reaching its total.
func (t *Text) Finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last > 0 && t.last != t.total {
		_, err := fmt.Fprintln(t.w)
		return err
	}
	return nil
}

// Line formats one progress snapshot.
func Line(current, total int, elapsed time.Duration) string {
	if total == master.Unbounded {
		return fmt.Sprintf("[%s] %d/inf - ETA: inf", strings.Repeat("-", textWidth), current)
	}

	var progress float64
	if total > 0 {
		progress = float64(current) / float64(total)
	}
	filled := int(textWidth * progress)
	if filled > textWidth {
		filled = textWidth
	}
	bar := strings.Repeat("=", filled) + strings.Repeat("-", textWidth-filled)

	var eta time.Duration
	if current > 0 && current < total {
		eta = elapsed / time.Duration(current) * time.Duration(total-current)
	}
	return fmt.Sprintf("[%s] %d/%d - ETA: %s", bar, current, total, formatETA(eta))
}

func formatETA(d time.Duration) string {
	if d > time.Minute {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
