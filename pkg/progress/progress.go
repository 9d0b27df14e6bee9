// Package progress implements the three-phase (Verify/Download/Build)
// progress reporter spec.md §5 requires to be "a serialized channel so
// that progress percentages are totally ordered". Rendering follows the
// percent/byte-count reporting style of itsmenewbie03-greg's downloads
// TUI and jmagar-nugs-cli's video downloader, both of which format byte
// counts with github.com/dustin/go-humanize; the bar is only drawn
// interactively, gated on github.com/mattn/go-isatty the way those
// reference downloaders gate their fancier rendering on a real TTY.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Phase names the three stages a reporter moves through in order.
type Phase string

const (
	PhaseVerify   Phase = "verify"
	PhaseDownload Phase = "download"
	PhaseBuild    Phase = "build"
)

const barWidth = 50

// Update is one progress event, pushed through a single channel so
// percentages are totally ordered regardless of which worker observed
// them (spec.md §5).
type Update struct {
	Phase      Phase
	Completed  int
	Total      int
	Bytes      int64
	TotalBytes int64
}

// Reporter serializes Updates from concurrent fetch workers onto a
// single rendering goroutine.
type Reporter struct {
	out         io.Writer
	interactive bool
	updates     chan Update
	done        chan struct{}
	once        sync.Once
}

// New builds a Reporter writing to out. Pass interactive=true only when
// out is a real terminal (see IsTerminal) — interactive mode redraws a
// single line with \r; non-interactive mode appends one line per
// update, which is what log files and CI output capture expect.
func New(out io.Writer, interactive bool) *Reporter {
	r := &Reporter{
		out:         out,
		interactive: interactive,
		updates:     make(chan Update, 64),
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// IsTerminal reports whether fd (e.g. os.Stdout.Fd()) refers to a real
// terminal, gating whether callers should construct an interactive
// Reporter.
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd)
}

// Report enqueues an update. Safe for concurrent use by multiple
// fetch-pool workers.
func (r *Reporter) Report(u Update) {
	select {
	case r.updates <- u:
	case <-r.done:
	}
}

// Close stops the rendering goroutine and, in interactive mode, prints a
// trailing newline so the final bar isn't left dangling on the same line
// as a future log message.
func (r *Reporter) Close() {
	r.once.Do(func() {
		close(r.updates)
		<-r.done
	})
}

func (r *Reporter) run() {
	defer close(r.done)
	for u := range r.updates {
		r.render(u)
	}
	if r.interactive {
		fmt.Fprintln(r.out)
	}
}

func (r *Reporter) render(u Update) {
	line := formatLine(u)
	if r.interactive {
		fmt.Fprintf(r.out, "\r%s", line)
	} else {
		fmt.Fprintln(r.out, line)
	}
}

func formatLine(u Update) string {
	percent := 0.0
	if u.Total > 0 {
		percent = float64(u.Completed) / float64(u.Total) * 100
	}

	base := fmt.Sprintf("[%s] %-8s %3.0f%% (%d/%d)", renderBar(percent), u.Phase, percent, u.Completed, u.Total)
	if u.TotalBytes > 0 {
		base += fmt.Sprintf(" %s/%s", humanize.Bytes(uint64(u.Bytes)), humanize.Bytes(uint64(u.TotalBytes)))
	}
	return base
}

func renderBar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	b := make([]byte, barWidth)
	for i := range b {
		if i < filled {
			b[i] = '='
		} else {
			b[i] = ' '
		}
	}
	return string(b)
}
