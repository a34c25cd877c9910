package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/vk/teeio-validator/internal/result"
)

// Options tune Write.
type Options struct {
	// Command is the argv of the run, printed shell-quoted so the run can be
	// reproduced.
	Command []string

	NoColor bool

	// Verbose prints passing assertions too.
	Verbose bool
}

// CommandLine quotes args so they can be pasted back into a shell.
func CommandLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellescape.Quote(a)
	}
	return strings.Join(quoted, " ")
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(depth int, format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, strings.Repeat("  ", depth)+format+"\n", args...)
}

// Write renders run as an indented tree: suite, configuration, group, case,
// assertion. Every FAILED assertion is printed with its evidence, and each
// level carries its status and totals.
func Write(w io.Writer, run *result.Run, opts Options) error {
	p := newPalette(opts.NoColor)
	ew := &errWriter{w: w}

	if len(opts.Command) > 0 {
		ew.printf(0, "Command: %s", CommandLine(opts.Command))
	}
	ew.printf(0, "%s %s (passed %d, failed %d)", p.heading.Sprint("Run:"), p.status(run.Status()), run.Passed, run.Failed)

	for _, s := range run.Suites {
		ew.printf(0, "%s %s [%s]: %s (passed %d, failed %d)",
			p.heading.Sprint("Suite"), s.Name, s.Category, p.status(s.Status()), s.Passed, s.Failed)
		for _, c := range s.Configs {
			ew.printf(1, "Configuration %s requested=%s resolved=%s: %s (passed %d, failed %d)",
				c.Name, c.Requested, c.Resolved, p.status(c.Status()), c.Passed, c.Failed)
			for _, g := range c.Groups {
				writeGroup(ew, p, g, opts.Verbose)
			}
		}
	}
	return ew.err
}

func writeGroup(ew *errWriter, p *palette, g *result.Group, verbose bool) {
	line := fmt.Sprintf("Group %s: %s (passed %d, failed %d)", g.Topology, p.status(g.Status()), g.Passed, g.Failed)
	if g.Reason != "" {
		line += " - " + g.Reason
	}
	ew.printf(2, "%s", line)
	if g.Setup != result.NotTested || g.Teardown != result.NotTested {
		ew.printf(3, "setup %s, teardown %s", p.status(g.Setup), p.status(g.Teardown))
	}
	for _, it := range g.Items {
		line := fmt.Sprintf("config %s: %s [%s]", it.Name, p.status(it.Status()), itemSlots(p, it))
		if it.Reason != "" {
			line += " - " + it.Reason
		}
		ew.printf(3, "%s", line)
	}
	for _, c := range g.Cases {
		line := fmt.Sprintf("%s %s: %s (passed %d, failed %d)", c.Key(), c.Name, p.status(c.Status()), c.Passed, c.Failed)
		if reason := c.Reason(); reason != "" {
			line += " - " + reason
		}
		ew.printf(3, "%s", line)
		for _, a := range c.Assertions {
			switch {
			case a.Kind == result.KindSeparator:
				if verbose {
					ew.printf(4, "%s", a.Evidence)
				}
			case a.Status == result.Failed || verbose:
				ew.printf(4, "%s #%d %s", p.status(a.Status), a.Ordinal, a.Evidence)
			}
		}
	}
}
