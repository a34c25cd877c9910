package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vk/teeio-validator/internal/dispatcher"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/result"
)

// Console prints live progress. Failing assertions are always printed;
// passing ones only when Verbose is set.
type Console struct {
	dispatcher.NopObserver

	Verbose bool

	mu  sync.Mutex
	out io.Writer
	p   *palette
}

var _ dispatcher.Observer = (*Console)(nil)

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer, noColor bool) *Console {
	return &Console{out: out, p: newPalette(noColor)}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) SuiteStarted(s *result.Suite) {
	c.printf("%s\n", c.p.heading.Sprintf("=== suite %s (%s)", s.Name, s.Category))
}

func (c *Console) SuiteFinished(s *result.Suite) {
	c.printf("=== suite %s: %s (passed %d, failed %d)\n", s.Name, c.p.status(s.Status()), s.Passed, s.Failed)
}

func (c *Console) GroupStarted(cfg *result.Config, g *result.Group) {
	c.printf("--- %s on %s\n", cfg.Name, g.Topology)
}

func (c *Console) GroupFinished(cfg *result.Config, g *result.Group) {
	if g.Setup == result.Failed || g.Teardown == result.Failed {
		c.printf("  group %s/%s: setup %s, teardown %s\n", cfg.Name, g.Topology, c.p.status(g.Setup), c.p.status(g.Teardown))
	}
	for _, it := range g.Items {
		if it.Status() == result.Failed {
			c.printf("  configuration %s: %s\n", it.Name, itemSlots(c.p, it))
		}
	}
}

func (c *Console) CaseStarted(id filter.CaseID) {
	c.printf("[%s]\n", id)
}

func (c *Console) AssertionRecorded(_ filter.CaseID, a *result.Assertion) {
	switch {
	case a.Kind == result.KindSeparator:
		if c.Verbose {
			c.printf("    %s\n", a.Evidence)
		}
	case a.Status == result.Failed:
		for _, line := range strings.Split(a.Evidence, "\n") {
			c.printf("    %s #%d %s\n", c.p.status(a.Status), a.Ordinal, line)
		}
	case c.Verbose:
		c.printf("    %s #%d %s\n", c.p.status(a.Status), a.Ordinal, a.Evidence)
	}
}

func (c *Console) CaseFinished(id filter.CaseID, cs *result.Case) {
	st := cs.Status()
	if reason := cs.Reason(); reason != "" {
		c.printf("  %s: %s (%s)\n", c.p.status(st), id, reason)
		return
	}
	c.printf("  %s: %s\n", c.p.status(st), id)
}

func itemSlots(p *palette, it *result.ConfigItem) string {
	parts := make([]string, 0, 4)
	for _, slot := range []result.Slot{result.SlotSupport, result.SlotEnable, result.SlotDisable, result.SlotCheck} {
		parts = append(parts, fmt.Sprintf("%s=%s", slot, p.status(it.Slot(slot))))
	}
	return strings.Join(parts, " ")
}
