package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/teeio-validator/internal/result"
)

// Statuses flattens a run into "config/topology/Class.ID" keys.
func Statuses(run *result.Run) map[string]result.Status {
	out := map[string]result.Status{}
	for _, s := range run.Suites {
		for _, c := range s.Configs {
			for _, g := range c.Groups {
				for _, cs := range g.Cases {
					out[fmt.Sprintf("%s/%s/%s", c.Name, g.Topology, cs.Key())] = cs.Status()
				}
			}
		}
	}
	return out
}

// Cases returns every case result in the run, in dispatch order.
func Cases(run *result.Run) []*result.Case {
	var out []*result.Case
	for _, s := range run.Suites {
		for _, c := range s.Configs {
			for _, g := range c.Groups {
				out = append(out, g.Cases...)
			}
		}
	}
	return out
}

// Groups returns every group result in the run.
func Groups(run *result.Run) []*result.Group {
	var out []*result.Group
	for _, s := range run.Suites {
		for _, c := range s.Configs {
			out = append(out, c.Groups...)
		}
	}
	return out
}

// AssertAllPass fails the test for every case that did not pass, quoting
// its failing evidence.
func AssertAllPass(t *testing.T, run *result.Run) {
	t.Helper()
	assert.NotEmpty(t, Cases(run), "run produced no cases")
	for _, g := range Groups(run) {
		assert.NotEqual(t, result.Failed, g.Setup, "group %s setup failed: %s", g.Topology, g.Reason)
		for _, it := range g.Items {
			assert.Equal(t, result.Pass, it.Status(), "group %s item %s: %s", g.Topology, it.Name, it.Reason)
		}
		for _, c := range g.Cases {
			assert.Equal(t, result.Pass, c.Status(), "%s/%s: %s", g.Topology, c.Key(), Evidence(c))
		}
	}
}

// Evidence joins a case's failing assertions and notes.
func Evidence(c *result.Case) string {
	var parts []string
	for _, a := range c.Assertions {
		if a.Status == result.Failed {
			parts = append(parts, a.Evidence)
		}
	}
	parts = append(parts, c.Notes...)
	return strings.Join(parts, "; ")
}
