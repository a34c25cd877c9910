package result

import (
	"fmt"
	"strings"

	"github.com/vk/teeio-validator/internal/bitmask"
)

// counter is implemented by every node that accumulates pass/fail totals.
type counter interface {
	count(passed, failed int)
}

// Run is the root of the tree.
type Run struct {
	Suites []*Suite
	Passed int
	Failed int
}

func (r *Run) count(p, f int) {
	r.Passed += p
	r.Failed += f
}

// AddSuite appends a suite result.
func (r *Run) AddSuite(name, category string) *Suite {
	s := &Suite{Name: name, Category: category, parent: r}
	r.Suites = append(r.Suites, s)
	return s
}

// Status folds every suite's status.
func (r *Run) Status() Status {
	st := NotTested
	for _, s := range r.Suites {
		st = fold(st, s.Status())
	}
	return st
}

// OK reports whether nothing failed.
func (r *Run) OK() bool {
	return r.Status() != Failed
}

// Suite is the result of one test suite.
type Suite struct {
	Name     string
	Category string
	Configs  []*Config
	Passed   int
	Failed   int
	parent   counter
}

func (s *Suite) count(p, f int) {
	s.Passed += p
	s.Failed += f
	if s.parent != nil {
		s.parent.count(p, f)
	}
}

// AddConfig appends a configuration result.
func (s *Suite) AddConfig(name string, requested, resolved bitmask.Bitmap) *Config {
	c := &Config{Name: name, Requested: requested, Resolved: resolved, parent: s}
	s.Configs = append(s.Configs, c)
	return c
}

// Status folds every configuration's status.
func (s *Suite) Status() Status {
	st := NotTested
	for _, c := range s.Configs {
		st = fold(st, c.Status())
	}
	return st
}

// Config aggregates every group run under one configuration.
type Config struct {
	Name      string
	Requested bitmask.Bitmap
	Resolved  bitmask.Bitmap
	Groups    []*Group
	Passed    int
	Failed    int
	parent    counter
}

func (c *Config) count(p, f int) {
	c.Passed += p
	c.Failed += f
	if c.parent != nil {
		c.parent.count(p, f)
	}
}

// AddGroup appends a group result for a topology.
func (c *Config) AddGroup(topology string) *Group {
	g := &Group{Topology: topology, parent: c}
	c.Groups = append(c.Groups, g)
	return g
}

// Status folds every group's status.
func (c *Config) Status() Status {
	st := NotTested
	for _, g := range c.Groups {
		st = fold(st, g.Status())
	}
	return st
}

// Group is one topology x category session under a configuration.
type Group struct {
	Topology string
	Setup    Status
	Teardown Status

	// Reason explains why the group did not run, or why setup failed.
	Reason string
	Items  []*ConfigItem
	Cases  []*Case
	Passed int
	Failed int
	parent counter
}

func (g *Group) count(p, f int) {
	g.Passed += p
	g.Failed += f
	if g.parent != nil {
		g.parent.count(p, f)
	}
}

// RecordSetup stores the group setup verdict.
func (g *Group) RecordSetup(ok bool, reason string) {
	g.Setup = verdict(ok)
	if !ok {
		g.Reason = reason
	}
}

// RecordTeardown stores the group teardown verdict.
func (g *Group) RecordTeardown(ok bool) {
	g.Teardown = verdict(ok)
}

// Skip marks a group that was never set up.
func (g *Group) Skip(reason string) {
	g.Reason = reason
}

// AddItem appends a configuration item for one variant.
func (g *Group) AddItem(t bitmask.ConfigurationType, name string) *ConfigItem {
	it := &ConfigItem{Type: t, Name: name}
	g.Items = append(g.Items, it)
	return it
}

// Item returns the configuration item for t, or nil.
func (g *Group) Item(t bitmask.ConfigurationType) *ConfigItem {
	for _, it := range g.Items {
		if it.Type == t {
			return it
		}
	}
	return nil
}

// AddCase appends a case result.
func (g *Group) AddCase(class string, id int, name string) *Case {
	c := &Case{Class: class, ID: id, Name: name, parent: g}
	g.Cases = append(g.Cases, c)
	return c
}

// Status is FAILED when setup, teardown, any configuration item or any case
// failed; otherwise PASS if any case passed.
func (g *Group) Status() Status {
	if g.Setup == Failed || g.Teardown == Failed {
		return Failed
	}
	st := NotTested
	for _, it := range g.Items {
		if it.Status() == Failed {
			return Failed
		}
	}
	for _, c := range g.Cases {
		st = fold(st, c.Status())
	}
	return st
}

// Slot selects one of the four configuration hook outcomes.
type Slot int

const (
	SlotSupport Slot = iota
	SlotEnable
	SlotDisable
	SlotCheck
)

func (s Slot) String() string {
	return [...]string{"support", "enable", "disable", "check"}[s]
}

// ConfigItem records the support/enable/disable/check outcomes of one
// configuration variant within a group.
type ConfigItem struct {
	Type    bitmask.ConfigurationType
	Name    string
	Support Status
	Enable  Status
	Disable Status
	Check   Status
	Reason  string
}

// Record folds a hook outcome into its slot. A FAILED slot stays FAILED.
func (it *ConfigItem) Record(slot Slot, ok bool) {
	p := it.slot(slot)
	*p = fold(*p, verdict(ok))
}

// Unsupported records a negative support check without failing the item.
func (it *ConfigItem) Unsupported(reason string) {
	it.Support = NotTested
	it.Reason = reason
}

// Slot returns the status of one slot.
func (it *ConfigItem) Slot(slot Slot) Status {
	return *it.slot(slot)
}

func (it *ConfigItem) slot(slot Slot) *Status {
	switch slot {
	case SlotSupport:
		return &it.Support
	case SlotEnable:
		return &it.Enable
	case SlotDisable:
		return &it.Disable
	default:
		return &it.Check
	}
}

// Status is FAILED if any slot failed, NOT_TESTED unless support passed.
func (it *ConfigItem) Status() Status {
	for _, s := range []Status{it.Support, it.Enable, it.Disable, it.Check} {
		if s == Failed {
			return Failed
		}
	}
	if it.Support != Pass {
		return NotTested
	}
	return Pass
}

// Case is the result of one test case.
type Case struct {
	Class      string
	ID         int
	Name       string
	Assertions []*Assertion
	Passed     int
	Failed     int

	// Notes explain skips and aborts, in the order they happened.
	Notes   []string
	aborted bool
	parent  counter
}

// Key is the class-qualified case identifier, e.g. "Query.1".
func (c *Case) Key() string {
	return fmt.Sprintf("%s.%d", c.Class, c.ID)
}

func (c *Case) count(p, f int) {
	c.Passed += p
	c.Failed += f
	if c.parent != nil {
		c.parent.count(p, f)
	}
}

// Abort marks the case FAILED for a reason outside its assertions, such as a
// setup or configuration failure. Counters are not touched.
func (c *Case) Abort(reason string) {
	c.aborted = true
	c.Notes = append(c.Notes, reason)
}

// Skip records why the case did not run.
func (c *Case) Skip(reason string) {
	c.Notes = append(c.Notes, reason)
}

// Aborted reports whether Abort was called.
func (c *Case) Aborted() bool { return c.aborted }

// Reason joins the case notes.
func (c *Case) Reason() string { return strings.Join(c.Notes, "; ") }

// Status is FAILED if the case aborted or any assertion failed, PASS if at
// least one test assertion passed, NOT_TESTED otherwise.
func (c *Case) Status() Status {
	switch {
	case c.aborted || c.Failed > 0:
		return Failed
	case c.Passed > 0:
		return Pass
	}
	return NotTested
}

func (c *Case) record(kind AssertionKind, st Status, evidence string) *Assertion {
	a := &Assertion{
		Class:    c.Class,
		CaseID:   c.ID,
		Ordinal:  len(c.Assertions) + 1,
		Kind:     kind,
		Status:   st,
		Evidence: evidence,
	}
	c.Assertions = append(c.Assertions, a)
	if kind == KindTest {
		switch st {
		case Pass:
			c.count(1, 0)
		case Failed:
			c.count(0, 1)
		}
	}
	return a
}

// AssertionKind separates counted checks from informational entries.
type AssertionKind int

const (
	KindTest AssertionKind = iota
	KindSeparator
)

// Assertion is a single recorded check inside a case.
type Assertion struct {
	Class    string
	CaseID   int
	Ordinal  int
	Kind     AssertionKind
	Status   Status
	Evidence string
}
