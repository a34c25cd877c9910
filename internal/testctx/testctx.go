// Package testctx defines the runtime contexts handed to category hooks.
//
// Hooks receive concrete context types, so a wrong-kind handle does not
// compile. Each context still carries a kind signature; Validate checks it
// together with the pointers the dispatcher guarantees, and panics with a
// StructuralViolation when the object graph is inconsistent.
package testctx

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/confirm"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/result"
)

// Kind distinguishes the four context variants.
type Kind uint32

// Signatures are four-character tags, kept numeric so a zeroed context never
// validates.
const (
	KindSuite  Kind = 0x54495553 // "SUIT"
	KindGroup  Kind = 0x50524f47 // "GROP"
	KindConfig Kind = 0x47464e43 // "CNFG"
	KindCase   Kind = 0x45534143 // "CASE"
)

func (k Kind) String() string {
	switch k {
	case KindSuite:
		return "suite"
	case KindGroup:
		return "group"
	case KindConfig:
		return "config"
	case KindCase:
		return "case"
	}
	return fmt.Sprintf("Kind(%#08x)", uint32(k))
}

// StructuralViolation reports an inconsistent context graph. It is raised
// with panic and recovered by the dispatcher, which aborts the run.
type StructuralViolation struct {
	Want   Kind
	Got    Kind
	Reason string
}

func (e *StructuralViolation) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("structural violation in %s context: %s", e.Want, e.Reason)
	}
	return fmt.Sprintf("structural violation: expected %s context, got %s", e.Want, e.Got)
}

// Violate panics with a StructuralViolation.
func Violate(want Kind, format string, args ...any) {
	panic(&StructuralViolation{Want: want, Got: want, Reason: fmt.Sprintf(format, args...)})
}

// Handle is implemented by every context.
type Handle interface {
	Kind() Kind
	Validate()
}

func check(want, got Kind) {
	if want != got {
		panic(&StructuralViolation{Want: want, Got: got})
	}
}

// Suite lives for one suite run.
type Suite struct {
	signature Kind

	Catalog   *config.Catalog
	Suite     *config.TestSuite
	Category  string
	Platform  platform.Platform
	Confirmer confirm.Confirmer
	Result    *result.Suite
}

// NewSuite returns a tagged suite context.
func NewSuite(cat *config.Catalog, s *config.TestSuite, p platform.Platform, c confirm.Confirmer, r *result.Suite) *Suite {
	return &Suite{signature: KindSuite, Catalog: cat, Suite: s, Category: s.Category, Platform: p, Confirmer: c, Result: r}
}

func (s *Suite) Kind() Kind { return s.signature }

func (s *Suite) Validate() {
	if s == nil {
		Violate(KindSuite, "nil suite context")
	}
	check(KindSuite, s.signature)
	if s.Catalog == nil || s.Suite == nil {
		Violate(KindSuite, "catalog or suite missing")
	}
	if s.Platform == nil || s.Confirmer == nil || s.Result == nil {
		Violate(KindSuite, "platform, confirmer or result missing")
	}
}

// Group is the per (topology, category) session state. Categories allocate
// it through NewGroup with their private payload; the dispatcher fills in
// the rest before group setup.
type Group struct {
	signature Kind

	Suite    *Suite
	Topology *config.Topology
	Ports    *platform.Ports
	Result   *result.Group

	// Priv is the category-private payload.
	Priv any
}

// NewGroup returns a zeroed, tagged group context carrying priv.
func NewGroup(priv any) *Group {
	return &Group{signature: KindGroup, Priv: priv}
}

func (g *Group) Kind() Kind { return g.signature }

func (g *Group) Validate() {
	if g == nil {
		Violate(KindGroup, "nil group context")
	}
	check(KindGroup, g.signature)
	if g.Topology == nil || g.Result == nil {
		Violate(KindGroup, "topology or result missing")
	}
	g.Suite.Validate()
}

// Shape is the topology type the group runs against.
func (g *Group) Shape() config.TopologyType { return g.Topology.Type }

// Private returns the group's category payload as T, panicking with a
// StructuralViolation if it holds something else.
func Private[T any](g *Group) T {
	p, ok := g.Priv.(T)
	if !ok {
		var zero T
		Violate(KindGroup, "private payload is %T, want %T", g.Priv, zero)
	}
	return p
}

// Config wraps one configuration hook call.
type Config struct {
	signature Kind

	Group         *Group
	Configuration *config.Configuration
	Type          bitmask.ConfigurationType
	Resolved      bitmask.Bitmap
	Item          *result.ConfigItem
}

// NewConfig returns a tagged configuration context.
func NewConfig(g *Group, cfg *config.Configuration, t bitmask.ConfigurationType, resolved bitmask.Bitmap, it *result.ConfigItem) *Config {
	return &Config{signature: KindConfig, Group: g, Configuration: cfg, Type: t, Resolved: resolved, Item: it}
}

func (c *Config) Kind() Kind { return c.signature }

func (c *Config) Validate() {
	if c == nil {
		Violate(KindConfig, "nil config context")
	}
	check(KindConfig, c.signature)
	if c.Configuration == nil || c.Item == nil {
		Violate(KindConfig, "configuration or item missing")
	}
	c.Group.Validate()
}

// Case wraps one case hook call.
type Case struct {
	signature Kind

	Group         *Group
	Configuration *config.Configuration
	Resolved      bitmask.Bitmap
	Class         string
	ID            int
	Reporter      *result.CaseReporter
}

// NewCase returns a tagged case context.
func NewCase(g *Group, cfg *config.Configuration, resolved bitmask.Bitmap, class string, id int, r *result.CaseReporter) *Case {
	return &Case{signature: KindCase, Group: g, Configuration: cfg, Resolved: resolved, Class: class, ID: id, Reporter: r}
}

func (c *Case) Kind() Kind { return c.signature }

func (c *Case) Validate() {
	if c == nil {
		Violate(KindCase, "nil case context")
	}
	check(KindCase, c.signature)
	if c.Configuration == nil || c.Reporter == nil {
		Violate(KindCase, "configuration or reporter missing")
	}
	c.Group.Validate()
}

// Confirm asks the operator to acknowledge prompt.
func (c *Case) Confirm(ctx context.Context, prompt string) error {
	return c.Group.Suite.Confirmer.Confirm(ctx, prompt)
}

// As converts a type-erased handle to the context type T, verifying the
// signature first.
func As[T Handle](h Handle, want Kind) T {
	if h == nil {
		Violate(want, "nil handle")
	}
	check(want, h.Kind())
	t, ok := h.(T)
	if !ok {
		Violate(want, "handle is %T", h)
	}
	return t
}
