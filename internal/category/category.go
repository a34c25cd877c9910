// Package category defines the contract every protocol category implements
// to plug into the dispatcher, and Table, the declarative implementation
// the bundled categories use.
package category

import (
	"context"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/testctx"
	"github.com/zclconf/go-cty/cty"
)

// Category is the plugin contract.
type Category interface {
	Name() string

	// ConfigurationName returns the name of configuration type t, if the
	// category defines it.
	ConfigurationName(t bitmask.ConfigurationType) (string, bool)

	PrivateFieldNames() []string
	ParsePrivateField(key string, value cty.Value, cfg *config.Configuration) error

	// ConfigurationBitmask is the legal configuration set for a shape.
	ConfigurationBitmask(shape config.TopologyType) bitmask.Bitmap
	ConfigurationFuncs(shape config.TopologyType, t bitmask.ConfigurationType) ConfigurationFuncs
	GroupFuncs(shape config.TopologyType) GroupFuncs
	CaseFuncs(class string, id int) (CaseFuncs, bool)
	CaseName(class string) (CaseClass, bool)

	// CaseClasses lists class names in execution order.
	CaseClasses() []string

	// AllocGroupContext returns a zeroed, tagged group context.
	AllocGroupContext() *testctx.Group

	// SanitizeBitmap sets the category's mandatory bits.
	SanitizeBitmap(b *bitmask.Bitmap)
}

// ConfigurationFuncs drive one configuration variant. Nil hooks succeed
// without doing anything; a nil Support means always supported.
type ConfigurationFuncs struct {
	Support func(ctx context.Context, c *testctx.Config) bool
	Enable  func(ctx context.Context, c *testctx.Config) bool
	Disable func(ctx context.Context, c *testctx.Config) bool
	Check   func(ctx context.Context, c *testctx.Config) bool
}

// GroupFuncs open and release a group's session. Teardown must tolerate a
// partially completed Setup.
type GroupFuncs struct {
	Setup    func(ctx context.Context, g *testctx.Group) bool
	Teardown func(ctx context.Context, g *testctx.Group) bool
}

// SetupResult is the outcome of a case setup hook.
type SetupResult int

const (
	SetupOK SetupResult = iota
	SetupSkip
	SetupFailed
)

func (r SetupResult) String() string {
	switch r {
	case SetupOK:
		return "ok"
	case SetupSkip:
		return "skip"
	}
	return "failed"
}

// CaseFuncs drive one case. Run is required; the others are optional.
//
// A case whose Setup returns SetupSkip is NOT_TESTED with zero counters only
// if Setup records nothing through c.Reporter and Teardown succeeds:
// assertions recorded by Setup still count, and a failed Teardown fails the
// case.
type CaseFuncs struct {
	Setup    func(ctx context.Context, c *testctx.Case) SetupResult
	Run      func(ctx context.Context, c *testctx.Case) bool
	Teardown func(ctx context.Context, c *testctx.Case) bool

	// ConfigCheckRequired makes the dispatcher run every enabled variant's
	// Check hook after the case.
	ConfigCheckRequired bool
}

// CaseClass names a class of cases and the IDs it defines.
type CaseClass struct {
	Name string
	IDs  []int
}

// Has reports whether id belongs to the class.
func (c CaseClass) Has(id int) bool {
	for _, v := range c.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Resolve computes the configuration bitmap that applies to shape. It is
// pure for any category whose SanitizeBitmap is.
func Resolve(cat Category, shape config.TopologyType, requested bitmask.Bitmap) bitmask.Bitmap {
	return bitmask.Resolve(requested, cat.ConfigurationBitmask(shape), cat.SanitizeBitmap)
}

// TypeByName looks up a configuration type by its category name.
func TypeByName(cat Category, name string) (bitmask.ConfigurationType, bool) {
	for t := bitmask.ConfigurationType(0); t < bitmask.MaxTypes; t++ {
		if n, ok := cat.ConfigurationName(t); ok && n == name {
			return t, true
		}
	}
	return 0, false
}
