package category

import (
	"errors"
	"fmt"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/testctx"
	"github.com/zclconf/go-cty/cty"
)

// ErrNoPrivateFields is returned by categories that define no private
// configuration knobs.
var ErrNoPrivateFields = errors.New("category defines no private fields")

// Table implements Category from static data.
type Table struct {
	CategoryName string

	// Types holds configuration names indexed by ordinal. Empty entries are
	// gaps.
	Types []string

	PrivateFields []string

	// ParsePrivate is optional; nil means no private fields.
	ParsePrivate func(key string, value cty.Value, cfg *config.Configuration) error

	// Bitmasks is the legal configuration set per shape. Missing shapes
	// allow only the default variant.
	Bitmasks map[config.TopologyType]bitmask.Bitmap

	// Configs returns the hooks for one variant. Nil means no hooks.
	Configs func(shape config.TopologyType, t bitmask.ConfigurationType) ConfigurationFuncs

	Group GroupFuncs

	Classes []Class

	// NewPriv allocates the category payload of a group context.
	NewPriv func() any

	// Sanitize defaults to bitmask.ForceDefault.
	Sanitize func(b *bitmask.Bitmap)
}

// Class is one case class of a Table.
type Class struct {
	Name  string
	Cases []Case
}

// Case is one case of a Class.
type Case struct {
	ID    int
	Funcs CaseFuncs
}

var _ Category = (*Table)(nil)

func (t *Table) Name() string { return t.CategoryName }

func (t *Table) ConfigurationName(ct bitmask.ConfigurationType) (string, bool) {
	if int(ct) >= len(t.Types) || t.Types[ct] == "" {
		return "", false
	}
	return t.Types[ct], true
}

func (t *Table) PrivateFieldNames() []string { return t.PrivateFields }

func (t *Table) ParsePrivateField(key string, value cty.Value, cfg *config.Configuration) error {
	if t.ParsePrivate == nil {
		return fmt.Errorf("%s: %w", t.CategoryName, ErrNoPrivateFields)
	}
	return t.ParsePrivate(key, value, cfg)
}

func (t *Table) ConfigurationBitmask(shape config.TopologyType) bitmask.Bitmap {
	if b, ok := t.Bitmasks[shape]; ok {
		return b
	}
	return bitmask.Bit(bitmask.Default)
}

func (t *Table) ConfigurationFuncs(shape config.TopologyType, ct bitmask.ConfigurationType) ConfigurationFuncs {
	if t.Configs == nil {
		return ConfigurationFuncs{}
	}
	return t.Configs(shape, ct)
}

func (t *Table) GroupFuncs(config.TopologyType) GroupFuncs { return t.Group }

func (t *Table) CaseFuncs(class string, id int) (CaseFuncs, bool) {
	for _, c := range t.Classes {
		if c.Name != class {
			continue
		}
		for _, tc := range c.Cases {
			if tc.ID == id {
				return tc.Funcs, true
			}
		}
	}
	return CaseFuncs{}, false
}

func (t *Table) CaseName(class string) (CaseClass, bool) {
	for _, c := range t.Classes {
		if c.Name == class {
			cc := CaseClass{Name: c.Name}
			for _, tc := range c.Cases {
				cc.IDs = append(cc.IDs, tc.ID)
			}
			return cc, true
		}
	}
	return CaseClass{}, false
}

func (t *Table) CaseClasses() []string {
	names := make([]string, 0, len(t.Classes))
	for _, c := range t.Classes {
		names = append(names, c.Name)
	}
	return names
}

func (t *Table) AllocGroupContext() *testctx.Group {
	var priv any
	if t.NewPriv != nil {
		priv = t.NewPriv()
	}
	return testctx.NewGroup(priv)
}

func (t *Table) SanitizeBitmap(b *bitmask.Bitmap) {
	if t.Sanitize != nil {
		t.Sanitize(b)
		return
	}
	bitmask.ForceDefault(b)
}

// Validate checks the table for mistakes a category author can make.
func (t *Table) Validate() error {
	var errs []error
	if t.CategoryName == "" {
		errs = append(errs, errors.New("category name missing"))
	}
	if len(t.Types) == 0 || t.Types[bitmask.Default] == "" {
		errs = append(errs, fmt.Errorf("%s: default configuration type unnamed", t.CategoryName))
	}
	if len(t.Types) > bitmask.MaxTypes {
		errs = append(errs, fmt.Errorf("%s: %d configuration types exceed %d", t.CategoryName, len(t.Types), bitmask.MaxTypes))
	}
	if len(t.PrivateFields) > 0 && t.ParsePrivate == nil {
		errs = append(errs, fmt.Errorf("%s: private fields declared without a parser", t.CategoryName))
	}
	classes := map[string]bool{}
	for _, c := range t.Classes {
		if classes[c.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate case class %q", t.CategoryName, c.Name))
		}
		classes[c.Name] = true
		ids := map[int]bool{}
		for _, tc := range c.Cases {
			if ids[tc.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate case %s.%d", t.CategoryName, c.Name, tc.ID))
			}
			ids[tc.ID] = true
			if tc.Funcs.Run == nil {
				errs = append(errs, fmt.Errorf("%s: case %s.%d has no run hook", t.CategoryName, c.Name, tc.ID))
			}
		}
	}
	return errors.Join(errs...)
}
