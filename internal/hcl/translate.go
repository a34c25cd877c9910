package hcl

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/schema"
)

func enabled(b *bool) bool {
	return b == nil || *b
}

// translate converts the merged schema into the catalog, resolving every
// name reference. All problems are reported together.
func translate(f *schema.File, evalCtx *hcl.EvalContext) (*config.Catalog, error) {
	var errs problems
	cat := &config.Catalog{}

	for _, p := range f.Ports {
		if cat.Port(p.Name) != nil {
			errs.add("duplicate port %q", p.Name)
			continue
		}
		role, err := config.ParsePortRole(p.Role)
		if err != nil {
			errs.add("port %q: %v", p.Name, err)
		}
		bdf, err := pcie.ParseBDF(p.BDF)
		if err != nil {
			errs.add("port %q: %v", p.Name, err)
		}
		cat.Ports = append(cat.Ports, &config.Port{Name: p.Name, Enabled: enabled(p.Enabled), Role: role, BDF: bdf})
	}

	for _, s := range f.Switches {
		if cat.Switch(s.Name) != nil {
			errs.add("duplicate switch %q", s.Name)
			continue
		}
		sw := &config.Switch{Name: s.Name}
		for _, name := range s.Ports {
			if p := cat.Port(name); p != nil {
				sw.Ports = append(sw.Ports, p)
			} else {
				errs.add("switch %q: unknown port %q", s.Name, name)
			}
		}
		cat.Switches = append(cat.Switches, sw)
	}

	for _, t := range f.Topologies {
		if cat.Topology(t.Name) != nil {
			errs.add("duplicate topology %q", t.Name)
			continue
		}
		cat.Topologies = append(cat.Topologies, translateTopology(cat, t, &errs))
	}

	for _, c := range f.Configurations {
		if cat.Configuration(c.Name) != nil {
			errs.add("duplicate configuration %q", c.Name)
			continue
		}
		cat.Configurations = append(cat.Configurations, translateConfiguration(c, evalCtx, &errs))
	}

	for _, s := range f.Suites {
		if cat.Suite(s.Name) != nil {
			errs.add("duplicate suite %q", s.Name)
			continue
		}
		cat.Suites = append(cat.Suites, translateSuite(cat, s, &errs))
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return cat, nil
}

func translateTopology(cat *config.Catalog, t *schema.Topology, errs *problems) *config.Topology {
	out := &config.Topology{Name: t.Name, Enabled: enabled(t.Enabled)}

	var err error
	if out.Type, err = config.ParseTopologyType(t.Type); err != nil {
		errs.add("topology %q: %v", t.Name, err)
	}
	if t.Connection != "" {
		if out.Connection, err = config.ParseConnectionShape(t.Connection); err != nil {
			errs.add("topology %q: %v", t.Name, err)
		}
	}

	port := func(role, name string) *config.Port {
		p := cat.Port(name)
		if p == nil {
			errs.add("topology %q: unknown %s %q", t.Name, role, name)
		}
		return p
	}
	out.Root = port("root_port", t.RootPort)
	out.Lower = port("lower_port", t.LowerPort)
	out.Upper = out.Root
	if t.UpperPort != "" {
		out.Upper = port("upper_port", t.UpperPort)
	}

	for _, h := range t.Hops {
		sw := cat.Switch(h.Switch)
		if sw == nil {
			errs.add("topology %q: unknown switch %q", t.Name, h.Switch)
			continue
		}
		hop := &config.SwitchHop{Switch: sw, Upper: member(sw, h.Upper), Lower: member(sw, h.Lower)}
		if hop.Upper == nil || hop.Lower == nil {
			errs.add("topology %q: hop ports %q and %q must belong to switch %q", t.Name, h.Upper, h.Lower, sw.Name)
			continue
		}
		out.Hops = append(out.Hops, hop)
	}
	return out
}

// member returns the port of sw called name.
func member(sw *config.Switch, name string) *config.Port {
	for _, p := range sw.Ports {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func translateConfiguration(c *schema.Configuration, evalCtx *hcl.EvalContext, errs *problems) *config.Configuration {
	out := &config.Configuration{
		Name:      c.Name,
		Enabled:   enabled(c.Enabled),
		Category:  c.Category,
		TypeNames: c.Types,
	}
	var err error
	if out.TopologyType, err = config.ParseTopologyType(c.TopologyType); err != nil {
		errs.add("configuration %q: %v", c.Name, err)
	}
	if c.Private != nil {
		out.PrivateFields = privateFields(c, evalCtx, errs)
	}
	return out
}

// privateFields evaluates the private block's attributes in declaration
// order. Only the env variable is in scope.
func privateFields(c *schema.Configuration, evalCtx *hcl.EvalContext, errs *problems) []config.PrivateField {
	attrs, diags := c.Private.Body.JustAttributes()
	if diags.HasErrors() {
		errs.add("configuration %q: private: %v", c.Name, diags)
		return nil
	}
	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte })

	var out []config.PrivateField
	for _, a := range ordered {
		val, diags := a.Expr.Value(evalCtx)
		if diags.HasErrors() {
			errs.add("configuration %q: private %q: %v", c.Name, a.Name, diags)
			continue
		}
		out = append(out, config.PrivateField{Key: a.Name, Value: val})
	}
	return out
}

func translateSuite(cat *config.Catalog, s *schema.Suite, errs *problems) *config.TestSuite {
	out := &config.TestSuite{Name: s.Name, Enabled: enabled(s.Enabled), Category: s.Category}
	for _, name := range s.Topologies {
		if t := cat.Topology(name); t != nil {
			out.Topologies = append(out.Topologies, t)
		} else {
			errs.add("suite %q: unknown topology %q", s.Name, name)
		}
	}
	for _, name := range s.Configurations {
		if c := cat.Configuration(name); c != nil {
			out.Configurations = append(out.Configurations, c)
		} else {
			errs.add("suite %q: unknown configuration %q", s.Name, name)
		}
	}
	for _, c := range s.Cases {
		out.Cases = append(out.Cases, config.CaseSelector{Class: c.Class, IDs: c.IDs})
	}
	return out
}
