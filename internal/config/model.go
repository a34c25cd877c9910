package config

import (
	"errors"
	"fmt"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/zclconf/go-cty/cty"
)

// Catalog is the static description of everything a run may touch. Slices
// keep declaration order, which is also the dispatch and report order.
type Catalog struct {
	Ports          []*Port
	Switches       []*Switch
	Topologies     []*Topology
	Configurations []*Configuration
	Suites         []*TestSuite
}

// Port is one PCI function taking part in a topology.
type Port struct {
	Name    string
	Enabled bool
	Role    PortRole
	BDF     pcie.BDF
}

// Switch groups the ports of one PCIe switch in declaration order.
type Switch struct {
	Name  string
	Ports []*Port
}

// SwitchHop is one traversal through a switch, from its upstream-facing port
// to the downstream port leading towards the endpoint.
type SwitchHop struct {
	Switch *Switch
	Upper  *Port
	Lower  *Port
}

// Topology is a physical path from a root port to an endpoint.
type Topology struct {
	Name       string
	Enabled    bool
	Type       TopologyType
	Connection ConnectionShape
	Root       *Port
	Upper      *Port
	Lower      *Port
	Hops       []*SwitchHop
}

// Configuration selects which configuration variants a suite exercises.
type Configuration struct {
	Name         string
	Enabled      bool
	Category     string
	TopologyType TopologyType

	// TypeNames are the category-defined variant names as written in the
	// catalog. The registry resolves them into Requested.
	TypeNames []string
	Requested bitmask.Bitmap

	// PrivateFields holds category-specific knobs in declaration order; the
	// owning category parses them into Private.
	PrivateFields []PrivateField
	Private       any
}

// PrivateField is one raw category-specific attribute.
type PrivateField struct {
	Key   string
	Value cty.Value
}

// CaseSelector names a case class and, optionally, a subset of its case IDs.
// Empty IDs means every case of the class.
type CaseSelector struct {
	Class string
	IDs   []int
}

// TestSuite binds topologies and configurations of one category to the
// cases to run against them.
type TestSuite struct {
	Name           string
	Enabled        bool
	Category       string
	Topologies     []*Topology
	Configurations []*Configuration
	Cases          []CaseSelector
}

// Port looks up a port by name.
func (c *Catalog) Port(name string) *Port {
	for _, p := range c.Ports {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Switch looks up a switch by name.
func (c *Catalog) Switch(name string) *Switch {
	for _, s := range c.Switches {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Topology looks up a topology by name.
func (c *Catalog) Topology(name string) *Topology {
	for _, t := range c.Topologies {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Configuration looks up a configuration by name.
func (c *Catalog) Configuration(name string) *Configuration {
	for _, cfg := range c.Configurations {
		if cfg.Name == name {
			return cfg
		}
	}
	return nil
}

// Suite looks up a test suite by name.
func (c *Catalog) Suite(name string) *TestSuite {
	for _, s := range c.Suites {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EnabledSuites returns the enabled suites in declaration order.
func (c *Catalog) EnabledSuites() []*TestSuite {
	var out []*TestSuite
	for _, s := range c.Suites {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that every reference in the catalog resolves. Loaders call
// it before returning; the dispatcher relies on it never failing afterwards.
func (c *Catalog) Validate() error {
	var errs []error
	for _, t := range c.Topologies {
		if t.Root == nil {
			errs = append(errs, fmt.Errorf("topology %q: root port missing", t.Name))
		}
		if t.Lower == nil {
			errs = append(errs, fmt.Errorf("topology %q: lower port missing", t.Name))
		}
		if t.Connection == ConnectionSwitch && len(t.Hops) == 0 {
			errs = append(errs, fmt.Errorf("topology %q: switch connection without any hop", t.Name))
		}
		for i, h := range t.Hops {
			if h == nil || h.Switch == nil || h.Upper == nil || h.Lower == nil {
				errs = append(errs, fmt.Errorf("topology %q: hop %d incomplete", t.Name, i))
			}
		}
	}
	for _, s := range c.Suites {
		if s.Category == "" {
			errs = append(errs, fmt.Errorf("suite %q: category missing", s.Name))
		}
		if len(s.Topologies) == 0 {
			errs = append(errs, fmt.Errorf("suite %q: no topologies", s.Name))
		}
		if len(s.Configurations) == 0 {
			errs = append(errs, fmt.Errorf("suite %q: no configurations", s.Name))
		}
		for _, t := range s.Topologies {
			if t == nil {
				errs = append(errs, fmt.Errorf("suite %q: nil topology reference", s.Name))
			}
		}
		for _, cfg := range s.Configurations {
			if cfg == nil {
				errs = append(errs, fmt.Errorf("suite %q: nil configuration reference", s.Name))
				continue
			}
			if cfg.Category != s.Category {
				errs = append(errs, fmt.Errorf("suite %q: configuration %q belongs to category %q, not %q",
					s.Name, cfg.Name, cfg.Category, s.Category))
			}
		}
	}
	return errors.Join(errs...)
}
