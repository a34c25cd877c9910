// Package schema holds the gohcl decoding targets for catalog files. The
// structs mirror the block layout on disk; internal/hcl translates them into
// the format-agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// File is the top level of any catalog file. Every block kind may appear in
// any file; anything else is a decode error.
type File struct {
	Ports          []*Port          `hcl:"port,block"`
	Switches       []*Switch        `hcl:"switch,block"`
	Topologies     []*Topology      `hcl:"topology,block"`
	Configurations []*Configuration `hcl:"configuration,block"`
	Suites         []*Suite         `hcl:"suite,block"`
}

// Port is a `port` block.
type Port struct {
	Name    string `hcl:"name,label"`
	Role    string `hcl:"role"`
	BDF     string `hcl:"bdf"`
	Enabled *bool  `hcl:"enabled,optional"`
}

// Switch is a `switch` block listing its ports.
type Switch struct {
	Name  string   `hcl:"name,label"`
	Ports []string `hcl:"ports"`
}

// Hop is a `hop` block inside a topology.
type Hop struct {
	Switch string `hcl:"switch,label"`
	Upper  string `hcl:"upper"`
	Lower  string `hcl:"lower"`
}

// Topology is a `topology` block.
type Topology struct {
	Name       string `hcl:"name,label"`
	Type       string `hcl:"type"`
	Connection string `hcl:"connection,optional"`
	RootPort   string `hcl:"root_port"`
	UpperPort  string `hcl:"upper_port,optional"`
	LowerPort  string `hcl:"lower_port"`
	Enabled    *bool  `hcl:"enabled,optional"`
	Hops       []*Hop `hcl:"hop,block"`
}

// Private is the category-specific `private` block. Its attributes are
// passed through untyped.
type Private struct {
	Body hcl.Body `hcl:",remain"`
}

// Configuration is a `configuration` block.
type Configuration struct {
	Name         string   `hcl:"name,label"`
	Category     string   `hcl:"category"`
	TopologyType string   `hcl:"topology_type"`
	Types        []string `hcl:"types,optional"`
	Enabled      *bool    `hcl:"enabled,optional"`
	Private      *Private `hcl:"private,block"`
}

// Case is a `case` block inside a suite.
type Case struct {
	Class string `hcl:"class,label"`
	IDs   []int  `hcl:"ids,optional"`
}

// Suite is a `suite` block.
type Suite struct {
	Name           string   `hcl:"name,label"`
	Category       string   `hcl:"category"`
	Topologies     []string `hcl:"topologies"`
	Configurations []string `hcl:"configurations"`
	Enabled        *bool    `hcl:"enabled,optional"`
	Cases          []*Case  `hcl:"case,block"`
}
