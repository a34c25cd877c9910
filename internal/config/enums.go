package config

import "fmt"

// PortRole is the position of a port in a topology.
type PortRole int

const (
	RoleRootPort PortRole = iota
	RoleEndpoint
	RoleSwitchPort
)

var portRoleNames = map[PortRole]string{
	RoleRootPort:   "root_port",
	RoleEndpoint:   "endpoint",
	RoleSwitchPort: "switch_port",
}

func (r PortRole) String() string {
	if s, ok := portRoleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("PortRole(%d)", int(r))
}

// ParsePortRole converts the catalog spelling of a role.
func ParsePortRole(s string) (PortRole, error) {
	for r, name := range portRoleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown port role %q", s)
}

// TopologyType is the IDE arrangement under test. Categories key their legal
// configuration bitmasks by it, so it is also called the topology shape.
type TopologyType int

const (
	TopologySelectiveIDE TopologyType = iota
	TopologyLinkIDE
	TopologySelectiveAndLinkIDE
)

// TopologyTypes lists every shape in declaration order.
var TopologyTypes = []TopologyType{TopologySelectiveIDE, TopologyLinkIDE, TopologySelectiveAndLinkIDE}

var topologyTypeNames = map[TopologyType]string{
	TopologySelectiveIDE:        "selective_ide",
	TopologyLinkIDE:             "link_ide",
	TopologySelectiveAndLinkIDE: "selective_and_link_ide",
}

func (t TopologyType) String() string {
	if s, ok := topologyTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TopologyType(%d)", int(t))
}

// ParseTopologyType converts the catalog spelling of a topology type.
func ParseTopologyType(s string) (TopologyType, error) {
	for t, name := range topologyTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown topology type %q", s)
}

// ConnectionShape is how the root port reaches the endpoint.
type ConnectionShape int

const (
	ConnectionDirect ConnectionShape = iota
	ConnectionSwitch
	ConnectionPeerToPeer
)

var connectionNames = map[ConnectionShape]string{
	ConnectionDirect:     "direct",
	ConnectionSwitch:     "switch",
	ConnectionPeerToPeer: "peer_to_peer",
}

func (c ConnectionShape) String() string {
	if s, ok := connectionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ConnectionShape(%d)", int(c))
}

// ParseConnectionShape converts the catalog spelling of a connection shape.
func ParseConnectionShape(s string) (ConnectionShape, error) {
	for c, name := range connectionNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown connection %q", s)
}
