// Package netlist turns a schematic component graph into the solver-ready
// circuit: a node table with deterministic indices and an ordered list of
// typed devices.
package netlist

import (
	"strings"

	"github.com/dkoval/circsim/internal/schematic"
)

// NodeID indexes a node in the netlist. Ground is always Ground (0).
type NodeID int

// Ground is the distinguished singleton node.
const Ground NodeID = 0

// GroundLabel is the canonical spelling of the ground node.
const GroundLabel = "0"

// DeviceKind is the solver-facing device family.
type DeviceKind int

const (
	KindVirtual DeviceKind = iota
	KindResistor
	KindCapacitor
	KindInductor
	KindVSource
	KindISource
	KindDiode
	KindMosfet
	KindIGBT
	KindSwitch
	KindTransformer
)

var kindNames = map[DeviceKind]string{
	KindVirtual:     "virtual",
	KindResistor:    "R",
	KindCapacitor:   "C",
	KindInductor:    "L",
	KindVSource:     "V",
	KindISource:     "I",
	KindDiode:       "D",
	KindMosfet:      "M",
	KindIGBT:        "Z",
	KindSwitch:      "S",
	KindTransformer: "T",
}

func (k DeviceKind) String() string { return kindNames[k] }

// Device is one placed primitive: a kind, 2-4 node handles, numeric
// parameters, and string metadata for anything the parameter map cannot
// carry.
type Device struct {
	Kind     DeviceKind
	Name     string
	Nodes    []NodeID
	Params   map[string]float64
	Metadata map[string]string
}

// Placement records editor layout for one device, applied best-effort to
// engines that understand placement.
type Placement struct {
	Device string
	Layout schematic.Layout
}

// Netlist is the built circuit. It is constructed once per solver attempt
// and never mutated afterwards.
type Netlist struct {
	nodeIndex map[string]NodeID
	nodeNames []string

	Devices    []Device
	Placements []Placement
}

// New returns an empty netlist with the ground node already present.
func New() *Netlist {
	n := &Netlist{
		nodeIndex: make(map[string]NodeID),
		nodeNames: []string{GroundLabel},
	}
	n.nodeIndex[GroundLabel] = Ground
	return n
}

// IsGroundLabel reports whether a node label spells ground. Both the literal
// "0" and any casing of "gnd" resolve to the same singleton node.
func IsGroundLabel(label string) bool {
	return label == GroundLabel || strings.EqualFold(label, "gnd")
}

// Node resolves a label to a node index, creating the node on first sight.
// Indices are assigned in encounter order, so identical input graphs always
// produce identical indices.
func (n *Netlist) Node(label string) NodeID {
	if IsGroundLabel(label) {
		return Ground
	}
	if id, ok := n.nodeIndex[label]; ok {
		return id
	}
	id := NodeID(len(n.nodeNames))
	n.nodeIndex[label] = id
	n.nodeNames = append(n.nodeNames, label)
	return id
}

// NodeCount returns the number of nodes including ground.
func (n *Netlist) NodeCount() int { return len(n.nodeNames) }

// NodeName returns the label assigned to a node index.
func (n *Netlist) NodeName(id NodeID) string {
	if int(id) < 0 || int(id) >= len(n.nodeNames) {
		return ""
	}
	return n.nodeNames[id]
}

// NodeNames returns all node labels in index order.
func (n *Netlist) NodeNames() []string {
	out := make([]string, len(n.nodeNames))
	copy(out, n.nodeNames)
	return out
}

// AddDevice appends a device to the netlist.
func (n *Netlist) AddDevice(d Device) {
	n.Devices = append(n.Devices, d)
}
