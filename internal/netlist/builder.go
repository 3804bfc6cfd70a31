package netlist

import (
	"fmt"

	"github.com/dkoval/circsim/internal/schematic"
)

// LayoutSink is implemented by engines that can consume editor placement.
// Placement application is best-effort and never fails a build.
type LayoutSink interface {
	PlaceDevice(name string, l schematic.Layout) error
}

// electricalArity lists, for fixed-arity types, how many leading pins are
// electrical terminals. Auxiliary ports (thermal, sense) are intentionally
// not predeclared: an unused predeclared node is an isolated node, and
// isolated nodes degrade solver convergence. Types absent from this table
// keep their full terminal list.
var electricalArity = map[schematic.ComponentType]int{
	schematic.TypeResistor:      2,
	schematic.TypeCapacitor:     2,
	schematic.TypeInductor:      2,
	schematic.TypeSnubber:       2,
	schematic.TypeVoltageSource: 2,
	schematic.TypeCurrentSource: 2,
	schematic.TypeDiode:         2,
	schematic.TypeZenerDiode:    2,
	schematic.TypeSchottkyDiode: 2,
	schematic.TypeLED:           2,
	schematic.TypeMosfet:        3,
	schematic.TypeIGBT:          3,
	schematic.TypeSwitch:        3,
	schematic.TypeTransformer:   4,
}

// Builder converts schematics into netlists. The zero value is usable; set
// Layout to forward placement metadata to a capable engine.
type Builder struct {
	Layout LayoutSink
}

// Build converts a schematic into a fresh netlist. Signal-only components
// (probes, scopes, control blocks) are skipped entirely. The build is a
// two-pass process: all electrical terminals are predeclared first so node
// indices depend only on component order, then devices are emitted.
func (b *Builder) Build(s *schematic.Schematic) (*Netlist, error) {
	nl := New()

	var comps []*schematic.Component
	for i := range s.Components {
		c := &s.Components[i]
		if c.Type.SignalOnly() {
			continue
		}
		comps = append(comps, c)
	}

	// Pass 1: validate connectivity and predeclare nodes.
	labels := make([][]string, len(comps))
	for i, c := range comps {
		ls, err := b.resolveLabels(c)
		if err != nil {
			return nil, err
		}
		labels[i] = ls
		for _, l := range ls {
			nl.Node(l)
		}
	}

	// Pass 2: emit devices.
	for i, c := range comps {
		if err := emitDevice(nl, c, labels[i]); err != nil {
			return nil, err
		}
	}

	for _, c := range comps {
		nl.Placements = append(nl.Placements, Placement{Device: c.DisplayName(), Layout: c.Layout})
	}
	if b.Layout != nil {
		for _, p := range nl.Placements {
			// Best-effort: a placement the engine rejects never fails the build.
			_ = b.Layout.PlaceDevice(p.Device, p.Layout)
		}
	}

	return nl, nil
}

// resolveLabels maps each relevant pin of a component to a node label: the
// explicit alias when present, else a synthetic label stable across rebuilds.
// Ground spellings collapse to the canonical label.
func (b *Builder) resolveLabels(c *schematic.Component) ([]string, error) {
	if c.Type == schematic.TypeUnknown {
		return nil, conversionErr(c.ID, ErrUnsupportedType)
	}
	if len(c.Pins) == 0 {
		return nil, conversionErr(c.ID, ErrMissingConnectivity)
	}

	pins := c.Pins
	if arity, fixed := electricalArity[c.Type]; fixed {
		if len(pins) < arity {
			return nil, conversionErr(c.ID, fmt.Errorf("%w: type %s needs %d pins, have %d",
				ErrPinCount, c.Type, arity, len(pins)))
		}
		pins = pins[:arity]
	}

	labels := make([]string, len(pins))
	for i, p := range pins {
		switch {
		case IsGroundLabel(p.Node):
			labels[i] = GroundLabel
		case p.Node != "":
			labels[i] = p.Node
		case p.Name != "":
			labels[i] = c.ID + "." + p.Name
		default:
			labels[i] = fmt.Sprintf("%s.%d", c.ID, i)
		}
	}
	return labels, nil
}
