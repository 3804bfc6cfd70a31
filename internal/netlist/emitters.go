package netlist

import (
	"encoding/json"
	"fmt"

	"github.com/dkoval/circsim/internal/schematic"
)

type emitFunc func(nl *Netlist, c *schematic.Component, nodes []NodeID) error

var emitters = map[schematic.ComponentType]emitFunc{
	schematic.TypeResistor:      emitResistor,
	schematic.TypeCapacitor:     emitCapacitor,
	schematic.TypeInductor:      emitInductor,
	schematic.TypeSnubber:       emitSnubber,
	schematic.TypeVoltageSource: emitVSource,
	schematic.TypeCurrentSource: emitISource,
	schematic.TypeDiode:         emitDiode,
	schematic.TypeZenerDiode:    emitDiode,
	schematic.TypeSchottkyDiode: emitDiode,
	schematic.TypeLED:           emitDiode,
	schematic.TypeMosfet:        emitMosfet,
	schematic.TypeIGBT:          emitIGBT,
	schematic.TypeSwitch:        emitSwitch,
	schematic.TypeTransformer:   emitTransformer,
}

// emitDevice dispatches a component to its type-specific emitter, or to the
// generic virtual-component emitter when no built-in emitter exists. The
// virtual path lets new component types flow through without a builder
// change.
func emitDevice(nl *Netlist, c *schematic.Component, labels []string) error {
	nodes := make([]NodeID, len(labels))
	for i, l := range labels {
		nodes[i] = nl.Node(l)
	}
	if emit, ok := emitters[c.Type]; ok {
		return emit(nl, c, nodes)
	}
	return emitVirtual(nl, c, nodes)
}

func requireFloat(c *schematic.Component, key string) (float64, error) {
	v := c.FloatParam(key, 0)
	if _, ok := c.Params[key]; !ok {
		return 0, conversionErr(c.ID, fmt.Errorf("%w: %q", ErrMissingParam, key))
	}
	return v, nil
}

func emitResistor(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	r, err := requireFloat(c, "resistance")
	if err != nil {
		return err
	}
	nl.AddDevice(Device{
		Kind:   KindResistor,
		Name:   c.DisplayName(),
		Nodes:  nodes,
		Params: map[string]float64{"resistance": r},
	})
	return nil
}

func emitCapacitor(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	cval, err := requireFloat(c, "capacitance")
	if err != nil {
		return err
	}
	nl.AddDevice(Device{
		Kind:  KindCapacitor,
		Name:  c.DisplayName(),
		Nodes: nodes,
		Params: map[string]float64{
			"capacitance": cval,
			"v0":          c.FloatParam("v0", 0),
		},
	})
	return nil
}

func emitInductor(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	l, err := requireFloat(c, "inductance")
	if err != nil {
		return err
	}
	nl.AddDevice(Device{
		Kind:  KindInductor,
		Name:  c.DisplayName(),
		Nodes: nodes,
		Params: map[string]float64{
			"inductance": l,
			"i0":         c.FloatParam("i0", 0),
		},
	})
	return nil
}

// emitSnubber expands an RC snubber into its series resistor and capacitor
// joined at a synthetic internal node.
func emitSnubber(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	r, err := requireFloat(c, "resistance")
	if err != nil {
		return err
	}
	cval, err := requireFloat(c, "capacitance")
	if err != nil {
		return err
	}
	mid := nl.Node(c.ID + ".__rc")
	nl.AddDevice(Device{
		Kind:   KindResistor,
		Name:   c.DisplayName() + ".R",
		Nodes:  []NodeID{nodes[0], mid},
		Params: map[string]float64{"resistance": r},
	})
	nl.AddDevice(Device{
		Kind:   KindCapacitor,
		Name:   c.DisplayName() + ".C",
		Nodes:  []NodeID{mid, nodes[1]},
		Params: map[string]float64{"capacitance": cval, "v0": 0},
	})
	return nil
}

// emitVSource dispatches on the waveform kind. Each kind has its own
// required-parameter set; everything else defaults.
func emitVSource(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	wave := c.StringParam("waveform", "dc")
	params := map[string]float64{}

	switch wave {
	case "dc":
		v, err := requireFloat(c, "voltage")
		if err != nil {
			return err
		}
		params["voltage"] = v
	case "sine":
		amp, err := requireFloat(c, "amplitude")
		if err != nil {
			return err
		}
		freq, err := requireFloat(c, "frequency")
		if err != nil {
			return err
		}
		params["amplitude"] = amp
		params["frequency"] = freq
		params["offset"] = c.FloatParam("offset", 0)
		params["phase"] = c.FloatParam("phase", 0)
	case "pulse":
		vhigh, err := requireFloat(c, "v_high")
		if err != nil {
			return err
		}
		period, err := requireFloat(c, "period")
		if err != nil {
			return err
		}
		params["v_high"] = vhigh
		params["period"] = period
		params["v_low"] = c.FloatParam("v_low", 0)
		params["duty"] = c.FloatParam("duty", 0.5)
		params["t_rise"] = c.FloatParam("t_rise", 0)
		params["t_fall"] = c.FloatParam("t_fall", 0)
	case "pwm":
		vhigh, err := requireFloat(c, "v_high")
		if err != nil {
			return err
		}
		freq, err := requireFloat(c, "frequency")
		if err != nil {
			return err
		}
		params["v_high"] = vhigh
		params["frequency"] = freq
		params["v_low"] = c.FloatParam("v_low", 0)
		params["duty"] = c.FloatParam("duty", 0.5)
	default:
		return conversionErr(c.ID, fmt.Errorf("%w: waveform %q", ErrUnsupportedType, wave))
	}

	nl.AddDevice(Device{
		Kind:     KindVSource,
		Name:     c.DisplayName(),
		Nodes:    nodes,
		Params:   params,
		Metadata: map[string]string{"waveform": wave},
	})
	return nil
}

func emitISource(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	i, err := requireFloat(c, "current")
	if err != nil {
		return err
	}
	nl.AddDevice(Device{
		Kind:   KindISource,
		Name:   c.DisplayName(),
		Nodes:  nodes,
		Params: map[string]float64{"current": i},
	})
	return nil
}

var diodeModels = map[schematic.ComponentType]string{
	schematic.TypeDiode:         "standard",
	schematic.TypeZenerDiode:    "zener",
	schematic.TypeSchottkyDiode: "schottky",
	schematic.TypeLED:           "led",
}

func emitDiode(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	params := map[string]float64{
		"is": c.FloatParam("is", 1e-12),
		"n":  c.FloatParam("n", 1.0),
	}
	if c.Type == schematic.TypeZenerDiode {
		params["vz"] = c.FloatParam("vz", 5.1)
	}
	nl.AddDevice(Device{
		Kind:     KindDiode,
		Name:     c.DisplayName(),
		Nodes:    nodes,
		Params:   params,
		Metadata: map[string]string{"model": diodeModels[c.Type]},
	})
	return nil
}

func emitMosfet(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	nl.AddDevice(Device{
		Kind:  KindMosfet,
		Name:  c.DisplayName(),
		Nodes: nodes, // drain, gate, source
		Params: map[string]float64{
			"r_on":  c.FloatParam("r_on", 0.1),
			"r_off": c.FloatParam("r_off", 1e6),
			"v_th":  c.FloatParam("v_th", 2.5),
		},
	})
	return nil
}

func emitIGBT(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	nl.AddDevice(Device{
		Kind:  KindIGBT,
		Name:  c.DisplayName(),
		Nodes: nodes, // collector, gate, emitter
		Params: map[string]float64{
			"r_on":    c.FloatParam("r_on", 0.05),
			"r_off":   c.FloatParam("r_off", 1e6),
			"v_th":    c.FloatParam("v_th", 4.0),
			"vce_sat": c.FloatParam("vce_sat", 1.5),
		},
	})
	return nil
}

func emitSwitch(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	nl.AddDevice(Device{
		Kind:  KindSwitch,
		Name:  c.DisplayName(),
		Nodes: nodes, // p, n, control
		Params: map[string]float64{
			"r_on":      c.FloatParam("r_on", 1e-3),
			"r_off":     c.FloatParam("r_off", 1e9),
			"threshold": c.FloatParam("threshold", 0.5),
		},
	})
	return nil
}

func emitTransformer(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	ratio, err := requireFloat(c, "ratio")
	if err != nil {
		return err
	}
	nl.AddDevice(Device{
		Kind:  KindTransformer,
		Name:  c.DisplayName(),
		Nodes: nodes, // p1, p2, s1, s2
		Params: map[string]float64{
			"ratio":         ratio,
			"l_magnetizing": c.FloatParam("l_magnetizing", 1e-3),
		},
	})
	return nil
}

// emitVirtual places a component the builder has no dedicated emitter for.
// Numeric parameters ride in the parameter map; everything else is
// JSON-encoded into metadata so no information is dropped.
func emitVirtual(nl *Netlist, c *schematic.Component, nodes []NodeID) error {
	params := map[string]float64{}
	meta := map[string]string{"component_type": c.Type.String()}
	for k, v := range c.Params {
		switch n := v.(type) {
		case float64:
			params[k] = n
		case float32:
			params[k] = float64(n)
		case int:
			params[k] = float64(n)
		case int64:
			params[k] = float64(n)
		default:
			enc, err := json.Marshal(v)
			if err != nil {
				return conversionErr(c.ID, fmt.Errorf("encode param %q: %w", k, err))
			}
			meta[k] = string(enc)
		}
	}
	nl.AddDevice(Device{
		Kind:     KindVirtual,
		Name:     c.DisplayName(),
		Nodes:    nodes,
		Params:   params,
		Metadata: meta,
	})
	return nil
}
