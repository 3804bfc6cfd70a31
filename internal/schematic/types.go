package schematic

import "fmt"

// ComponentType tags a schematic entity with its device family.
type ComponentType int

const (
	TypeUnknown ComponentType = iota

	// Passives
	TypeResistor
	TypeCapacitor
	TypeInductor
	TypeSnubber
	TypeVaristor
	TypeFuse

	// Sources
	TypeVoltageSource
	TypeCurrentSource

	// Semiconductors
	TypeDiode
	TypeZenerDiode
	TypeSchottkyDiode
	TypeLED
	TypeMosfet
	TypeIGBT
	TypeBJT
	TypeThyristor
	TypeSwitch
	TypeRelay

	// Magnetics
	TypeTransformer
	TypeCoupledInductor

	// Instrumentation (GUI/analysis only, never emitted to the netlist)
	TypeVoltageProbe
	TypeCurrentProbe
	TypePowerProbe
	TypeThermalProbe
	TypeScope

	// Signal/control blocks (GUI/analysis only)
	TypeSignalSource
	TypeGainBlock
	TypeSumBlock
	TypeMathBlock
	TypeComparator
	TypePIController
	TypePWMGenerator
)

var typeNames = map[ComponentType]string{
	TypeUnknown:         "unknown",
	TypeResistor:        "resistor",
	TypeCapacitor:       "capacitor",
	TypeInductor:        "inductor",
	TypeSnubber:         "snubber",
	TypeVaristor:        "varistor",
	TypeFuse:            "fuse",
	TypeVoltageSource:   "vsource",
	TypeCurrentSource:   "isource",
	TypeDiode:           "diode",
	TypeZenerDiode:      "zener",
	TypeSchottkyDiode:   "schottky",
	TypeLED:             "led",
	TypeMosfet:          "mosfet",
	TypeIGBT:            "igbt",
	TypeBJT:             "bjt",
	TypeThyristor:       "thyristor",
	TypeSwitch:          "switch",
	TypeRelay:           "relay",
	TypeTransformer:     "transformer",
	TypeCoupledInductor: "coupled_inductor",
	TypeVoltageProbe:    "vprobe",
	TypeCurrentProbe:    "iprobe",
	TypePowerProbe:      "pprobe",
	TypeThermalProbe:    "tprobe",
	TypeScope:           "scope",
	TypeSignalSource:    "signal_source",
	TypeGainBlock:       "gain",
	TypeSumBlock:        "sum",
	TypeMathBlock:       "math",
	TypeComparator:      "comparator",
	TypePIController:    "pi_controller",
	TypePWMGenerator:    "pwm_generator",
}

var nameTypes = func() map[string]ComponentType {
	m := make(map[string]ComponentType, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

func (t ComponentType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseType resolves a type tag from its string form.
func ParseType(name string) (ComponentType, error) {
	if t, ok := nameTypes[name]; ok && t != TypeUnknown {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("schematic: unknown component type %q", name)
}

// SignalOnly reports whether the type lives purely in the signal/analysis
// domain. Signal-only components never become solver devices.
func (t ComponentType) SignalOnly() bool {
	switch t {
	case TypeVoltageProbe, TypeCurrentProbe, TypePowerProbe, TypeThermalProbe,
		TypeScope, TypeSignalSource, TypeGainBlock, TypeSumBlock, TypeMathBlock,
		TypeComparator, TypePIController, TypePWMGenerator:
		return true
	}
	return false
}

func (t ComponentType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func (t *ComponentType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
