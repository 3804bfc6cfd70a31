package schematic

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		want    ComponentType
		wantErr bool
	}{
		{"resistor", TypeResistor, false},
		{"igbt", TypeIGBT, false},
		{"pwm_generator", TypePWMGenerator, false},
		{"flux_capacitor", TypeUnknown, true},
		{"unknown", TypeUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) err = %v, wantErr %t", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSignalOnly(t *testing.T) {
	signal := []ComponentType{
		TypeVoltageProbe, TypeCurrentProbe, TypeScope, TypeMathBlock,
		TypePIController, TypePWMGenerator, TypeSignalSource,
	}
	for _, typ := range signal {
		if !typ.SignalOnly() {
			t.Errorf("%v should be signal-only", typ)
		}
	}
	electrical := []ComponentType{
		TypeResistor, TypeVoltageSource, TypeMosfet, TypeTransformer, TypeSnubber,
	}
	for _, typ := range electrical {
		if typ.SignalOnly() {
			t.Errorf("%v should not be signal-only", typ)
		}
	}
}

func TestValidate(t *testing.T) {
	s := &Schematic{Components: []Component{
		{ID: "R1", Type: TypeResistor, Pins: []Pin{{Name: "p"}}},
		{ID: "R1", Type: TypeResistor, Pins: []Pin{{Name: "p"}}},
	}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected duplicate id error")
	}

	s = &Schematic{Components: []Component{{ID: "X1"}}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected unknown type error")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	s := &Schematic{
		Title: "buck converter",
		Components: []Component{
			{
				ID:     "Q1",
				Type:   TypeMosfet,
				Name:   "high-side",
				Pins:   []Pin{{Name: "d", Node: "vin"}, {Name: "g", Node: "drv"}, {Name: "s", Node: "sw"}},
				Params: map[string]any{"r_on": 0.01},
				Layout: Layout{X: 100, Y: 50, Rotation: 270},
			},
			{
				ID:     "L1",
				Type:   TypeInductor,
				Pins:   []Pin{{Name: "p", Node: "sw"}, {Name: "n", Node: "out"}},
				Params: map[string]any{"inductance": 47e-6},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "buck.yaml")
	if err := Save(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Title != s.Title {
		t.Errorf("title = %q, want %q", loaded.Title, s.Title)
	}
	if len(loaded.Components) != 2 {
		t.Fatalf("components = %d, want 2", len(loaded.Components))
	}
	if loaded.Components[0].Type != TypeMosfet {
		t.Errorf("type = %v, want mosfet", loaded.Components[0].Type)
	}
	if loaded.Components[0].Layout.Rotation != 270 {
		t.Errorf("rotation = %d, want 270", loaded.Components[0].Layout.Rotation)
	}
	if got := loaded.Components[1].FloatParam("inductance", 0); got != 47e-6 {
		t.Errorf("inductance = %g, want 47e-6", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("components:\n  - id: R1\n    type: warp_coil\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := &Schematic{Components: []Component{
		{ID: "R1", Type: TypeResistor, Pins: []Pin{{Name: "p", Node: "a"}}, Params: map[string]any{"resistance": 1.0}},
	}}
	c := s.Clone()
	c.Components[0].Params["resistance"] = 2.0
	c.Components[0].Pins[0].Node = "b"

	if s.Components[0].Params["resistance"] != 1.0 {
		t.Error("clone mutated original params")
	}
	if s.Components[0].Pins[0].Node != "a" {
		t.Error("clone mutated original pins")
	}
}

func TestFloatParamCoercion(t *testing.T) {
	c := Component{Params: map[string]any{"a": 1, "b": int64(2), "c": 3.5, "d": "x"}}
	if got := c.FloatParam("a", 0); got != 1 {
		t.Errorf("int: got %g", got)
	}
	if got := c.FloatParam("b", 0); got != 2 {
		t.Errorf("int64: got %g", got)
	}
	if got := c.FloatParam("c", 0); got != 3.5 {
		t.Errorf("float: got %g", got)
	}
	if got := c.FloatParam("d", 9); got != 9 {
		t.Errorf("non-numeric should default: got %g", got)
	}
	if got := c.FloatParam("missing", 7); got != 7 {
		t.Errorf("missing should default: got %g", got)
	}
}
