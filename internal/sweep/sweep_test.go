package sweep

import (
	"context"
	"math"
	"testing"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/schematic"
)

func dividerSchematic() *schematic.Schematic {
	return &schematic.Schematic{
		Components: []schematic.Component{
			{
				ID: "V1", Type: schematic.TypeVoltageSource,
				Pins:   []schematic.Pin{{Name: "p", Node: "in"}, {Name: "n", Node: "0"}},
				Params: map[string]any{"voltage": 10.0},
			},
			{
				ID: "R1", Type: schematic.TypeResistor,
				Pins:   []schematic.Pin{{Name: "p", Node: "in"}, {Name: "n", Node: "out"}},
				Params: map[string]any{"resistance": 1000.0},
			},
			{
				ID: "R2", Type: schematic.TypeResistor,
				Pins:   []schematic.Pin{{Name: "p", Node: "out"}, {Name: "n", Node: "0"}},
				Params: map[string]any{"resistance": 1000.0},
			},
		},
	}
}

func shortRun() engine.RunOptions {
	return engine.RunOptions{
		Dt:       1e-6,
		StopTime: 1e-5,
		Newton:   engine.NewtonOptions{MaxIterations: 50, AbsTol: 1e-9, RelTol: 1e-6},
	}
}

func newRef() engine.Engine { return engine.NewReference() }

func TestSweepOnePointPerValueInOrder(t *testing.T) {
	sch := dividerSchematic()
	spec := Spec{
		ComponentID: "R2",
		Param:       "resistance",
		Values:      []float64{1000, 3000},
	}

	points, err := Run(context.Background(), sch, spec, shortRun(), newRef, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}

	// 10V across R1=1k with R2 swept: V(out) = 10*R2/(R1+R2).
	wantOut := []float64{5.0, 7.5}
	for i, p := range points {
		if p.Value != spec.Values[i] {
			t.Errorf("point %d value = %g, want %g", i, p.Value, spec.Values[i])
		}
		res := p.Result
		if res.ErrorMessage != "" {
			t.Fatalf("point %d failed: %s", i, res.ErrorMessage)
		}
		out := res.Signals["V(out)"]
		if len(out) == 0 {
			t.Fatalf("point %d missing V(out)", i)
		}
		if got := out[len(out)-1]; math.Abs(got-wantOut[i]) > 1e-6 {
			t.Errorf("point %d V(out) = %g, want %g", i, got, wantOut[i])
		}
	}
}

func TestSweepParallelMatchesSequential(t *testing.T) {
	sch := dividerSchematic()
	spec := Spec{
		ComponentID: "R2",
		Param:       "resistance",
		Values:      []float64{500, 1000, 2000, 4000},
		Parallel:    4,
	}

	points, err := Run(context.Background(), sch, spec, shortRun(), newRef, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for i, p := range points {
		r2 := spec.Values[i]
		want := 10 * r2 / (1000 + r2)
		out := p.Result.Signals["V(out)"]
		if got := out[len(out)-1]; math.Abs(got-want) > 1e-6 {
			t.Errorf("R2=%g: V(out) = %g, want %g", r2, got, want)
		}
	}
}

func TestSweepLeavesInputSchematicUntouched(t *testing.T) {
	sch := dividerSchematic()
	spec := Spec{ComponentID: "R2", Param: "resistance", Values: []float64{9999}}

	if _, err := Run(context.Background(), sch, spec, shortRun(), newRef, nil); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := sch.FindComponent("R2").FloatParam("resistance", 0); got != 1000 {
		t.Errorf("input schematic mutated: resistance = %g", got)
	}
}

func TestSweepUnknownComponent(t *testing.T) {
	spec := Spec{ComponentID: "R99", Param: "resistance", Values: []float64{1}}
	if _, err := Run(context.Background(), dividerSchematic(), spec, shortRun(), newRef, nil); err == nil {
		t.Fatal("expected error for unknown component")
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spec := Spec{ComponentID: "R2", Param: "resistance", Values: []float64{1000, 2000}}
	points, err := Run(ctx, dividerSchematic(), spec, shortRun(), newRef, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// A pre-cancelled context yields cancelled points rather than results.
	for i, p := range points {
		if p.Result.ErrorMessage != engine.CancelledMessage {
			t.Errorf("point %d error = %q, want cancellation", i, p.Result.ErrorMessage)
		}
	}
}
