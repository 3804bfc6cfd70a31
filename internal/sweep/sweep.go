// Package sweep runs a simulation once per value of a swept component
// parameter. Each point gets its own engine instance and its own
// orchestrator, so the no-shared-solver-state rule holds; points run
// concurrently up to a configurable limit.
package sweep

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/result"
	"github.com/dkoval/circsim/internal/retry"
	"github.com/dkoval/circsim/internal/schematic"
	"github.com/dkoval/circsim/internal/transport"
)

// Spec names the swept parameter and its values.
type Spec struct {
	ComponentID string
	Param       string
	Values      []float64
	// Parallel bounds concurrent points; <= 0 means sequential.
	Parallel int
}

// Point is the outcome of one sweep value, in input order.
type Point struct {
	Value  float64
	Result *result.TransientResult
}

// Run executes the sweep. newEngine must return a fresh engine per call.
func Run(ctx context.Context, sch *schematic.Schematic, spec Spec, base engine.RunOptions, newEngine func() engine.Engine, log *zap.Logger) ([]Point, error) {
	if sch.FindComponent(spec.ComponentID) == nil {
		return nil, fmt.Errorf("sweep: unknown component %q", spec.ComponentID)
	}
	if log == nil {
		log = zap.NewNop()
	}

	points := make([]Point, len(spec.Values))
	g, gctx := errgroup.WithContext(ctx)
	limit := spec.Parallel
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, v := range spec.Values {
		i, v := i, v
		g.Go(func() error {
			variant := sch.Clone()
			variant.FindComponent(spec.ComponentID).Params[spec.Param] = v

			orch := retry.NewOrchestrator(newEngine(), nil, log.With(zap.Float64("sweep_value", v)))
			att, err := orch.Run(gctx, variant, base, transport.Callbacks{})
			if err != nil {
				return fmt.Errorf("sweep point %g: %w", v, err)
			}
			points[i] = Point{Value: v, Result: result.AssembleTransient(att)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
