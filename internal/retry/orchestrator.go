package retry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dkoval/circsim/internal/engine"
	"github.com/dkoval/circsim/internal/netlist"
	"github.com/dkoval/circsim/internal/schematic"
	"github.com/dkoval/circsim/internal/transport"
)

// Orchestrator walks the profile ladder: build a fresh netlist, run one
// attempt through a transport strategy, classify the failure, escalate or
// stop. Attempts are strictly sequential; the solver's per-circuit state is
// not safe for concurrent use.
type Orchestrator struct {
	eng      engine.Engine
	profiles []Profile
	log      *zap.Logger
}

// NewOrchestrator wires an orchestrator for one engine. A nil profile list
// selects the canonical ladder; a nil logger keeps the library quiet.
func NewOrchestrator(eng engine.Engine, profiles []Profile, log *zap.Logger) *Orchestrator {
	if profiles == nil {
		profiles = CanonicalProfiles()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{eng: eng, profiles: profiles, log: log}
}

// Run executes a transient simulation, retrying with escalating profiles on
// convergence failures. Conversion errors abort before any attempt. The
// returned result is never nil when err is nil.
func (o *Orchestrator) Run(ctx context.Context, sch *schematic.Schematic, base engine.RunOptions, cb transport.Callbacks) (*transport.AttemptResult, error) {
	var prevErrors []string

	for i, profile := range o.profiles {
		// Cancellation is checked at every inter-attempt boundary. The
		// annotation names the last profile that actually ran; on the first
		// boundary nothing ran, so the result carries no retry trail.
		if ctx.Err() != nil || cb.CheckCancelled != nil && cb.CheckCancelled() {
			res := cancelledResult()
			if i > 0 {
				o.annotate(res, o.profiles[i-1].Name, i-1, prevErrors)
			}
			return res, nil
		}

		// Solver state never crosses attempt boundaries: every attempt gets
		// a netlist built from scratch.
		nl, err := o.buildNetlist(sch)
		if err != nil {
			return nil, err
		}

		opts := profile.Apply(base)
		strat, err := transport.Select(o.eng)
		if err != nil {
			return nil, err
		}

		o.log.Info("starting attempt",
			zap.Int("attempt", i+1),
			zap.String("profile", profile.Name),
			zap.String("transport", strat.Name()),
			zap.Float64("dt", opts.Dt))

		res := o.runAttempt(ctx, strat, nl, opts, cb)

		// A streaming failure that is not a cancellation gets one retry of
		// the same attempt in chunked mode, when a chunked entry point
		// exists. This fallback is independent of profile escalation.
		if res.Failed() && strat.Name() == "streaming" && Classify(res.Err) != ClassCancelled {
			if chunked, ok := transport.SelectChunked(o.eng); ok {
				o.log.Warn("streaming attempt failed, falling back to chunked",
					zap.String("error", res.Err))
				res = o.runAttempt(ctx, chunked, nl, opts, cb)
			}
		}

		if !res.Failed() {
			if i > 0 {
				o.annotate(res, profile.Name, i, prevErrors)
			}
			o.log.Info("attempt succeeded", zap.String("profile", profile.Name), zap.Int("retries", i))
			return res, nil
		}

		class := Classify(res.Err)
		o.log.Warn("attempt failed",
			zap.String("profile", profile.Name),
			zap.String("class", class.String()),
			zap.String("error", res.Err))

		if class == ClassCancelled || class != ClassRetryable || i == len(o.profiles)-1 {
			return o.annotate(res, profile.Name, i, prevErrors), nil
		}
		prevErrors = append(prevErrors, res.Err)
	}

	// Unreachable with a non-empty profile list; guard the empty case.
	return nil, fmt.Errorf("retry: no profiles configured")
}

func (o *Orchestrator) buildNetlist(sch *schematic.Schematic) (*netlist.Netlist, error) {
	b := &netlist.Builder{}
	if sink, ok := o.eng.(netlist.LayoutSink); ok && o.eng.Capabilities().Layout {
		b.Layout = sink
	}
	return b.Build(sch)
}

// runAttempt executes one attempt, converting every native-boundary panic
// or call error into a failure result. Typed errors never cross the
// boundary; the orchestrator inspects message text only.
func (o *Orchestrator) runAttempt(ctx context.Context, strat transport.Strategy, nl *netlist.Netlist, opts engine.RunOptions, cb transport.Callbacks) (res *transport.AttemptResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("engine panicked", zap.Any("panic", r))
			res = &transport.AttemptResult{
				Signals: map[string][]float64{},
				Stats:   map[string]any{},
				Err:     fmt.Sprintf("engine internal error: %v", r),
			}
		}
	}()

	res, err := strat.Execute(ctx, nl, opts, cb)
	if err != nil {
		return &transport.AttemptResult{
			Signals: map[string][]float64{},
			Stats:   map[string]any{},
			Err:     err.Error(),
		}
	}
	return res
}

// annotate records the recovery trail on a result so a human can see which
// strategies ran and why each prior one failed.
func (o *Orchestrator) annotate(res *transport.AttemptResult, profileName string, retries int, prevErrors []string) *transport.AttemptResult {
	if res.Stats == nil {
		res.Stats = map[string]any{}
	}
	res.Stats["retry_profile"] = profileName
	res.Stats["retry_count"] = retries
	if len(prevErrors) > 0 {
		res.Stats["attempt_errors"] = append([]string(nil), prevErrors...)
	}
	return res
}

func cancelledResult() *transport.AttemptResult {
	return &transport.AttemptResult{
		Signals: map[string][]float64{},
		Stats:   map[string]any{},
		Err:     engine.CancelledMessage,
	}
}
