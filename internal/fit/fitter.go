// Package fit refines two-line element sets by fixed-point iteration: a
// candidate TLE is extracted from a working state vector, evaluated through
// the external propagator, and the working vector is corrected by the
// residual until the propagated state matches the reference.
package fit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/star/tlefit/internal/elements"
	"github.com/star/tlefit/internal/metrics"
	"github.com/star/tlefit/internal/tle"
)

// Propagator turns element set lines into an evaluation handle. Implemented
// by the SGP4 adapter in production and by fakes in tests.
type Propagator interface {
	Init(line1, line2 string) (Handle, error)
}

// Handle evaluates one initialized element set at points in time, returning
// TEME states in km and km/s.
type Handle interface {
	Evaluate(t time.Time) (elements.State, error)
}

// Options bound the fixed-point search.
type Options struct {
	MaxIterations int     // iteration cap (default 100)
	PosTolKm      float64 // position residual tolerance (default 0.1 km)
	VelTolKmS     float64 // velocity residual tolerance (default 1e-3 km/s)
}

// DefaultOptions returns the standard search bounds.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 100,
		PosTolKm:      0.1,
		VelTolKmS:     1e-3,
	}
}

// Result is the outcome of one fit. Exhausting the iteration cap is not an
// error: Converged is false and Record holds the last candidate.
type Result struct {
	Record         tle.Record
	Converged      bool
	Iterations     int
	PosResidualKm  float64
	VelResidualKmS float64
}

// Fitter drives the fixed-point search against a propagator.
type Fitter struct {
	prop   Propagator
	opts   Options
	logger *slog.Logger
}

// New creates a Fitter. Zero fields in opts fall back to the defaults.
func New(prop Propagator, opts Options, logger *slog.Logger) *Fitter {
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.PosTolKm <= 0 {
		opts.PosTolKm = def.PosTolKm
	}
	if opts.VelTolKmS <= 0 {
		opts.VelTolKmS = def.VelTolKmS
	}
	return &Fitter{prop: prop, opts: opts, logger: logger}
}

// Propagate fits a new element set valid at target that reproduces the
// state obtained by propagating rec to target. The input record supplies
// the identity and drag fields of the result.
func (f *Fitter) Propagate(rec tle.Record, target time.Time) (Result, error) {
	_, line1, line2 := tle.Encode(rec)
	h, err := f.prop.Init(line1, line2)
	if err != nil {
		metrics.RecordFit(0, metrics.OutcomeError)
		return Result{}, fmt.Errorf("initializing reference elements: %w", err)
	}
	ref, err := h.Evaluate(target)
	if err != nil {
		metrics.RecordFit(0, metrics.OutcomeError)
		return Result{}, fmt.Errorf("propagating reference state: %w", err)
	}
	return f.fit(rec, target, ref.Position, ref.Velocity)
}

// FromState fits an element set at epoch matching the supplied TEME state
// directly. Identity fields not derivable from the state use defaults.
func (f *Fitter) FromState(satNum int, epoch time.Time, r, v elements.Vec3) (Result, error) {
	template := tle.Record{
		Name:           fmt.Sprintf("OBJECT %05d", satNum),
		SatNum:         satNum,
		Classification: 'U',
		IntlDesig:      "",
	}
	return f.fit(template, epoch, r, v)
}

// fit runs the fixed-point loop: reference state (r0, v0) at target, working
// vector corrected by the raw residual each round. The first-order update is
// deliberately not a Newton step; for highly eccentric or resonant orbits it
// may oscillate, which surfaces as Converged=false.
func (f *Fitter) fit(template tle.Record, target time.Time, r0, v0 elements.Vec3) (Result, error) {
	epochYear, epochDay := tle.TimeEpoch(target)

	rWork, vWork := r0, v0
	var res Result

	for i := 0; i < f.opts.MaxIterations; i++ {
		rec, err := elements.FromState(rWork, vWork, epochYear, epochDay, template)
		if err != nil {
			metrics.RecordFit(i, metrics.OutcomeError)
			return Result{}, fmt.Errorf("extracting elements: %w", err)
		}

		_, line1, line2 := tle.Encode(rec)
		h, err := f.prop.Init(line1, line2)
		if err != nil {
			metrics.RecordFit(i, metrics.OutcomeError)
			return Result{}, fmt.Errorf("initializing candidate elements: %w", err)
		}
		st, err := h.Evaluate(target)
		if err != nil {
			// A failed propagation is surfaced, never treated as a
			// zero residual.
			metrics.RecordFit(i, metrics.OutcomeError)
			return Result{}, fmt.Errorf("propagating candidate: %w", err)
		}

		dr := r0.Sub(st.Position)
		dv := v0.Sub(st.Velocity)

		res = Result{
			Record:         rec,
			Iterations:     i + 1,
			PosResidualKm:  dr.Norm(),
			VelResidualKmS: dv.Norm(),
		}

		if res.PosResidualKm < f.opts.PosTolKm && res.VelResidualKmS < f.opts.VelTolKmS {
			res.Converged = true
			metrics.RecordFit(res.Iterations, metrics.OutcomeConverged)
			f.logger.Debug("fit converged",
				"satnum", rec.SatNum,
				"iterations", res.Iterations,
				"dr_km", res.PosResidualKm,
				"dv_km_s", res.VelResidualKmS,
			)
			return res, nil
		}

		rWork = rWork.Add(dr)
		vWork = vWork.Add(dv)
	}

	metrics.RecordFit(res.Iterations, metrics.OutcomeExhausted)
	f.logger.Warn("fit exhausted iteration budget",
		"satnum", template.SatNum,
		"iterations", res.Iterations,
		"dr_km", res.PosResidualKm,
		"dv_km_s", res.VelResidualKmS,
	)
	return res, nil
}
