// Package propagation adapts the go-satellite SGP4 implementation to the
// fit package's Propagator interface.
package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/tlefit/internal/elements"
	"github.com/star/tlefit/internal/fit"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Selected for: most community adoption (92+ stars), pure Go (no CGO),
// battle-tested since 2016, explicit TEME output.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. We detect propagation failures by checking output
// for NaN/Inf and unreasonable position magnitudes.

// SGP4 initializes go-satellite propagators from element set lines. The
// WGS72 gravity model matches the canonical constants used by the element
// extractor.
type SGP4 struct{}

// NewSGP4 returns the SGP4 adapter.
func NewSGP4() SGP4 { return SGP4{} }

// Init parses and initializes one element set.
//
// Pre-validates TLE format before passing to the library, because
// go-satellite calls log.Fatal on malformed input (which would kill the
// process).
func (SGP4) Init(line1, line2 string) (fit.Handle, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE: %w", err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}
	return sgp4Handle{sat: sat}, nil
}

type sgp4Handle struct {
	sat satellite.Satellite
}

// Evaluate propagates to t and returns the TEME state in km and km/s.
// go-satellite takes whole seconds, so sub-second precision is truncated.
func (h sgp4Handle) Evaluate(t time.Time) (elements.State, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(h.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return elements.State{}, fmt.Errorf("sgp4 propagation failed: output is NaN/Inf")
	}

	// Sanity check: position magnitude should be between ~6200km and ~50000km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return elements.State{}, fmt.Errorf("sgp4 propagation failed: unreasonable position magnitude %.1f km", mag)
	}

	return elements.State{
		Position: elements.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: elements.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
		Epoch:    t,
	}, nil
}

// validateTLELines performs basic format validation on TLE lines.
// This prevents passing garbage to go-satellite which calls log.Fatal on
// parse errors.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}
