package elements

import (
	"errors"
	"math"

	"github.com/star/tlefit/internal/tle"
)

// Canonical units per Boulet, "Methods of Orbit Determination for the
// Microcomputer", ch. 4.4: distances in Earth radii, times such that the
// gravitational parameter is 1.
const (
	xke    = 0.07436680 // Gaussian gravitational constant, (earth radii)^1.5/min
	xkmper = 6378.135   // Earth equatorial radius, km
	xmnpda = 1440.0     // minutes per day
	twoPi  = 2 * math.Pi
)

// ErrDegenerateOrbit reports a state vector this formulation cannot invert:
// an exactly circular orbit makes the perigee direction undefined.
var ErrDegenerateOrbit = errors.New("elements: degenerate orbit")

// FromState computes the six Keplerian mean elements for the osculating
// state (r in km, v in km/s, TEME) and returns a Record at the given epoch.
// Identity and drag fields not derivable from the state (name, designator,
// classification, satellite number, ndot/nddot/bstar, element and
// revolution numbers) are carried over from template.
//
// Exactly equatorial orbits get the node vector forced to (1,0,0) so the
// ascending-node angle stays defined; no broader degeneracy handling is
// attempted.
func FromState(r, v Vec3, epochYear int, epochDay float64, template tle.Record) (tle.Record, error) {
	// To canonical units.
	r = r.Scale(1.0 / xkmper)
	v = v.Scale(86400.0 / (xke * xkmper * xmnpda))

	rm := r.Norm()
	vm2 := v.Dot(v)
	rvm := r.Dot(v)
	h := r.Cross(v)
	chi := h.Dot(h)

	n := Vec3{X: 0, Y: 0, Z: 1}.Cross(h)
	if n.X == 0 && n.Y == 0 {
		n.X = 1
	}
	nm := n.Norm()

	e := r.Scale(vm2 - 1.0/rm).Sub(v.Scale(rvm))
	ecc := e.Norm()
	if ecc == 0 {
		return tle.Record{}, ErrDegenerateOrbit
	}

	a := 1.0 / (2.0/rm - vm2)

	incl := math.Acos(h.Z / h.Norm())
	node := math.Mod(math.Atan2(n.Y, n.X), twoPi)
	if node < 0 {
		node += twoPi
	}

	argp := math.Mod(math.Acos(n.Dot(e)/(nm*ecc)), twoPi)
	if e.Z < 0 {
		argp = twoPi - argp
	}

	// Eccentric anomaly from surrogate coordinates; sx and cx are sin E
	// and cos E by construction, so E - ecc*sx is Kepler's equation.
	xp := (chi - rm) / ecc
	yp := rvm / ecc * math.Sqrt(chi)
	b := a * math.Sqrt(1-ecc*ecc)
	cx := xp/a + ecc
	sx := yp / b
	ea := math.Atan2(sx, cx)
	m := math.Mod(ea-ecc*sx, twoPi)
	if m < 0 {
		m += twoPi
	}

	meanMotion := xke * math.Sqrt(1.0/(a*a*a)) * xmnpda / twoPi

	rec := template
	rec.EpochYear = epochYear
	rec.EpochDay = epochDay
	rec.Epoch = tle.EpochTime(epochYear, epochDay)
	rec.InclDeg = incl * 180.0 / math.Pi
	rec.RAANDeg = node * 180.0 / math.Pi
	rec.Ecc = ecc
	rec.ArgpDeg = argp * 180.0 / math.Pi
	rec.MeanAnomDeg = m * 180.0 / math.Pi
	rec.MeanMotion = meanMotion

	return rec, nil
}
