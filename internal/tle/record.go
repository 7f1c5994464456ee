// Package tle implements the NORAD two-line element text format: a
// fixed-column codec with the mod-10 checksum and compressed scientific
// notation, and the two-digit-year epoch conversion the format requires.
package tle

import (
	"errors"
	"time"
)

// ErrFormat reports a malformed or truncated element set line.
var ErrFormat = errors.New("tle: malformed element set")

// Record is a parsed two-line element set. Records are immutable once
// constructed; refits produce new records rather than mutating in place.
type Record struct {
	Name           string
	SatNum         int    // catalog number [0,99999]
	Classification byte   // 'U', 'C' or 'S'
	IntlDesig      string // international designator, trailing spaces trimmed

	EpochYear int       // two-digit year [0,99]
	EpochDay  float64   // fractional day of year [1.0,367.0)
	Epoch     time.Time // derived from EpochYear/EpochDay

	NDot    float64 // first derivative of mean motion, rev/day²
	NDDot   float64 // second derivative of mean motion, rev/day³
	Bstar   float64 // drag term, 1/earth-radii
	EphType int
	ElNum   int // element set number [0,9999]

	InclDeg     float64 // inclination, degrees [0,180]
	RAANDeg     float64 // right ascension of ascending node, degrees [0,360)
	Ecc         float64 // eccentricity [0,1)
	ArgpDeg     float64 // argument of perigee, degrees [0,360)
	MeanAnomDeg float64 // mean anomaly, degrees [0,360)
	MeanMotion  float64 // revolutions per day, >0
	RevNum      int     // revolution number at epoch [0,99999]
}
