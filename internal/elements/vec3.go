// Package elements computes classical Keplerian mean elements from a
// Cartesian TEME state vector, producing a two-line element record.
package elements

import (
	"math"
	"time"
)

// Vec3 is a fixed-size 3-vector. Components are in kilometers or km/s
// depending on context.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns a + b.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

// Scale returns s * a.
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{s * a.X, s * a.Y, s * a.Z}
}

// Dot returns the scalar product a · b.
func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Cross returns the vector product a × b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Norm returns the Euclidean length of a.
func (a Vec3) Norm() float64 {
	return math.Sqrt(a.Dot(a))
}

// State is a position/velocity pair in the TEME frame (km, km/s) at an
// instant.
type State struct {
	Position Vec3
	Velocity Vec3
	Epoch    time.Time
}
