package quat

import "math"

// Vec3 is a 3-component vector (meters or m/s² depending on use).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v+w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Norm returns the vector magnitude.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Clamp limits each component to [-limit, limit].
func (v Vec3) Clamp(limit float64) Vec3 {
	return Vec3{
		X: clamp(v.X, limit),
		Y: clamp(v.Y, limit),
		Z: clamp(v.Z, limit),
	}
}

func clamp(f, limit float64) float64 {
	if f > limit {
		return limit
	}
	if f < -limit {
		return -limit
	}
	return f
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}
