package quat

import "math"

// Near-zero quaternion norms get reset to identity instead of being
// divided through; anything below this tolerance is numerical garbage.
const normToleranceSquared = 1e-12

// Quaternion is a rotation in x,y,z,w component order, matching the
// wire order used on MQTT and in the CSV log.
type Quaternion struct {
	X float64 `json:"qx"`
	Y float64 `json:"qy"`
	Z float64 `json:"qz"`
	W float64 `json:"qw"`
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns q scaled to unit norm. A norm too close to zero
// cannot be normalized meaningfully and yields the identity.
func (q Quaternion) Normalized() Quaternion {
	n2 := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	if n2 < normToleranceSquared {
		return Identity()
	}
	s := 1.0 / math.Sqrt(n2)
	return Quaternion{X: q.X * s, Y: q.Y * s, Z: q.Z * s, W: q.W * s}
}

// Conjugate returns the conjugate of q. For unit quaternions this is
// also the inverse.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Mul returns the Hamilton product q*r (apply r, then q).
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Dot returns the 4-component dot product of q and r.
func (q Quaternion) Dot(r Quaternion) float64 {
	return q.X*r.X + q.Y*r.Y + q.Z*r.Z + q.W*r.W
}

// Rotate applies the rotation q to vector v: q * (0,v) * conj(q).
func (q Quaternion) Rotate(v Vec3) Vec3 {
	p := Quaternion{X: v.X, Y: v.Y, Z: v.Z}
	r := q.Mul(p).Mul(q.Conjugate())
	return Vec3{X: r.X, Y: r.Y, Z: r.Z}
}

// Slerp spherically interpolates from q toward r by fraction t in
// [0,1]. t=0 returns q, t=1 returns r. When q and r point into
// opposite hemispheres, r is negated first so interpolation takes the
// short arc. Nearly parallel inputs fall back to normalized lerp,
// where the sin terms lose precision. The result is always unit norm.
func (q Quaternion) Slerp(r Quaternion, t float64) Quaternion {
	if t <= 0 {
		return q.Normalized()
	}
	if t >= 1 {
		return r.Normalized()
	}

	d := q.Dot(r)
	if d < 0 {
		r = Quaternion{X: -r.X, Y: -r.Y, Z: -r.Z, W: -r.W}
		d = -d
	}

	if d > 0.9995 {
		return Quaternion{
			X: q.X + t*(r.X-q.X),
			Y: q.Y + t*(r.Y-q.Y),
			Z: q.Z + t*(r.Z-q.Z),
			W: q.W + t*(r.W-q.W),
		}.Normalized()
	}

	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	wq := math.Sin((1-t)*theta) / sinTheta
	wr := math.Sin(t*theta) / sinTheta
	return Quaternion{
		X: wq*q.X + wr*r.X,
		Y: wq*q.Y + wr*r.Y,
		Z: wq*q.Z + wr*r.Z,
		W: wq*q.W + wr*r.W,
	}.Normalized()
}

// FromEuler builds a quaternion from ZYX Euler angles in radians
// (yaw about Z, pitch about Y, roll about X).
func FromEuler(yaw, pitch, roll float64) Quaternion {
	// half angles
	yaw *= 0.5
	pitch *= 0.5
	roll *= 0.5

	var (
		cy = math.Cos(yaw)
		sy = math.Sin(yaw)
		cp = math.Cos(pitch)
		sp = math.Sin(pitch)
		cr = math.Cos(roll)
		sr = math.Sin(roll)
	)

	return Quaternion{
		W: cy*cp*cr + sy*sp*sr,
		X: cy*cp*sr - sy*sp*cr,
		Y: cy*sp*cr + sy*cp*sr,
		Z: sy*cp*cr - cy*sp*sr,
	}
}

// IsFinite reports whether every component is a finite number.
func (q Quaternion) IsFinite() bool {
	return isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z) && isFinite(q.W)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
