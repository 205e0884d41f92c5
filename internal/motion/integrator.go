package motion

import (
	"time"

	"github.com/relabs-tech/motion_cube/internal/quat"
)

// Integrator is the core per-sample state machine. It owns the
// smoothed orientation and the velocity/position estimate and is the
// only writer of them; samples must be fed strictly one at a time in
// non-decreasing timestamp order.
type Integrator struct {
	cal *Calibration

	orientation quat.Quaternion
	velocity    quat.Vec3
	position    quat.Vec3

	lastTimestamp float64
	hasTimestamp  bool
}

// StepResult carries the per-sample metrics derived during Step.
type StepResult struct {
	DT        float64         // elapsed sensor time, seconds
	Speed     float64         // ‖velocity‖ after the step, m/s
	Latency   time.Duration   // wall-clock cost of the step, informational
	Loggable  bool            // true only when DT > 0
	Corrected quat.Quaternion // calibration-corrected raw orientation
}

// NewIntegrator returns an integrator at rest with identity
// orientation, sharing the given calibration.
func NewIntegrator(cal *Calibration) *Integrator {
	return &Integrator{
		cal:         cal,
		orientation: quat.Identity(),
	}
}

// Step consumes one sample under the given settings.
//
// The first sample only establishes the time base (dt=0) and smooths
// orientation; it never moves velocity or position. Out-of-order or
// duplicate timestamps degenerate to dt=0 the same way instead of
// producing a negative dt.
func (it *Integrator) Step(s Sample, cfg Settings) StepResult {
	began := time.Now()

	var dt float64
	if it.hasTimestamp {
		dt = s.Timestamp - it.lastTimestamp
		if dt < 0 {
			dt = 0
		}
	}
	it.lastTimestamp = s.Timestamp
	it.hasTimestamp = true

	corrected := it.cal.Apply(s.Orientation)

	if dt > 0 {
		// Rotate local acceleration into the world frame, then
		// explicit-Euler integrate.
		world := it.cal.WorldFrame(corrected).Rotate(s.Accel)
		v := it.velocity.Add(world.Scale(dt))

		// A sensor spike or numerical blow-up must not propagate
		// forever; a non-finite velocity resets to zero.
		if !v.IsFinite() {
			v = quat.Vec3{}
		}

		// Hard ceiling: rescale to exactly MaxSpeed along the same
		// direction, never drop the sample.
		if speed := v.Norm(); speed > cfg.MaxSpeed {
			v = v.Scale(cfg.MaxSpeed / speed)
		}

		// Per-tick friction, deliberately not scaled by dt.
		factor := 1 - cfg.Damping
		if factor < 0 {
			factor = 0
		}
		v = v.Scale(factor)

		it.velocity = v
		it.position = it.position.Add(v.Scale(dt)).Clamp(cfg.MaxRange)
	}

	// α=0 jumps straight to the corrected sample, α→0.98 is
	// lag-dominant. The fraction toward the new sample is (1-α).
	it.orientation = it.orientation.Slerp(corrected, 1-cfg.Smoothing)

	return StepResult{
		DT:        dt,
		Speed:     it.velocity.Norm(),
		Latency:   time.Since(began),
		Loggable:  dt > 0,
		Corrected: corrected,
	}
}

// Reset zeroes velocity, position and the time base and restores the
// identity orientation. Called on every session start.
func (it *Integrator) Reset() {
	it.orientation = quat.Identity()
	it.velocity = quat.Vec3{}
	it.position = quat.Vec3{}
	it.lastTimestamp = 0
	it.hasTimestamp = false
}

// Recenter zeroes velocity and position only, leaving orientation and
// the time base untouched. User-triggered drift correction.
func (it *Integrator) Recenter() {
	it.velocity = quat.Vec3{}
	it.position = quat.Vec3{}
}

// Orientation returns the current smoothed orientation.
func (it *Integrator) Orientation() quat.Quaternion { return it.orientation }

// Velocity returns the current velocity estimate.
func (it *Integrator) Velocity() quat.Vec3 { return it.velocity }

// Position returns the current bounded position estimate.
func (it *Integrator) Position() quat.Vec3 { return it.position }
