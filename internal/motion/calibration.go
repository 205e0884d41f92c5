package motion

import "github.com/relabs-tech/motion_cube/internal/quat"

// Calibration holds the neutral orientation offset. Capturing a
// "neutral" pose stores its inverse; every later raw orientation is
// reported relative to that pose, so the cube reads as level whenever
// the device returns to the captured position.
type Calibration struct {
	neutral quat.Quaternion // inverse of the captured neutral pose
}

// NewCalibration returns a calibration with no offset (identity).
func NewCalibration() *Calibration {
	return &Calibration{neutral: quat.Identity()}
}

// Capture stores the given orientation as the neutral reference.
// Since the input is a unit quaternion, its conjugate is its inverse.
func (c *Calibration) Capture(current quat.Quaternion) {
	c.neutral = current.Normalized().Conjugate()
}

// Reset clears the neutral offset back to identity.
func (c *Calibration) Reset() {
	c.neutral = quat.Identity()
}

// Apply corrects a raw orientation by the neutral offset:
// corrected = neutralInverse * raw.
func (c *Calibration) Apply(raw quat.Quaternion) quat.Quaternion {
	return c.neutral.Mul(raw).Normalized()
}

// WorldFrame recovers the raw-relative rotation from a corrected
// orientation by undoing the neutral offset:
// world = neutral⁻¹ * corrected. Rotating acceleration with this
// quaternion keeps the world frame consistent no matter which pose was
// calibrated against.
func (c *Calibration) WorldFrame(corrected quat.Quaternion) quat.Quaternion {
	return c.neutral.Conjugate().Mul(corrected).Normalized()
}

// Neutral returns the stored neutral inverse, mainly for inspection.
func (c *Calibration) Neutral() quat.Quaternion {
	return c.neutral
}
