package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/motion_cube/internal/quat"
)

func TestCalibration_DefaultIsIdentity(t *testing.T) {
	cal := NewCalibration()
	raw := quat.FromEuler(0.5, -0.3, 0.2)

	got := cal.Apply(raw)
	assert.InDelta(t, raw.W, got.W, 1e-12)
	assert.InDelta(t, raw.X, got.X, 1e-12)
	assert.InDelta(t, raw.Y, got.Y, 1e-12)
	assert.InDelta(t, raw.Z, got.Z, 1e-12)
}

func TestCalibration_CapturedPoseBecomesNeutral(t *testing.T) {
	neutralPose := quat.FromEuler(0.7, 0.2, -0.4)
	cal := NewCalibration()
	cal.Capture(neutralPose)

	// Applying the captured pose itself must yield identity: the
	// device reads as level exactly where it was calibrated.
	got := cal.Apply(neutralPose)
	assert.InDelta(t, 1.0, got.W, 1e-9)
	assert.InDelta(t, 0.0, got.X, 1e-9)
	assert.InDelta(t, 0.0, got.Y, 1e-9)
	assert.InDelta(t, 0.0, got.Z, 1e-9)
}

func TestCalibration_WorldFrameUndoesNeutral(t *testing.T) {
	cal := NewCalibration()
	cal.Capture(quat.FromEuler(math.Pi/2, 0, 0))

	raw := quat.FromEuler(math.Pi/2+0.3, 0, 0)
	world := cal.WorldFrame(cal.Apply(raw))

	// neutral⁻¹ * (neutral * raw) is raw again, so acceleration is
	// expressed in the same frame no matter what was calibrated.
	assert.InDelta(t, raw.W, world.W, 1e-9)
	assert.InDelta(t, raw.Z, world.Z, 1e-9)
}

func TestCalibration_Reset(t *testing.T) {
	cal := NewCalibration()
	cal.Capture(quat.FromEuler(1, 1, 1))
	cal.Reset()
	assert.Equal(t, quat.Identity(), cal.Neutral())
}

func TestSettings_Validate(t *testing.T) {
	valid := DefaultSettings()
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero rate", func(s *Settings) { s.SampleRateHz = 0 }},
		{"negative rate", func(s *Settings) { s.SampleRateHz = -1 }},
		{"smoothing too high", func(s *Settings) { s.Smoothing = 0.99 }},
		{"negative smoothing", func(s *Settings) { s.Smoothing = -0.1 }},
		{"damping too high", func(s *Settings) { s.Damping = 0.3 }},
		{"negative damping", func(s *Settings) { s.Damping = -0.01 }},
		{"zero max speed", func(s *Settings) { s.MaxSpeed = 0 }},
		{"zero max range", func(s *Settings) { s.MaxRange = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSettings_BoundaryValuesAccepted(t *testing.T) {
	s := DefaultSettings()
	s.Smoothing = 0.98
	s.Damping = 0.2
	assert.NoError(t, s.Validate())

	s.Smoothing = 0
	s.Damping = 0
	assert.NoError(t, s.Validate())
}
