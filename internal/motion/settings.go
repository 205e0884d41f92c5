package motion

import "fmt"

// Limits for the tunable filter parameters. Smoothing above 0.98 lags
// so far behind the sensor that the cube appears frozen; damping above
// 0.2 per tick kills velocity faster than any real drift justifies.
const (
	MaxSmoothing = 0.98
	MaxDamping   = 0.2
)

// Settings holds the integration parameters. A Settings value is
// treated as immutable during a single integration step; the session
// controller swaps values between steps.
type Settings struct {
	SampleRateHz float64 // sensor delivery rate, > 0
	Smoothing    float64 // orientation low-pass factor α, [0, 0.98]
	Damping      float64 // per-tick velocity decay d, [0, 0.2]
	MaxSpeed     float64 // hard speed ceiling in m/s, > 0
	MaxRange     float64 // per-axis position bound in m, > 0
	LogEnabled   bool    // write a CSV record per accepted sample
}

// DefaultSettings returns the values the tracker starts with when the
// config file leaves them unset.
func DefaultSettings() Settings {
	return Settings{
		SampleRateHz: 60,
		Smoothing:    0.8,
		Damping:      0.05,
		MaxSpeed:     5,
		MaxRange:     2,
	}
}

// Validate checks every parameter range.
func (s Settings) Validate() error {
	if s.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", s.SampleRateHz)
	}
	if s.Smoothing < 0 || s.Smoothing > MaxSmoothing {
		return fmt.Errorf("smoothing must be in [0, %g], got %g", MaxSmoothing, s.Smoothing)
	}
	if s.Damping < 0 || s.Damping > MaxDamping {
		return fmt.Errorf("damping must be in [0, %g], got %g", MaxDamping, s.Damping)
	}
	if s.MaxSpeed <= 0 {
		return fmt.Errorf("max speed must be positive, got %g", s.MaxSpeed)
	}
	if s.MaxRange <= 0 {
		return fmt.Errorf("max range must be positive, got %g", s.MaxRange)
	}
	return nil
}
