package source

import (
	"github.com/relabs-tech/motion_cube/internal/motion"
	"github.com/relabs-tech/motion_cube/internal/quat"
)

// Callback receives either a sample or a delivery error, never both.
type Callback func(motion.Sample, error)

// Subscription is an active sample stream. Cancel stops delivery and
// does not return while a callback is still in flight, so a caller
// holding its own lock across Cancel is guaranteed no late sample will
// mutate freshly reset state.
type Subscription interface {
	Cancel()
}

// Source is anything that can provide motion samples over time:
// mock source, serial attitude unit, IMU over SPI, maybe a replay
// source from file later.
type Source interface {
	// Available reports whether the source can produce motion data at
	// all. A false answer is terminal for this process.
	Available() bool

	// Subscribe begins delivering samples at roughly rateHz to fn.
	// Sources paced by external hardware may ignore the rate hint.
	Subscribe(rateHz float64, fn Callback) (Subscription, error)

	// CurrentOrientation returns the most recent raw orientation, for
	// on-demand calibration. ok is false before the first sample.
	CurrentOrientation() (q quat.Quaternion, ok bool)
}
