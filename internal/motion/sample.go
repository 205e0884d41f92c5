package motion

import "github.com/relabs-tech/motion_cube/internal/quat"

// Sample is a single sensor reading: a monotonic timestamp in seconds,
// the raw device orientation, and the gravity-removed acceleration in
// the device's local frame. Samples are consumed once and not retained.
type Sample struct {
	Timestamp   float64         `json:"t"`
	Orientation quat.Quaternion `json:"orientation"`
	Accel       quat.Vec3       `json:"accel"`
}
