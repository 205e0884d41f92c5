// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_cube/internal/motion"
	"github.com/relabs-tech/motion_cube/internal/quat"
)

// Accelerometer sensitivity at the default ±2g range.
const accelCountsPerG = 16384.0

const gravity = 9.81 // m/s²

// Low-pass coefficient for the gravity estimate used to split the
// accelerometer reading into gravity + linear acceleration.
const gravityFilter = 0.98

// IMUSource reads an MPU-9250 over SPI and derives an
// accelerometer-only tilt orientation (yaw stays 0 until magnetometer
// fusion lands) plus a gravity-removed linear acceleration.
type IMUSource struct {
	imu *mpu9250.MPU9250

	mu      sync.Mutex
	last    quat.Quaternion
	seen    bool
	gravEst quat.Vec3
	gravSet bool
}

// NewIMUSource initializes the MPU9250 over SPI, e.g. device
// /dev/spidev6.0 with CS on GPIO18.
func NewIMUSource(spiDev, csPin string) (*IMUSource, error) {
	// Initialize periph host once.
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("imu source: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("imu source: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("imu source: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("imu source: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("imu source: initialization: %w", err)
	}

	if _, err := imu.SelfTest(); err != nil {
		log.Printf("warning: imu self-test failed: %v", err)
	}
	if err := imu.Calibrate(); err != nil {
		log.Printf("warning: imu calibration failed: %v", err)
	}

	log.Printf("imu source: MPU-9250 ready on %s (cs=%s)", spiDev, csPin)
	return &IMUSource{imu: imu}, nil
}

// Available reports whether the device initialized.
func (s *IMUSource) Available() bool { return s.imu != nil }

// CurrentOrientation returns the last tilt estimate.
func (s *IMUSource) CurrentOrientation() (quat.Quaternion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.seen
}

// Subscribe starts a ticker goroutine sampling the IMU at rateHz.
func (s *IMUSource) Subscribe(rateHz float64, fn Callback) (Subscription, error) {
	if s.imu == nil {
		return nil, fmt.Errorf("imu source: not initialized")
	}
	interval := time.Duration(float64(time.Second) / rateHz)

	sub := &tickerSubscription{stop: make(chan struct{})}
	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		start := time.Now()

		for {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
				sample, err := s.read(time.Since(start).Seconds())
				fn(sample, err)
			}
		}
	}()

	return sub, nil
}

// read takes one accelerometer reading and converts it into a sample.
func (s *IMUSource) read(timestamp float64) (motion.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("imu source: accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("imu source: accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return motion.Sample{}, fmt.Errorf("imu source: accel Z: %w", err)
	}

	// Scale counts to m/s².
	a := quat.Vec3{
		X: float64(ax) / accelCountsPerG * gravity,
		Y: float64(ay) / accelCountsPerG * gravity,
		Z: float64(az) / accelCountsPerG * gravity,
	}

	// Basic tilt estimation from the accelerometer:
	// roll  = atan2(ay, az)
	// pitch = atan2(-ax, sqrt(ay^2 + az^2))
	roll := math.Atan2(a.Y, a.Z)
	pitch := math.Atan2(-a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z))
	q := quat.FromEuler(0, pitch, roll)

	s.mu.Lock()
	// Track gravity with a slow low-pass so the remainder approximates
	// user acceleration.
	if !s.gravSet {
		s.gravEst = a
		s.gravSet = true
	} else {
		s.gravEst = s.gravEst.Scale(gravityFilter).Add(a.Scale(1 - gravityFilter))
	}
	linear := a.Add(s.gravEst.Scale(-1))
	s.last = q
	s.seen = true
	s.mu.Unlock()

	return motion.Sample{
		Timestamp:   timestamp,
		Orientation: q,
		Accel:       linear,
	}, nil
}
