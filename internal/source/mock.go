// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/motion_cube/internal/motion"
	"github.com/relabs-tech/motion_cube/internal/quat"
)

// MockSource generates smooth synthetic motion so the whole pipeline
// can be exercised without hardware: a slow wobble in roll/pitch, a
// drifting yaw, and a gentle sinusoidal acceleration.
type MockSource struct {
	mu    sync.Mutex
	start time.Time
	last  quat.Quaternion
	seen  bool
}

// NewMockSource creates a mock sample source.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now()}
}

// Available always reports true for the mock.
func (m *MockSource) Available() bool { return true }

// CurrentOrientation returns the orientation of the latest generated
// sample, or ok=false before the first one.
func (m *MockSource) CurrentOrientation() (quat.Quaternion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.seen
}

// Subscribe starts a ticker goroutine producing samples at rateHz.
func (m *MockSource) Subscribe(rateHz float64, fn Callback) (Subscription, error) {
	interval := time.Duration(float64(time.Second) / rateHz)

	sub := &tickerSubscription{stop: make(chan struct{})}
	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
				s := m.generate()
				fn(s, nil)
			}
		}
	}()

	return sub, nil
}

func (m *MockSource) generate() motion.Sample {
	elapsed := time.Since(m.start).Seconds()

	roll := 20 * math.Pi / 180 * math.Sin(elapsed)
	pitch := 15 * math.Pi / 180 * math.Cos(elapsed*0.7)
	yaw := math.Mod(elapsed*0.5, 2*math.Pi)
	q := quat.FromEuler(yaw, pitch, roll)

	m.mu.Lock()
	m.last = q
	m.seen = true
	m.mu.Unlock()

	return motion.Sample{
		Timestamp:   elapsed,
		Orientation: q,
		Accel: quat.Vec3{
			X: 0.4 * math.Sin(elapsed*1.3),
			Y: 0.3 * math.Cos(elapsed*0.9),
			Z: 0.2 * math.Sin(elapsed*0.5),
		},
	}
}

// tickerSubscription stops the producing goroutine and waits for it,
// so Cancel returning means no further callbacks.
type tickerSubscription struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *tickerSubscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
