package session

import (
	"fmt"
	"log"
	"sync"

	"github.com/relabs-tech/motion_cube/internal/motion"
	"github.com/relabs-tech/motion_cube/internal/quat"
	"github.com/relabs-tech/motion_cube/internal/source"
	"github.com/relabs-tech/motion_cube/internal/telemetry"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRunning     Status = "running"
	StatusStopped     Status = "stopped"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
)

// State is the published observable state: one value per accepted
// sample, read-only for every consumer (renderer, HUD, log).
type State struct {
	Timestamp   float64         `json:"t"`
	Orientation quat.Quaternion `json:"orientation"`
	Position    quat.Vec3       `json:"position"`
	Velocity    quat.Vec3       `json:"velocity"`
	Speed       float64         `json:"speed"`
	LatencyMs   float64         `json:"latency_ms"`
}

// Listener receives each published state. Listeners run on the sample
// path and must be fast; anything slow belongs behind a channel.
type Listener func(State)

// StatusListener receives lifecycle transitions.
type StatusListener func(Status, string)

// Session drives the motion pipeline: it subscribes to a sample
// source, feeds each sample through the integrator exactly once and in
// order, publishes the result, and appends telemetry when enabled.
//
// A single mutex serializes lifecycle operations with the sample
// callback. Cancellation uses a generation counter: every Start and
// Stop bumps it, and a callback whose generation no longer matches is
// a late delivery and gets dropped, so a stale in-flight sample can
// never overwrite freshly reset state.
type Session struct {
	src     source.Source
	logPath string

	mu        sync.Mutex
	settings  motion.Settings
	cal       *motion.Calibration
	integ     *motion.Integrator
	sub       source.Subscription
	sink      *telemetry.CSVSink
	gen       uint64
	status    Status
	statusMsg string

	lastTimestamp float64
	lastLatency   float64

	listeners       []Listener
	statusListeners []StatusListener
}

// New creates an idle session. logPath is where the CSV sink goes when
// logging is enabled.
func New(src source.Source, settings motion.Settings, logPath string) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	cal := motion.NewCalibration()
	return &Session{
		src:      src,
		logPath:  logPath,
		settings: settings,
		cal:      cal,
		integ:    motion.NewIntegrator(cal),
		status:   StatusIdle,
	}, nil
}

// Notify registers a state listener. Register before Start.
func (s *Session) Notify(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// NotifyStatus registers a lifecycle listener. Register before Start.
func (s *Session) NotifyStatus(l StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusListeners = append(s.statusListeners, l)
}

// Start resets the kinematic state and time base, opens the telemetry
// sink when logging is configured, and subscribes to the source at the
// configured rate. Any prior subscription is cancelled first, so a
// restart is always stop-then-start, never an incremental resume.
//
// When the source reports it cannot produce motion data the session
// transitions to the terminal Unavailable status without running.
func (s *Session) Start() error {
	s.Stop()

	s.mu.Lock()
	if !s.src.Available() {
		s.setStatusLocked(StatusUnavailable, "sample source cannot provide motion data")
		s.mu.Unlock()
		return fmt.Errorf("session: sample source unavailable")
	}

	s.integ.Reset()
	s.lastTimestamp = 0
	s.lastLatency = 0

	if s.settings.LogEnabled && s.logPath != "" {
		sink, err := telemetry.OpenCSV(s.logPath)
		if err != nil {
			// Telemetry is best-effort; run without it.
			log.Printf("session: telemetry disabled: %v", err)
		} else {
			s.sink = sink
		}
	}

	s.gen++
	gen := s.gen
	rate := s.settings.SampleRateHz
	s.mu.Unlock()

	sub, err := s.src.Subscribe(rate, func(smp motion.Sample, err error) {
		s.onSample(gen, smp, err)
	})

	s.mu.Lock()
	if err != nil {
		s.setStatusLocked(StatusError, err.Error())
		s.mu.Unlock()
		return fmt.Errorf("session: subscribe: %w", err)
	}
	if s.gen != gen {
		// A concurrent Stop or Start won the race; this subscription
		// is already obsolete.
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.sub = sub
	s.setStatusLocked(StatusRunning, "")
	s.mu.Unlock()
	return nil
}

// Stop cancels the subscription and closes the telemetry sink.
// Idempotent: safe to call at any time, including when already
// stopped. Cancellation happens outside the session lock (Cancel waits
// for in-flight callbacks, which need the lock to notice they are
// stale).
func (s *Session) Stop() {
	s.mu.Lock()
	s.gen++
	sub := s.sub
	s.sub = nil
	sink := s.sink
	s.sink = nil
	if s.status == StatusRunning || s.status == StatusError {
		s.setStatusLocked(StatusStopped, "")
	}
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Printf("session: telemetry close: %v", err)
		}
	}
}

// Toggle stops when running, starts otherwise.
func (s *Session) Toggle() error {
	s.mu.Lock()
	running := s.status == StatusRunning
	s.mu.Unlock()

	if running {
		s.Stop()
		return nil
	}
	return s.Start()
}

// Recenter zeroes velocity and position without touching orientation
// or calibration, then republishes so the cube snaps back immediately.
func (s *Session) Recenter() {
	s.mu.Lock()
	s.integ.Recenter()
	st := s.snapshotLocked()
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}

// Calibrate captures the source's current orientation as neutral.
// Returns false (a recoverable no-op, not an error) when the source
// has not produced an orientation yet.
func (s *Session) Calibrate() bool {
	current, ok := s.src.CurrentOrientation()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.cal.Capture(current)
	s.mu.Unlock()
	return true
}

// SetSampleRate changes the delivery rate. A running session is fully
// restarted so the source is reconfigured; otherwise the rate takes
// effect on the next start.
func (s *Session) SetSampleRate(rateHz float64) error {
	if rateHz <= 0 {
		return fmt.Errorf("session: sample rate must be positive, got %g", rateHz)
	}

	s.mu.Lock()
	s.settings.SampleRateHz = rateHz
	running := s.status == StatusRunning
	s.mu.Unlock()

	if !running {
		return nil
	}
	s.Stop()
	return s.Start()
}

// SetSmoothing takes effect on the next sample; no restart.
func (s *Session) SetSmoothing(alpha float64) error {
	if alpha < 0 || alpha > motion.MaxSmoothing {
		return fmt.Errorf("session: smoothing must be in [0, %g], got %g", motion.MaxSmoothing, alpha)
	}
	s.mu.Lock()
	s.settings.Smoothing = alpha
	s.mu.Unlock()
	return nil
}

// SetDamping takes effect on the next sample; no restart.
func (s *Session) SetDamping(d float64) error {
	if d < 0 || d > motion.MaxDamping {
		return fmt.Errorf("session: damping must be in [0, %g], got %g", motion.MaxDamping, d)
	}
	s.mu.Lock()
	s.settings.Damping = d
	s.mu.Unlock()
	return nil
}

// SetLogging opens or closes the sink in place. Kinematic state is
// untouched; toggling the log must not reset the cube.
func (s *Session) SetLogging(enabled bool) {
	s.mu.Lock()
	s.settings.LogEnabled = enabled
	running := s.status == StatusRunning

	var toClose *telemetry.CSVSink
	if !enabled && s.sink != nil {
		toClose = s.sink
		s.sink = nil
	}
	if enabled && running && s.sink == nil && s.logPath != "" {
		sink, err := telemetry.OpenCSV(s.logPath)
		if err != nil {
			log.Printf("session: telemetry disabled: %v", err)
		} else {
			s.sink = sink
		}
	}
	s.mu.Unlock()

	if toClose != nil {
		if err := toClose.Close(); err != nil {
			log.Printf("session: telemetry close: %v", err)
		}
	}
}

// Status returns the lifecycle state and its message, if any.
func (s *Session) Status() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusMsg
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() motion.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Snapshot returns the current published state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// onSample is the single consumer of the source stream.
func (s *Session) onSample(gen uint64, smp motion.Sample, err error) {
	s.mu.Lock()
	if gen != s.gen {
		// Late delivery from a cancelled subscription.
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Transient sensor error: keep the last-known state (stale but
		// valid beats a reset), surface the message, and wait for the
		// operator. Running again requires an explicit restart.
		s.setStatusLocked(StatusError, err.Error())
		s.mu.Unlock()
		return
	}
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}

	res := s.integ.Step(smp, s.settings)
	s.lastTimestamp = smp.Timestamp
	s.lastLatency = float64(res.Latency.Microseconds()) / 1000.0
	st := State{
		Timestamp:   smp.Timestamp,
		Orientation: s.integ.Orientation(),
		Position:    s.integ.Position(),
		Velocity:    s.integ.Velocity(),
		Speed:       res.Speed,
		LatencyMs:   s.lastLatency,
	}
	sink := s.sink
	listeners := s.listeners
	s.mu.Unlock()

	// dt=0 samples carry no usable velocity information; only dt>0
	// samples are eligible for telemetry.
	if res.Loggable && sink != nil {
		sink.Append(telemetry.Record{
			Timestamp:   smp.Timestamp,
			Orientation: st.Orientation,
			Accel:       smp.Accel,
			Position:    st.Position,
		})
	}

	for _, l := range listeners {
		l(st)
	}
}

// snapshotLocked rebuilds the published state from the integrator. The
// timestamp is carried from the last accepted sample so an off-cycle
// republish (recenter) never rewinds consumers to t=0.
func (s *Session) snapshotLocked() State {
	return State{
		Timestamp:   s.lastTimestamp,
		Orientation: s.integ.Orientation(),
		Position:    s.integ.Position(),
		Velocity:    s.integ.Velocity(),
		Speed:       s.integ.Velocity().Norm(),
		LatencyMs:   s.lastLatency,
	}
}

// setStatusLocked transitions the lifecycle state and notifies
// listeners. Caller holds s.mu.
func (s *Session) setStatusLocked(status Status, msg string) {
	if s.status == status && s.statusMsg == msg {
		return
	}
	s.status = status
	s.statusMsg = msg
	for _, l := range s.statusListeners {
		go l(status, msg)
	}
	if msg != "" {
		log.Printf("session: status %s: %s", status, msg)
	} else {
		log.Printf("session: status %s", status)
	}
}
