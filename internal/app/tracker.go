package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_cube/internal/config"
	"github.com/relabs-tech/motion_cube/internal/motion"
	"github.com/relabs-tech/motion_cube/internal/session"
	"github.com/relabs-tech/motion_cube/internal/source"
)

// ControlMessage is the JSON command format on the control topic.
type ControlMessage struct {
	Action  string  `json:"action"` // start, stop, toggle, recenter, calibrate, rate, smoothing, damping, logging
	Value   float64 `json:"value,omitempty"`
	Enabled bool    `json:"enabled,omitempty"`
}

// statusMessage mirrors session transitions on the status topic.
type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RunTracker wires source → session → MQTT: every accepted sample is
// published as retained JSON state, session transitions go to the
// status topic, and commands arrive on the control topic.
func RunTracker() error {
	log.Println("starting motion-cube tracker (samples → MQTT)")

	cfg := config.Get()

	// ---- 1) Build the sample source ----
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	settings := motion.Settings{
		SampleRateHz: cfg.SampleRateHz,
		Smoothing:    cfg.Smoothing,
		Damping:      cfg.Damping,
		MaxSpeed:     cfg.MaxSpeed,
		MaxRange:     cfg.MaxRange,
		LogEnabled:   cfg.LogEnabled,
	}

	sess, err := session.New(src, settings, cfg.LogPath)
	if err != nil {
		return err
	}

	// ---- 2) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTracker)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("tracker: connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 3) Publish state and status ----
	// State publishing must not delay the sample path, so the token is
	// not waited on; a dropped frame is cheaper than a stalled filter.
	sess.Notify(func(st session.State) {
		payload, err := json.Marshal(st)
		if err != nil {
			log.Printf("tracker: state marshal error: %v", err)
			return
		}
		client.Publish(cfg.TopicState, 0, true, payload)
	})

	sess.NotifyStatus(func(status session.Status, msg string) {
		payload, err := json.Marshal(statusMessage{Status: string(status), Message: msg})
		if err != nil {
			log.Printf("tracker: status marshal error: %v", err)
			return
		}
		if token := client.Publish(cfg.TopicStatus, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("tracker: status publish error: %v", token.Error())
		}
	})

	// ---- 4) Accept control commands ----
	token := client.Subscribe(cfg.TopicControl, 0, func(_ mqtt.Client, m mqtt.Message) {
		var cm ControlMessage
		if err := json.Unmarshal(m.Payload(), &cm); err != nil {
			log.Printf("tracker: control unmarshal error: %v", err)
			return
		}
		dispatchControl(sess, cm)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("tracker: subscribed to control topic %s", cfg.TopicControl)

	// ---- 5) Run until interrupted ----
	if err := sess.Start(); err != nil {
		// Unavailable is terminal but the process stays up so the
		// operator can see the status; anything else is fatal here.
		status, msg := sess.Status()
		if status != session.StatusUnavailable {
			return err
		}
		log.Printf("tracker: not running: %s", msg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("tracker: shutting down")
	sess.Stop()
	return nil
}

func buildSource(cfg *config.Config) (source.Source, error) {
	switch cfg.SourceKind {
	case "mock":
		log.Println("tracker: using mock sample source")
		return source.NewMockSource(), nil
	case "serial":
		log.Printf("tracker: using serial attitude source on %s", cfg.SerialPort)
		return source.NewSerialSource(cfg.SerialPort, cfg.SerialBaud), nil
	case "imu":
		log.Printf("tracker: using MPU-9250 on %s", cfg.IMUSPIDevice)
		return source.NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
	}
}

func dispatchControl(sess *session.Session, cm ControlMessage) {
	var err error
	switch cm.Action {
	case "start":
		err = sess.Start()
	case "stop":
		sess.Stop()
	case "toggle":
		err = sess.Toggle()
	case "recenter":
		sess.Recenter()
	case "calibrate":
		if !sess.Calibrate() {
			log.Println("tracker: calibrate skipped, no orientation available yet")
		}
	case "rate":
		err = sess.SetSampleRate(cm.Value)
	case "smoothing":
		err = sess.SetSmoothing(cm.Value)
	case "damping":
		err = sess.SetDamping(cm.Value)
	case "logging":
		sess.SetLogging(cm.Enabled)
	default:
		log.Printf("tracker: unknown control action %q", cm.Action)
		return
	}
	if err != nil {
		log.Printf("tracker: control %q: %v", cm.Action, err)
	}
}
