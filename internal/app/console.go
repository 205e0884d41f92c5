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
	"github.com/relabs-tech/motion_cube/internal/session"
)

// RunConsole subscribes to the published state and prints one line per
// sample, plus session status transitions.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st session.State
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STATE] t=%8.3f  q=(%6.3f %6.3f %6.3f %6.3f)  p=(%6.3f %6.3f %6.3f)  v=%5.2fm/s  lat=%.2fms\n",
			st.Timestamp,
			st.Orientation.X, st.Orientation.Y, st.Orientation.Z, st.Orientation.W,
			st.Position.X, st.Position.Y, st.Position.Z,
			st.Speed, st.LatencyMs,
		)
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sm statusMessage
		if err := json.Unmarshal(msg.Payload(), &sm); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		if sm.Message != "" {
			fmt.Printf("[SESS ] %s: %s\n", sm.Status, sm.Message)
		} else {
			fmt.Printf("[SESS ] %s\n", sm.Status)
		}
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
