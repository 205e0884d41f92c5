// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_cube/internal/config"
	"github.com/relabs-tech/motion_cube/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webHub fans the latest state out to connected browsers. Slow clients
// get frames dropped rather than stalling the rest.
type webHub struct {
	mu         sync.RWMutex
	lastState  session.State
	haveState  bool
	lastStatus statusMessage
	haveStatus bool
	clients    map[*webClient]struct{}
}

type webClient struct {
	send chan []byte
}

func newWebHub() *webHub {
	return &webHub{clients: make(map[*webClient]struct{})}
}

func (h *webHub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// client is behind; drop the frame
		}
	}
}

func (h *webHub) add(c *webClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *webHub) remove(c *webClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// RunWeb serves the cube page: MQTT state in, websocket frames out,
// browser control actions back onto the control topic.
func RunWeb() error {
	cfg := config.Get()
	hub := newWebHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Track the latest state and status, forward both to browsers
	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st session.State
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("web: state unmarshal error: %v", err)
			return
		}
		hub.mu.Lock()
		hub.lastState = st
		hub.haveState = true
		hub.mu.Unlock()

		frame, _ := json.Marshal(struct {
			Type string        `json:"type"`
			Data session.State `json:"data"`
		}{"state", st})
		hub.broadcast(frame)
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicState)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sm statusMessage
		if err := json.Unmarshal(msg.Payload(), &sm); err != nil {
			log.Printf("web: status unmarshal error: %v", err)
			return
		}
		hub.mu.Lock()
		hub.lastStatus = sm
		hub.haveStatus = true
		hub.mu.Unlock()

		frame, _ := json.Marshal(struct {
			Type string        `json:"type"`
			Data statusMessage `json:"data"`
		}{"status", sm})
		hub.broadcast(frame)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicStatus)

	// 3) JSON API endpoints
	http.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		hub.mu.RLock()
		defer hub.mu.RUnlock()

		if !hub.haveState {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.lastState); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		hub.mu.RLock()
		defer hub.mu.RUnlock()

		if !hub.haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.lastStatus); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket: state frames out, control actions in
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		c := &webClient{send: make(chan []byte, 16)}
		hub.add(c)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for payload := range c.send {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}()

		for {
			var cm ControlMessage
			if err := conn.ReadJSON(&cm); err != nil {
				log.Printf("web: websocket read error: %v", err)
				break
			}
			payload, err := json.Marshal(cm)
			if err != nil {
				log.Printf("web: control marshal error: %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicControl, 0, false, payload); token.Wait() && token.Error() != nil {
				log.Printf("web: control publish error: %v", token.Error())
			}
		}

		// Unregister before closing send: broadcast must never see a
		// closed channel in the client set.
		hub.remove(c)
		close(c.send)
		<-done
	})

	// 5) Static files from ./web as the root (the cube page)
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
