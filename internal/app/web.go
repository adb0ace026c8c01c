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
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/body_tracker/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = time.Second

// webServer keeps the latest frame and status and fans frames out to
// websocket clients.
type webServer struct {
	commandTopic string
	publish      publishFunc

	mu      sync.RWMutex
	frame   []byte
	status  []byte
	clients map[chan []byte]struct{}
}

func newWebServer(commandTopic string, publish publishFunc) *webServer {
	return &webServer{
		commandTopic: commandTopic,
		publish:      publish,
		clients:      make(map[chan []byte]struct{}),
	}
}

// setFrame stores a frame payload and pushes it to every websocket client.
// Slow clients miss frames instead of blocking the others.
func (s *webServer) setFrame(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = payload
	for ch := range s.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (s *webServer) setStatus(payload []byte) {
	s.mu.Lock()
	s.status = payload
	s.mu.Unlock()
}

func (s *webServer) addClient() chan []byte {
	ch := make(chan []byte, 4)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *webServer) removeClient(ch chan []byte) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *webServer) routes(static http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/skeleton", func(w http.ResponseWriter, r *http.Request) {
		s.serveLatest(w, func() []byte { return s.frame })
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		s.serveLatest(w, func() []byte { return s.status })
	})
	mux.HandleFunc("/api/calibrate", s.handleCalibrate)
	mux.HandleFunc("/ws/skeleton", s.handleSkeletonWS)
	if static != nil {
		mux.Handle("/", static)
	}
	return mux
}

func (s *webServer) serveLatest(w http.ResponseWriter, get func() []byte) {
	s.mu.RLock()
	payload := get()
	s.mu.RUnlock()

	if payload == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *webServer) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload, err := json.Marshal(Command{Action: ActionCalibrate, Time: time.Now()})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.publish(s.commandTopic, false, payload); err != nil {
		log.Printf("web: calibrate publish error: %v", err)
		http.Error(w, "command not delivered", http.StatusBadGateway)
		return
	}
	log.Println("web: calibration requested")
	w.WriteHeader(http.StatusAccepted)
}

func (s *webServer) handleSkeletonWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := s.addClient()
	defer s.removeClient(ch)

	// The reader only notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}

// RunWeb serves the latest skeleton frame over HTTP and websocket, and
// forwards calibration requests to the pose server.
func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	s := newWebServer(cfg.TopicCommand, mqttPublisher(client))

	if err := subscribe(client, cfg.TopicFrame, func(_ mqtt.Client, msg mqtt.Message) {
		s.setFrame(msg.Payload())
	}); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		s.setStatus(msg.Payload())
	}); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, s.routes(http.FileServer(http.Dir("web"))))
}
