// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/engine"
	"github.com/relabs-tech/motion_instrument/internal/sink"
)

// noteWriteWait bounds one websocket write so a stalled browser cannot hold
// up the MQTT callback that broadcasts notes.
const noteWriteWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network UI
	},
}

// webServer serves the latest status, accepts controls and streams note
// events to websocket clients.
type webServer struct {
	publisher    sink.Publisher
	controlTopic string
	staticDir    string
	writeWait    time.Duration

	mu         sync.RWMutex
	lastStatus engine.Status
	haveStatus bool

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

func newWebServer(publisher sink.Publisher, controlTopic, staticDir string) *webServer {
	return &webServer{
		publisher:    publisher,
		controlTopic: controlTopic,
		staticDir:    staticDir,
		writeWait:    noteWriteWait,
		clients:      make(map[*websocket.Conn]struct{}),
	}
}

func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT("web", cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	srv := newWebServer(client, cfg.TopicControl, "web")

	err = subscribe("web", client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		var st engine.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("web: status unmarshal error: %v", err)
			return
		}
		srv.setStatus(st)
	})
	if err != nil {
		return err
	}

	err = subscribe("web", client, cfg.TopicNotes, func(_ mqtt.Client, msg mqtt.Message) {
		var e engine.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("web: note unmarshal error: %v", err)
			return
		}
		srv.broadcast(e)
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, srv.routes())
}

func (s *webServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/ws/notes", s.handleNotesWS)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

func (s *webServer) setStatus(st engine.Status) {
	s.mu.Lock()
	s.lastStatus = st
	s.haveStatus = true
	s.mu.Unlock()
}

func (s *webServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveStatus {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.lastStatus); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// handleControl accepts POST with {"control":"next_scale"} or a bare name.
func (s *webServer) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	c, err := decodeControl(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := sink.PublishJSON(s.publisher, s.controlTopic, false, controlMessage{Control: c.String()}); err != nil {
		log.Printf("web: %v", err)
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}
	log.Printf("web: forwarded control %v", c)
	w.WriteHeader(http.StatusAccepted)
}

func (s *webServer) handleNotesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	// drain until the client goes away
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *webServer) drop(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

func (s *webServer) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// broadcast writes e to every client. Writes happen under clientsMu so each
// connection has a single writer; a client that misses the write deadline is
// dropped.
func (s *webServer) broadcast(e engine.Event) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	deadline := time.Now().Add(s.writeWait)
	for conn := range s.clients {
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteJSON(e); err != nil {
			log.Printf("web: websocket write error: %v", err)
			delete(s.clients, conn)
			conn.Close()
		}
	}
}
