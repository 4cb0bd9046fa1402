// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/engine"
	"github.com/relabs-tech/motion_instrument/internal/sink"
)

// RunMIDIBridge forwards note events from the broker to an opened MIDI
// output. On exit every note it started is released.
func RunMIDIBridge(port sink.MessageSender) error {
	cfg := config.Get()

	out := newNoteTracker(sink.NewMIDI(port, cfg.MIDIChannel))

	client, err := connectMQTT("midi", cfg.MQTTBroker, cfg.MQTTClientIDBridge)
	if err != nil {
		return err
	}

	err = subscribe("midi", client, cfg.TopicNotes, func(_ mqtt.Client, msg mqtt.Message) {
		var e engine.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("midi: note unmarshal error: %v", err)
			return
		}
		if err := out.Send(e); err != nil {
			log.Printf("midi: %v", err)
		}
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("midi: shutting down")
	client.Disconnect(250)
	out.releaseAll()
	return nil
}

// noteTracker remembers which notes it has started so that a bridge
// shutdown, or a NoteOn lost on the broker, cannot leave a note hanging.
type noteTracker struct {
	mu       sync.Mutex
	next     engine.Sink
	sounding map[int]bool
}

func newNoteTracker(next engine.Sink) *noteTracker {
	return &noteTracker{next: next, sounding: make(map[int]bool)}
}

func (t *noteTracker) Send(e engine.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case engine.NoteOn:
		t.sounding[e.Note] = true
	case engine.NoteOff:
		delete(t.sounding, e.Note)
	}
	return t.next.Send(e)
}

func (t *noteTracker) releaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	notes := make([]int, 0, len(t.sounding))
	for n := range t.sounding {
		notes = append(notes, n)
	}
	sort.Ints(notes)
	for _, n := range notes {
		if err := t.next.Send(engine.Event{Kind: engine.NoteOff, Note: n}); err != nil {
			log.Printf("midi: release %d: %v", n, err)
		}
		delete(t.sounding, n)
	}
}
