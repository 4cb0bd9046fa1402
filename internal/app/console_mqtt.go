// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/engine"
)

// RunConsoleMQTT prints note events and status changes until Ctrl+C.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	err = subscribe("console", client, cfg.TopicNotes, func(_ mqtt.Client, msg mqtt.Message) {
		var e engine.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: note unmarshal error: %v", err)
			return
		}
		fmt.Println(formatEvent(e))
	})
	if err != nil {
		return err
	}

	err = subscribe("console", client, cfg.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		var st engine.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		fmt.Println(formatStatus(st))
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatEvent(e engine.Event) string {
	switch e.Kind {
	case engine.NoteOn:
		return fmt.Sprintf("[ON ]  %-4s note=%3d vel=%3d", e.Name, e.Note, e.Velocity)
	case engine.NoteOff:
		return fmt.Sprintf("[OFF]  %-4s note=%3d", e.Name, e.Note)
	default:
		return fmt.Sprintf("[EXP]  %-4s note=%3d vel=%3d", e.Name, e.Note, e.Velocity)
	}
}

func formatStatus(st engine.Status) string {
	power := "on"
	if !st.Powered {
		power = "off"
	}
	line := fmt.Sprintf("[STAT] power=%s scale=%s octave=%d note=%s", power, st.Scale, st.Octave, st.NoteName)
	if st.Guide {
		line += fmt.Sprintf(" guide=%v", st.Sectors)
	}
	return line
}
