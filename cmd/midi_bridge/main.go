// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/motion_instrument/internal/app"
	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/midiout"
)

func main() {
	configPath := flag.String("config", "./instrument_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting motion instrument MIDI bridge (MQTT → MIDI out)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: the instrument must be running for notes to arrive")

	port, err := midiout.Open(config.Get().MIDIOutPort)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	err = app.RunMIDIBridge(port.Out)
	if cerr := port.Close(); cerr != nil {
		log.Printf("midi: close port: %v", cerr)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
