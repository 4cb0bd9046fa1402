// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/motion_instrument/internal/app"
	"github.com/relabs-tech/motion_instrument/internal/config"
)

func main() {
	configPath := flag.String("config", "./instrument_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting motion instrument (mock console, no hardware)")

	// no broker needed here, so a missing file just means defaults
	if err := config.InitGlobal(*configPath); err != nil {
		log.Printf("config not loaded (%v), using defaults", err)
	}

	if err := app.RunMockConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
