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

	log.Println("starting motion instrument display (MQTT subscriber → ssd1306)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
