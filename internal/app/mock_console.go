// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/engine"
	"github.com/relabs-tech/motion_instrument/internal/imu"
	"github.com/relabs-tech/motion_instrument/internal/orientation"
	"github.com/relabs-tech/motion_instrument/internal/sink"
)

// RunMockConsole plays the mock tilt sweep through the engine without any
// hardware or broker, printing each event.
func RunMockConsole() error {
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}

	src := orientation.NewMockSource(cfg.CountsPerG())
	eng := engine.New(cfg.EngineSettings(), sink.Log{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples := make(chan imu.Sample, 1)
	go pollSamples(ctx, src, time.Duration(cfg.SampleInterval)*time.Millisecond, samples, nil)

	var last string
	statusEvery := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
	runLoop(ctx, eng, samples, nil, statusEvery, func(st engine.Status) {
		line := fmt.Sprintf("LAT=%7.2f  DEPTH=%6.2f  %s", st.Angles.Lateral, st.Angles.Depth, formatStatus(st))
		if line != last {
			fmt.Println(line)
			last = line
		}
	})
	return nil
}
