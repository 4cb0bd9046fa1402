// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_instrument/internal/config"
	"github.com/relabs-tech/motion_instrument/internal/engine"
	"github.com/relabs-tech/motion_instrument/internal/imu"
	"github.com/relabs-tech/motion_instrument/internal/orientation"
	"github.com/relabs-tech/motion_instrument/internal/sensors"
	"github.com/relabs-tech/motion_instrument/internal/sink"
)

// RunInstrument reads samples from the configured source, runs them through
// the engine and publishes note events, status and (optionally) raw samples.
func RunInstrument() error {
	cfg := config.Get()
	log.Printf("instrument: starting with %s source", cfg.SampleSource)

	src, closer, interval, err := openSampleSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	client, err := connectMQTT("instrument", cfg.MQTTBroker, cfg.MQTTClientIDInstrument)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	eng := engine.New(cfg.EngineSettings(), sink.Fanout{
		sink.NewMQTT(client, cfg.TopicNotes),
		sink.Log{},
	})

	controls := make(chan engine.Control, 16)
	err = subscribe("instrument", client, cfg.TopicControl, func(_ mqtt.Client, msg mqtt.Message) {
		c, err := decodeControl(msg.Payload())
		if err != nil {
			log.Printf("instrument: ignoring control %q: %v", msg.Payload(), err)
			return
		}
		select {
		case controls <- c:
		default:
			log.Printf("instrument: control queue full, dropping %v", c)
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples := make(chan imu.Sample, 1)
	go pollSamples(ctx, src, interval, samples, func(s imu.Sample) {
		if cfg.TopicSamples == "" {
			return
		}
		if err := sink.PublishJSON(client, cfg.TopicSamples, false, s); err != nil {
			log.Printf("instrument: sample mirror: %v", err)
		}
	})

	publishStatus := func(st engine.Status) {
		if err := sink.PublishJSON(client, cfg.TopicStatus, true, st); err != nil {
			log.Printf("instrument: status: %v", err)
		}
	}

	log.Println("instrument: running")
	statusEvery := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
	runLoop(ctx, eng, samples, controls, statusEvery, publishStatus)
	log.Println("instrument: shutting down")
	return nil
}

func openSampleSource(cfg *config.Config) (imu.SampleSource, io.Closer, time.Duration, error) {
	interval := time.Duration(cfg.SampleInterval) * time.Millisecond

	switch cfg.SampleSource {
	case config.SourceIMU:
		src, err := sensors.NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
		return src, nil, interval, err
	case config.SourceSerial:
		format, err := sensors.ParseFrameFormat(cfg.SerialFormat)
		if err != nil {
			return nil, nil, 0, err
		}
		src, port, err := sensors.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate, format, cfg.CountsPerG())
		// the device paces a serial feed
		return src, port, 0, err
	case config.SourceMock:
		return orientation.NewMockSource(cfg.CountsPerG()), nil, interval, nil
	}
	return nil, nil, 0, fmt.Errorf("instrument: unknown sample source %q", cfg.SampleSource)
}

// pollSamples reads src into out until ctx is done or the source ends.
// interval 0 reads back to back, for sources that block until data arrives.
// out is closed on return.
func pollSamples(ctx context.Context, src imu.SampleSource, interval time.Duration, out chan<- imu.Sample, mirror func(imu.Sample)) {
	defer close(out)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}

		s, err := src.NextSample()
		if errors.Is(err, io.EOF) {
			log.Println("instrument: sample source closed")
			return
		}
		if err != nil {
			log.Printf("instrument: sample read error: %v", err)
			if tick == nil {
				// don't spin on a persistently failing port
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			continue
		}

		if mirror != nil {
			mirror(s)
		}
		select {
		case out <- s:
		case <-ctx.Done():
			return
		}
	}
}

// runLoop is the single owner of the engine: samples and controls are
// applied in arrival order. Status is pushed after every control and after
// every sample that produced events. Samples that only move the angles are
// reported at most once per statusEvery; zero disables that refresh. When
// ctx ends or samples closes the engine is powered off so no note is left
// hanging.
func runLoop(ctx context.Context, eng *engine.Engine, samples <-chan imu.Sample, controls <-chan engine.Control, statusEvery time.Duration, onStatus func(engine.Status)) {
	if onStatus == nil {
		onStatus = func(engine.Status) {}
	}
	onStatus(eng.Status())

	var refresh <-chan time.Time
	if statusEvery > 0 {
		ticker := time.NewTicker(statusEvery)
		defer ticker.Stop()
		refresh = ticker.C
	}
	stale := false

	for {
		select {
		case <-ctx.Done():
			eng.PowerOff()
			onStatus(eng.Status())
			return

		case s, ok := <-samples:
			if !ok {
				eng.PowerOff()
				onStatus(eng.Status())
				return
			}
			if events := eng.ProcessSample(s); len(events) > 0 {
				onStatus(eng.Status())
				stale = false
			} else {
				stale = true
			}

		case <-refresh:
			if stale {
				onStatus(eng.Status())
				stale = false
			}

		case c := <-controls:
			eng.Apply(c)
			log.Printf("instrument: %v -> %s octave %d powered=%v", c, eng.Scale(), eng.Octave(), eng.Powered())
			onStatus(eng.Status())
			stale = false
		}
	}
}
