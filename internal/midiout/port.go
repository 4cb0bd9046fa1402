// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package midiout opens host MIDI output ports through RtMidi. It needs cgo
// and the system MIDI headers, so only the MIDI bridge binary imports it.
package midiout

import (
	"fmt"
	"log"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Port is an opened output port plus the driver that owns it.
type Port struct {
	Out drivers.Out
	drv *rtmididrv.Driver
}

// Open opens the first output whose name contains match (case-insensitive).
// An empty match takes the first port.
func Open(match string) (*Port, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi: driver init: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("midi: list outputs: %w", err)
	}

	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
		log.Printf("midi: output port %q", names[i])
	}
	i := matchPort(names, match)
	if i < 0 {
		drv.Close()
		return nil, fmt.Errorf("midi: no output port matching %q", match)
	}

	found := outs[i]
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("midi: open %q: %w", found.String(), err)
	}
	log.Printf("midi: connected to %q", found.String())
	return &Port{Out: found, drv: drv}, nil
}

func (p *Port) Close() error {
	if err := p.Out.Close(); err != nil {
		p.drv.Close()
		return err
	}
	return p.drv.Close()
}
