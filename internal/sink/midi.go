// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/relabs-tech/motion_instrument/internal/engine"
)

// MessageSender is satisfied by drivers.Out.
type MessageSender interface {
	Send(data []byte) error
}

// MIDI turns events into channel voice messages: NoteOn, NoteOff and
// polyphonic aftertouch for Expression.
type MIDI struct {
	out     MessageSender
	channel uint8
}

// NewMIDI sends on channel 1-16; out-of-range channels fall back to 1.
func NewMIDI(out MessageSender, channel int) *MIDI {
	if channel < 1 || channel > 16 {
		channel = 1
	}
	return &MIDI{out: out, channel: uint8(channel - 1)}
}

// Message converts one event. Velocity 0 NoteOn is bumped to 1 so that
// receivers do not read it as NoteOff.
func (m *MIDI) Message(e engine.Event) (midi.Message, error) {
	if e.Note < 0 || e.Note > 127 {
		return nil, fmt.Errorf("note %d out of MIDI range", e.Note)
	}
	key := uint8(e.Note)
	vel := uint8(clamp7(e.Velocity))

	switch e.Kind {
	case engine.NoteOn:
		if vel == 0 {
			vel = 1
		}
		return midi.NoteOn(m.channel, key, vel), nil
	case engine.NoteOff:
		return midi.NoteOff(m.channel, key), nil
	case engine.Expression:
		return midi.PolyAfterTouch(m.channel, key, vel), nil
	}
	return nil, fmt.Errorf("unsupported event kind %v", e.Kind)
}

func (m *MIDI) Send(e engine.Event) error {
	msg, err := m.Message(e)
	if err != nil {
		return err
	}
	if err := m.out.Send(msg); err != nil {
		return fmt.Errorf("midi send %v: %w", e, err)
	}
	return nil
}

func clamp7(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}
