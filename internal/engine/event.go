// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package engine

import (
	"fmt"

	"github.com/relabs-tech/motion_instrument/internal/scale"
)

// Kind tags a note event.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
	// Expression updates the velocity of the sounding note without
	// re-triggering it (MIDI polyphonic aftertouch on the wire).
	Expression
)

var kindNames = map[Kind]string{
	NoteOn:     "note_on",
	NoteOff:    "note_off",
	Expression: "expression",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(n), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, n := range kindNames {
		if n == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", string(b))
}

// Event is one outbound note instruction. Velocity is 0 for NoteOff.
type Event struct {
	Kind     Kind   `json:"type"`
	Note     int    `json:"note"`
	Velocity int    `json:"velocity"`
	Name     string `json:"name,omitempty"`
}

func noteOn(note int, velocity uint8) Event {
	return Event{Kind: NoteOn, Note: note, Velocity: int(velocity), Name: scale.NoteName(note)}
}

func noteOff(note int) Event {
	return Event{Kind: NoteOff, Note: note, Name: scale.NoteName(note)}
}

func expression(note int, velocity uint8) Event {
	return Event{Kind: Expression, Note: note, Velocity: int(velocity), Name: scale.NoteName(note)}
}

func (e Event) String() string {
	if e.Kind == NoteOff {
		return fmt.Sprintf("%s %s(%d)", e.Kind, e.Name, e.Note)
	}
	return fmt.Sprintf("%s %s(%d) vel=%d", e.Kind, e.Name, e.Note, e.Velocity)
}

// Sink receives note events in emission order. Delivery is fire-and-forget:
// the engine logs a failed Send and carries on.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })
