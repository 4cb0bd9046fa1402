// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scale holds the fixed semitone tables the instrument can play.
package scale

import (
	"fmt"
	"strings"
)

// Steps is the number of notes reachable in every scale.
const Steps = 8

// Scale selects one of the built-in semitone tables.
type Scale int

const (
	Major Scale = iota
	Minor
	Pentatonic
	Blues

	count
)

var tables = [count][Steps]int{
	Major:      {0, 2, 4, 5, 7, 9, 11, 12},
	Minor:      {0, 2, 3, 5, 7, 8, 10, 12},
	Pentatonic: {0, 2, 4, 7, 9, 12, 14, 16},
	Blues:      {0, 3, 5, 6, 7, 10, 12, 15},
}

var names = [count]string{
	Major:      "major",
	Minor:      "minor",
	Pentatonic: "pentatonic",
	Blues:      "blues",
}

// Offset returns the semitone offset for a quantization step. The step is
// reduced mod Steps, so any int indexes safely. Unknown scales use Major.
func (s Scale) Offset(step int) int {
	step %= Steps
	if step < 0 {
		step += Steps
	}
	if s < 0 || s >= count {
		s = Major
	}
	return tables[s][step]
}

// Next returns the following scale, wrapping from Blues back to Major.
func (s Scale) Next() Scale {
	if s < 0 || s >= count {
		return Major
	}
	return (s + 1) % count
}

func (s Scale) String() string {
	if s < 0 || s >= count {
		return fmt.Sprintf("scale(%d)", int(s))
	}
	return names[s]
}

// MarshalText encodes the scale by name for JSON status payloads.
func (s Scale) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Scale) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Parse accepts a scale name, case-insensitively.
func Parse(name string) (Scale, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range names {
		if candidate == n {
			return Scale(i), nil
		}
	}
	return Major, fmt.Errorf("unknown scale %q (want major, minor, pentatonic or blues)", name)
}

// All returns every scale in cycle order.
func All() []Scale {
	return []Scale{Major, Minor, Pentatonic, Blues}
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number in scientific pitch notation (60 = C4).
// Negative numbers mean "no note" and format as "-".
func NoteName(note int) string {
	if note < 0 {
		return "-"
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}
