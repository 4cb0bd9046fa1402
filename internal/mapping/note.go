// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mapping turns tilt angles into note numbers and expression values.
package mapping

import (
	"fmt"
	"math"
	"strings"

	"github.com/relabs-tech/motion_instrument/internal/scale"
)

// Quantization selects how the lateral angle is split into scale steps.
type Quantization int

const (
	// Wheel splits the full circle into 8 sectors of 45°, sector 0 = [0°, 45°).
	Wheel Quantization = iota
	// HalfRange clamps to [-90°, 90°] and splits it into 8 sectors of 22.5°.
	HalfRange
)

func (q Quantization) String() string {
	switch q {
	case HalfRange:
		return "half"
	default:
		return "wheel"
	}
}

// ParseQuantization accepts "wheel" or "half".
func ParseQuantization(s string) (Quantization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wheel", "360":
		return Wheel, nil
	case "half", "180":
		return HalfRange, nil
	}
	return Wheel, fmt.Errorf("unknown quantization %q (want wheel or half)", s)
}

// MaxNote is the highest MIDI note number.
const MaxNote = 127

// OctaveBase is the MIDI note of the first step of an octave; octave 4
// starts at middle C (60).
func OctaveBase(octave int) int {
	return (octave + 1) * 12
}

// NoteMapper resolves an angle to a scale step and an absolute note.
type NoteMapper struct {
	Quantization Quantization
}

// Step returns the sector index in [0, 7] for a lateral angle in degrees.
// Every finite angle maps to exactly one sector.
func (m NoteMapper) Step(lateral float64) int {
	if math.IsNaN(lateral) || math.IsInf(lateral, 0) {
		return 0
	}

	if m.Quantization == HalfRange {
		if lateral < -90 {
			lateral = -90
		}
		if lateral > 90 {
			lateral = 90
		}
		step := int(math.Floor((lateral + 90) / 180 * scale.Steps))
		if step >= scale.Steps {
			step = scale.Steps - 1
		}
		return step
	}

	a := math.Mod(lateral, 360)
	if a < 0 {
		a += 360
	}
	step := int(math.Floor(a/360*scale.Steps)) % scale.Steps
	if step < 0 {
		step += scale.Steps
	}
	return step
}

// Note returns octave base + scale offset for the angle, clamped to 0..127.
func (m NoteMapper) Note(lateral float64, s scale.Scale, octave int) int {
	n := OctaveBase(octave) + s.Offset(m.Step(lateral))
	if n < 0 {
		return 0
	}
	if n > MaxNote {
		return MaxNote
	}
	return n
}

// SectorNotes lists the note in every sector for the given scale and octave,
// in sector order. Used to draw the guide overlay.
func (m NoteMapper) SectorNotes(s scale.Scale, octave int) [scale.Steps]int {
	var out [scale.Steps]int
	for i := range out {
		n := OctaveBase(octave) + s.Offset(i)
		if n > MaxNote {
			n = MaxNote
		}
		out[i] = n
	}
	return out
}
