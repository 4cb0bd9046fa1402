// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package engine

import (
	"fmt"
	"strings"
)

// Control is a discrete button-style event against the controller state.
type Control int

const (
	OctaveUp Control = iota
	OctaveDown
	NextScale
	ToggleGuide
	PowerOff
	PowerOn
	Reset
)

var controlNames = [...]string{
	OctaveUp:    "octave_up",
	OctaveDown:  "octave_down",
	NextScale:   "next_scale",
	ToggleGuide: "toggle_guide",
	PowerOff:    "power_off",
	PowerOn:     "power_on",
	Reset:       "reset",
}

func (c Control) String() string {
	if c < 0 || int(c) >= len(controlNames) {
		return fmt.Sprintf("control(%d)", int(c))
	}
	return controlNames[c]
}

func (c Control) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(controlNames) {
		return nil, fmt.Errorf("unknown control %d", int(c))
	}
	return []byte(controlNames[c]), nil
}

func (c *Control) UnmarshalText(b []byte) error {
	v, err := ParseControl(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseControl accepts a control name such as "octave_up". Dashes and case
// are ignored, so "Octave-Up" works too.
func ParseControl(s string) (Control, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range controlNames {
		if name == n {
			return Control(i), nil
		}
	}
	return 0, fmt.Errorf("unknown control %q", s)
}
