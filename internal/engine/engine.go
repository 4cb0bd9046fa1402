// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package engine is the motion-to-note translation core: per-sample note
// lifecycle plus the controller state that button events mutate.
//
// An Engine is not safe for concurrent use. Callers serialize samples and
// controls through a single loop (see app.RunInstrument).
package engine

import (
	"fmt"
	"log"
	"strings"

	"github.com/relabs-tech/motion_instrument/internal/imu"
	"github.com/relabs-tech/motion_instrument/internal/mapping"
	"github.com/relabs-tech/motion_instrument/internal/orientation"
	"github.com/relabs-tech/motion_instrument/internal/scale"
)

// ReassertMode decides what a significant expression change emits while the
// note stays the same.
type ReassertMode int

const (
	// Retrigger sends a fresh NoteOn at the same pitch.
	Retrigger ReassertMode = iota
	// Aftertouch sends an Expression event.
	Aftertouch
)

func (m ReassertMode) String() string {
	if m == Aftertouch {
		return "aftertouch"
	}
	return "retrigger"
}

// ParseReassertMode accepts "retrigger" or "aftertouch".
func ParseReassertMode(s string) (ReassertMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retrigger", "note_on":
		return Retrigger, nil
	case "aftertouch", "expression":
		return Aftertouch, nil
	}
	return Retrigger, fmt.Errorf("unknown reassert mode %q (want retrigger or aftertouch)", s)
}

// Settings tunes an Engine. Use DefaultSettings and override fields.
type Settings struct {
	BaseOctave int
	MinOctave  int
	MaxOctave  int
	Scale      scale.Scale

	Notes      mapping.NoteMapper
	Expression mapping.ExpressionMapper

	// Threshold is the minimum expression change that is re-asserted while
	// the note is unchanged. Values below 1 behave as 1.
	Threshold int
	Reassert  ReassertMode

	CountsPerG   int
	StartPowered bool
}

// DefaultSettings matches the shipped instrument: octave 4 of 0-8, major
// scale, 45° wheel sectors, ±45° expression, 1000-count tilt dead zone.
func DefaultSettings() Settings {
	return Settings{
		BaseOctave: 4,
		MinOctave:  0,
		MaxOctave:  8,
		Scale:      scale.Major,
		Notes:      mapping.NoteMapper{Quantization: mapping.Wheel},
		Expression: mapping.ExpressionMapper{
			RangeDeg: 45,
			DeadZone: 1000,
			Axes:     mapping.TiltAxes,
		},
		Threshold:    4,
		Reassert:     Retrigger,
		CountsPerG:   imu.CountsPerG2,
		StartPowered: true,
	}
}

// Engine owns the controller state and the Silent/Sounding note state.
type Engine struct {
	settings Settings
	sink     Sink

	octave  int
	scale   scale.Scale
	powered bool
	guide   bool

	// note state: sounding is false for Silent
	sounding   bool
	note       int
	expression uint8

	// lastNote survives silence so the display can keep naming it
	lastNote int
	angles   orientation.Angles
}

// New creates an Engine. A nil sink discards events; they are still
// returned from every call.
func New(settings Settings, sink Sink) *Engine {
	if sink == nil {
		sink = Discard
	}
	if settings.MaxOctave < settings.MinOctave {
		settings.MaxOctave = settings.MinOctave
	}
	octave := settings.BaseOctave
	if octave < settings.MinOctave {
		octave = settings.MinOctave
	}
	if octave > settings.MaxOctave {
		octave = settings.MaxOctave
	}
	if settings.CountsPerG <= 0 {
		settings.CountsPerG = imu.CountsPerG2
	}
	return &Engine{
		settings: settings,
		sink:     sink,
		octave:   octave,
		scale:    settings.Scale,
		powered:  settings.StartPowered,
		lastNote: -1,
	}
}

// ProcessSample runs one step of the note state machine and returns the
// emitted events in order. Unpowered engines ignore samples.
func (e *Engine) ProcessSample(s imu.Sample) []Event {
	if !e.powered {
		return nil
	}

	e.angles = orientation.FromSample(s, float64(e.settings.CountsPerG))

	if e.settings.Expression.InDeadZone(s) {
		if !e.sounding {
			return nil
		}
		return e.emit(e.silence())
	}

	note := e.settings.Notes.Note(e.angles.Lateral, e.scale, e.octave)
	expr := e.settings.Expression.Value(e.angles.Depth)

	if !e.sounding {
		e.start(note, expr)
		return e.emit(noteOn(note, expr))
	}

	if note != e.note {
		off := e.silence()
		e.start(note, expr)
		return e.emit(off, noteOn(note, expr))
	}

	if absDiff(expr, e.expression) >= e.threshold() {
		e.expression = expr
		if e.settings.Reassert == Aftertouch {
			return e.emit(expression(note, expr))
		}
		return e.emit(noteOn(note, expr))
	}

	return nil
}

// Apply handles a control event. While unpowered only PowerOn has effect.
func (e *Engine) Apply(c Control) []Event {
	if !e.powered && c != PowerOn {
		return nil
	}

	switch c {
	case OctaveUp:
		e.OctaveUp()
	case OctaveDown:
		e.OctaveDown()
	case NextScale:
		e.NextScale()
	case ToggleGuide:
		e.ToggleGuide()
	case PowerOff:
		return e.PowerOff()
	case PowerOn:
		e.PowerOn()
	case Reset:
		return e.ProcessSample(imu.Neutral(e.settings.CountsPerG))
	default:
		log.Printf("engine: ignoring unknown control %v", c)
	}
	return nil
}

// OctaveUp raises the octave by one; a no-op at the maximum. Returns whether
// the octave changed. The sounding note is left alone until the next sample.
func (e *Engine) OctaveUp() bool {
	if !e.powered || e.octave >= e.settings.MaxOctave {
		return false
	}
	e.octave++
	return true
}

// OctaveDown lowers the octave by one; a no-op at the minimum.
func (e *Engine) OctaveDown() bool {
	if !e.powered || e.octave <= e.settings.MinOctave {
		return false
	}
	e.octave--
	return true
}

// NextScale cycles major → minor → pentatonic → blues → major.
func (e *Engine) NextScale() {
	if e.powered {
		e.scale = e.scale.Next()
	}
}

// ToggleGuide shows or hides the sector guide overlay.
func (e *Engine) ToggleGuide() {
	if e.powered {
		e.guide = !e.guide
	}
}

// PowerOff silences the sounding note and stops processing samples until
// PowerOn.
func (e *Engine) PowerOff() []Event {
	var out []Event
	if e.sounding {
		out = e.emit(e.silence())
	}
	e.powered = false
	return out
}

// PowerOn resumes sample processing. The next sample starts from Silent.
func (e *Engine) PowerOn() {
	e.powered = true
}

func (e *Engine) Powered() bool              { return e.powered }
func (e *Engine) Scale() scale.Scale         { return e.scale }
func (e *Engine) Octave() int                { return e.octave }
func (e *Engine) GuideVisible() bool         { return e.guide }
func (e *Engine) Sounding() bool             { return e.sounding }
func (e *Engine) Settings() Settings         { return e.settings }
func (e *Engine) Angles() orientation.Angles { return e.angles }

// NoteName names the sounding note, or the most recent one after silence.
// Before any note has sounded it returns "-".
func (e *Engine) NoteName() string {
	return scale.NoteName(e.lastNote)
}

// Status is a snapshot of the query surface, published for the display and
// web UI.
type Status struct {
	Powered    bool               `json:"powered"`
	Scale      scale.Scale        `json:"scale"`
	Octave     int                `json:"octave"`
	Guide      bool               `json:"guide"`
	Sounding   bool               `json:"sounding"`
	Note       int                `json:"note"`
	NoteName   string             `json:"note_name"`
	Expression int                `json:"expression"`
	Angles     orientation.Angles `json:"angles"`
	Sectors    []string           `json:"sectors,omitempty"`
}

// Status returns the current snapshot. Sectors (note names per sector) are
// only filled while the guide is visible.
func (e *Engine) Status() Status {
	st := Status{
		Powered:    e.powered,
		Scale:      e.scale,
		Octave:     e.octave,
		Guide:      e.guide,
		Sounding:   e.sounding,
		Note:       e.lastNote,
		NoteName:   e.NoteName(),
		Expression: int(e.expression),
		Angles:     e.angles,
	}
	if e.guide {
		for _, n := range e.settings.Notes.SectorNotes(e.scale, e.octave) {
			st.Sectors = append(st.Sectors, scale.NoteName(n))
		}
	}
	return st
}

func (e *Engine) start(note int, expr uint8) {
	e.sounding = true
	e.note = note
	e.expression = expr
	e.lastNote = note
}

func (e *Engine) silence() Event {
	ev := noteOff(e.note)
	e.sounding = false
	e.expression = 0
	return ev
}

func (e *Engine) emit(events ...Event) []Event {
	for _, ev := range events {
		if err := e.sink.Send(ev); err != nil {
			log.Printf("engine: sink error on %v: %v", ev, err)
		}
	}
	return events
}

func (e *Engine) threshold() int {
	if e.settings.Threshold < 1 {
		return 1
	}
	return e.settings.Threshold
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
