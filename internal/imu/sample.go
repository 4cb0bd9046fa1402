// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SampleSize is the length of one encoded accelerometer frame.
const SampleSize = 6

// CountsPerG2 is the full-scale factor for a ±2g accelerometer range.
const CountsPerG2 = 16384

// ErrShortFrame is returned when a frame holds fewer than SampleSize bytes.
var ErrShortFrame = errors.New("short accelerometer frame")

// Sample represents a single raw accelerometer reading.
type Sample struct {
	Source string `json:"source,omitempty"` // "imu", "serial", "mock", ...

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// SampleSource is anything that can deliver accelerometer samples.
type SampleSource interface {
	NextSample() (Sample, error)
}

// DecodeSample decodes a little-endian x,y,z frame (bytes 0-1 x, 2-3 y, 4-5 z).
// Bytes after the sixth are ignored.
func DecodeSample(b []byte) (Sample, error) {
	if len(b) < SampleSize {
		return Sample{}, fmt.Errorf("decode sample: got %d bytes: %w", len(b), ErrShortFrame)
	}
	return Sample{
		Ax: int16(binary.LittleEndian.Uint16(b[0:2])),
		Ay: int16(binary.LittleEndian.Uint16(b[2:4])),
		Az: int16(binary.LittleEndian.Uint16(b[4:6])),
	}, nil
}

// Encode returns the 6-byte little-endian frame for s.
func (s Sample) Encode() []byte {
	b := make([]byte, SampleSize)
	binary.LittleEndian.PutUint16(b[0:2], uint16(s.Ax))
	binary.LittleEndian.PutUint16(b[2:4], uint16(s.Ay))
	binary.LittleEndian.PutUint16(b[4:6], uint16(s.Az))
	return b
}

// Neutral returns a resting sample: 1g along +z, nothing on x/y.
func Neutral(countsPerG int) Sample {
	if countsPerG > math.MaxInt16 {
		countsPerG = math.MaxInt16
	}
	return Sample{Source: "reset", Az: int16(countsPerG)}
}

// Magnitude is the Euclidean length of the full x,y,z vector in counts.
func (s Sample) Magnitude() float64 {
	x, y, z := float64(s.Ax), float64(s.Ay), float64(s.Az)
	return math.Sqrt(x*x + y*y + z*z)
}

// TiltMagnitude is the length of the x,y component only. It is zero when the
// device lies flat.
func (s Sample) TiltMagnitude() float64 {
	x, y := float64(s.Ax), float64(s.Ay)
	return math.Sqrt(x*x + y*y)
}

// CountsPerG returns the full-scale factor for an accelerometer range
// setting (0=±2g, 1=±4g, 2=±8g, 3=±16g). Out-of-range settings fall back to ±2g.
func CountsPerG(accelRange byte) int {
	if accelRange > 3 {
		return CountsPerG2
	}
	return CountsPerG2 >> accelRange
}
