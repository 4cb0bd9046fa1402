// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_instrument/internal/imu"
)

type mockSource struct {
	start      time.Time
	countsPerG float64
	now        func() time.Time
}

// NewMockSource creates a mock sample source that slowly sweeps the device
// through the full roll circle while rocking it forward and back.
func NewMockSource(countsPerG int) imu.SampleSource {
	return &mockSource{start: time.Now(), countsPerG: float64(countsPerG), now: time.Now}
}

func (m *mockSource) NextSample() (imu.Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	roll := math.Mod(elapsed*40, 360) * math.Pi / 180
	pitch := 30 * math.Sin(elapsed*0.7) * math.Pi / 180

	// Gravity vector for the given roll/pitch, scaled to 0.9g so the
	// sample never clips.
	g := 0.9 * m.countsPerG
	return imu.Sample{
		Source: "mock",
		Ax:     int16(-g * math.Sin(pitch)),
		Ay:     int16(g * math.Cos(pitch) * math.Sin(roll)),
		Az:     int16(g * math.Cos(pitch) * math.Cos(roll)),
	}, nil
}
