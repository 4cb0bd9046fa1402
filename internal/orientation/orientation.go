// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/motion_instrument/internal/imu"
)

// Angles is the tilt of the device for one sample, in degrees.
//
// Lateral is the roll angle and selects the note. Depth is the pitch angle and
// drives expression.
type Angles struct {
	Lateral float64 `json:"lateral"`
	Depth   float64 `json:"depth"`
}

// FromAccel computes lateral and depth tilt from accelerometer values in any
// unit, using the simple tilt formulas:
//
//	lateral = atan2(ay, az)
//	depth   = atan2(-ax, sqrt(ay² + az²))
//
// A zero vector yields (0, 0).
func FromAccel(ax, ay, az float64) Angles {
	lateralRad := math.Atan2(ay, az)
	depthRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Angles{
		Lateral: lateralRad * 180.0 / math.Pi,
		Depth:   depthRad * 180.0 / math.Pi,
	}
}

// FromSample normalises a raw sample to g using the full-scale factor and
// returns its tilt angles.
func FromSample(s imu.Sample, countsPerG float64) Angles {
	if countsPerG <= 0 {
		countsPerG = imu.CountsPerG2
	}
	return FromAccel(
		float64(s.Ax)/countsPerG,
		float64(s.Ay)/countsPerG,
		float64(s.Az)/countsPerG,
	)
}
