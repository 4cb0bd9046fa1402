// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mapping

import (
	"fmt"
	"math"
	"strings"

	"github.com/relabs-tech/motion_instrument/internal/imu"
)

const (
	MinExpression = 0
	MaxExpression = 127
)

// DeadZoneAxes selects which sample magnitude is compared to the dead zone.
type DeadZoneAxes int

const (
	// TiltAxes uses sqrt(x² + y²). A device lying flat is silent.
	TiltAxes DeadZoneAxes = iota
	// AllAxes uses the full 3-axis magnitude.
	AllAxes
)

func (a DeadZoneAxes) String() string {
	if a == AllAxes {
		return "xyz"
	}
	return "xy"
}

// ParseDeadZoneAxes accepts "xy" or "xyz".
func ParseDeadZoneAxes(s string) (DeadZoneAxes, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xy":
		return TiltAxes, nil
	case "xyz":
		return AllAxes, nil
	}
	return TiltAxes, fmt.Errorf("unknown dead zone axes %q (want xy or xyz)", s)
}

// ExpressionMapper maps the depth angle onto [0, 127] and decides whether a
// sample is a gesture at all.
type ExpressionMapper struct {
	RangeDeg float64      // depth is clamped to ±RangeDeg
	Invert   bool         // true: tilting forward is quieter
	DeadZone float64      // counts; magnitudes below this are silence
	Axes     DeadZoneAxes // which magnitude DeadZone applies to
}

// Value returns the expression for a depth angle in degrees. The negative
// bound saturates to 0 and the positive bound to 127 (swapped when Invert).
func (m ExpressionMapper) Value(depth float64) uint8 {
	r := m.RangeDeg
	if r <= 0 {
		r = 45
	}
	if math.IsNaN(depth) {
		depth = 0
	}
	if depth < -r {
		depth = -r
	}
	if depth > r {
		depth = r
	}

	v := math.Round((depth + r) / (2 * r) * MaxExpression)
	if v < MinExpression {
		v = MinExpression
	}
	if v > MaxExpression {
		v = MaxExpression
	}
	if m.Invert {
		v = MaxExpression - v
	}
	return uint8(v)
}

// InDeadZone reports whether the sample's magnitude is below the threshold.
func (m ExpressionMapper) InDeadZone(s imu.Sample) bool {
	mag := s.TiltMagnitude()
	if m.Axes == AllAxes {
		mag = s.Magnitude()
	}
	return mag < m.DeadZone
}
