package mapping

import (
	"testing"

	"github.com/relabs-tech/motion_instrument/internal/imu"
	"github.com/relabs-tech/motion_instrument/internal/scale"
)

func TestWheelSectors(t *testing.T) {
	m := NoteMapper{Quantization: Wheel}
	cases := []struct {
		angle float64
		step  int
	}{
		{0, 0},
		{44.999, 0},
		{45, 1},
		{90, 2},
		{179.9, 3},
		{180, 4},
		{-180, 4},
		{-0.001, 7},
		{-45, 7},
		{-45.001, 6},
		{359.999, 7},
		{360, 0},
		{720 + 100, 2},
		{-720 - 100, 5},
	}
	for _, c := range cases {
		if got := m.Step(c.angle); got != c.step {
			t.Errorf("Step(%v) = %d, want %d", c.angle, got, c.step)
		}
	}
}

func TestHalfRangeSectorsClamp(t *testing.T) {
	m := NoteMapper{Quantization: HalfRange}
	cases := []struct {
		angle float64
		step  int
	}{
		{-180, 0},
		{-90, 0},
		{-67.6, 0},
		{-67.5, 1},
		{0, 4},
		{-0.1, 3},
		{67.5, 7},
		{89.9, 7},
		{90, 7},
		{170, 7},
	}
	for _, c := range cases {
		if got := m.Step(c.angle); got != c.step {
			t.Errorf("Step(%v) = %d, want %d", c.angle, got, c.step)
		}
	}
}

func TestQuantizationCoverage(t *testing.T) {
	for _, q := range []Quantization{Wheel, HalfRange} {
		m := NoteMapper{Quantization: q}
		hits := make(map[int]bool)
		for a := -400.0; a <= 400.0; a += 0.25 {
			s := m.Step(a)
			if s < 0 || s >= scale.Steps {
				t.Fatalf("%s: Step(%v) = %d out of range", q, a, s)
			}
			if again := m.Step(a); again != s {
				t.Fatalf("%s: Step(%v) not deterministic", q, a)
			}
			hits[s] = true
		}
		if len(hits) != scale.Steps {
			t.Errorf("%s: only %d sectors reachable", q, len(hits))
		}
	}
}

func TestNote(t *testing.T) {
	m := NoteMapper{}
	if got := m.Note(0, scale.Major, 4); got != 60 {
		t.Fatalf("neutral note = %d, want 60", got)
	}
	if got := m.Note(100, scale.Blues, 4); got != 60+5 {
		t.Fatalf("blues step 2 = %d, want 65", got)
	}
	if got := m.Note(0, scale.Major, 5)-m.Note(0, scale.Major, 4); got != 12 {
		t.Fatalf("octave shift = %d, want 12", got)
	}
	if got := m.Note(359, scale.Pentatonic, 8); got != 124 {
		t.Fatalf("top note = %d, want 124", got)
	}
	if got := m.Note(359, scale.Pentatonic, 20); got != MaxNote {
		t.Fatalf("note not clamped: %d", got)
	}
	if got := m.Note(0, scale.Major, -3); got != 0 {
		t.Fatalf("note not clamped at 0: %d", got)
	}
}

func TestSectorNotes(t *testing.T) {
	got := NoteMapper{}.SectorNotes(scale.Minor, 4)
	want := [8]int{60, 62, 63, 65, 67, 68, 70, 72}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseQuantization(t *testing.T) {
	if q, err := ParseQuantization("HALF"); err != nil || q != HalfRange {
		t.Fatalf("got %v %v", q, err)
	}
	if _, err := ParseQuantization("spiral"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExpressionValue(t *testing.T) {
	m := ExpressionMapper{RangeDeg: 45}
	cases := []struct {
		depth float64
		want  uint8
	}{
		{0, 64},
		{-45, 0},
		{-90, 0},
		{45, 127},
		{80, 127},
		{22.5, 95},
		{-22.5, 32},
	}
	for _, c := range cases {
		if got := m.Value(c.depth); got != c.want {
			t.Errorf("Value(%v) = %d, want %d", c.depth, got, c.want)
		}
	}
}

func TestExpressionInvert(t *testing.T) {
	m := ExpressionMapper{RangeDeg: 30, Invert: true}
	if got := m.Value(-30); got != 127 {
		t.Errorf("inverted negative bound = %d, want 127", got)
	}
	if got := m.Value(30); got != 0 {
		t.Errorf("inverted positive bound = %d, want 0", got)
	}
}

func TestExpressionMonotonic(t *testing.T) {
	m := ExpressionMapper{RangeDeg: 45}
	prev := m.Value(-100)
	for d := -100.0; d <= 100; d += 0.5 {
		v := m.Value(d)
		if v < prev {
			t.Fatalf("not monotonic at %v: %d < %d", d, v, prev)
		}
		prev = v
	}
}

func TestDeadZone(t *testing.T) {
	m := ExpressionMapper{DeadZone: 1000}
	if !m.InDeadZone(imu.Neutral(imu.CountsPerG2)) {
		t.Errorf("flat device should be in tilt dead zone")
	}
	if m.InDeadZone(imu.Sample{Ay: 1000, Az: 16000}) {
		t.Errorf("magnitude at threshold is not dead")
	}
	if !m.InDeadZone(imu.Sample{Ax: 600, Ay: 700, Az: 16000}) {
		t.Errorf("tilt of ~922 counts should be dead")
	}

	all := ExpressionMapper{DeadZone: 1000, Axes: AllAxes}
	if all.InDeadZone(imu.Neutral(imu.CountsPerG2)) {
		t.Errorf("1g sample is above a 3-axis dead zone")
	}
	if !all.InDeadZone(imu.Sample{}) {
		t.Errorf("zero sample should be dead")
	}
}
