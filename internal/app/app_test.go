package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_instrument/internal/engine"
	"github.com/relabs-tech/motion_instrument/internal/imu"
	"github.com/relabs-tech/motion_instrument/internal/scale"
)

func rollSample(deg float64) imu.Sample {
	r := deg * math.Pi / 180
	g := float64(imu.CountsPerG2)
	return imu.Sample{Ay: int16(math.Round(g * math.Sin(r))), Az: int16(math.Round(g * math.Cos(r)))}
}

type recorder struct{ events []engine.Event }

func (r *recorder) Send(e engine.Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestDecodeControl(t *testing.T) {
	cases := map[string]engine.Control{
		"octave_up":                  engine.OctaveUp,
		"  next-scale\n":             engine.NextScale,
		`{"control":"power_off"}`:    engine.PowerOff,
		` {"control": "RESET"} `:     engine.Reset,
		`{"control":"toggle_guide"}`: engine.ToggleGuide,
	}
	for in, want := range cases {
		got, err := decodeControl([]byte(in))
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "volume_up", `{"control":`, `{"other":"x"}`} {
		if _, err := decodeControl([]byte(bad)); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestRunLoopSerializesSamplesAndControls(t *testing.T) {
	rec := &recorder{}
	eng := engine.New(engine.DefaultSettings(), rec)

	samples := make(chan imu.Sample)
	controls := make(chan engine.Control)
	var statuses []engine.Status
	done := make(chan struct{})

	go func() {
		runLoop(context.Background(), eng, samples, controls, 0, func(st engine.Status) {
			statuses = append(statuses, st)
		})
		close(done)
	}()

	samples <- rollSample(20)   // C4 on
	samples <- rollSample(20)   // unchanged
	controls <- engine.OctaveUp // applies on the next sample
	samples <- rollSample(20)   // C4 off, C5 on
	controls <- engine.PowerOff // C5 off
	samples <- rollSample(70)   // ignored while unpowered
	close(samples)
	<-done

	want := []struct {
		kind engine.Kind
		note int
	}{
		{engine.NoteOn, 60},
		{engine.NoteOff, 60},
		{engine.NoteOn, 72},
		{engine.NoteOff, 72},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("events %v", rec.events)
	}
	for i, w := range want {
		if rec.events[i].Kind != w.kind || rec.events[i].Note != w.note {
			t.Fatalf("event %d: got %v, want %v %d", i, rec.events[i], w.kind, w.note)
		}
	}

	// initial, first note, octave_up, note change, power_off, final
	if len(statuses) != 6 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	if statuses[2].Octave != 5 || statuses[4].Powered || statuses[5].Sounding {
		t.Fatalf("statuses %+v", statuses)
	}
}

func TestRunLoopPowersOffOnCancel(t *testing.T) {
	rec := &recorder{}
	eng := engine.New(engine.DefaultSettings(), rec)
	ctx, cancel := context.WithCancel(context.Background())

	samples := make(chan imu.Sample)
	done := make(chan struct{})
	go func() {
		runLoop(ctx, eng, samples, nil, 0, nil)
		close(done)
	}()

	samples <- rollSample(20)
	cancel()
	<-done

	if len(rec.events) != 2 || rec.events[1].Kind != engine.NoteOff {
		t.Fatalf("events %v", rec.events)
	}
	if eng.Powered() {
		t.Fatalf("engine still powered")
	}
}

func TestRunLoopRefreshesAnglesWithoutEvents(t *testing.T) {
	rec := &recorder{}
	eng := engine.New(engine.DefaultSettings(), rec)
	ctx, cancel := context.WithCancel(context.Background())

	samples := make(chan imu.Sample)
	statuses := make(chan engine.Status, 1024)
	done := make(chan struct{})
	go func() {
		runLoop(ctx, eng, samples, nil, 5*time.Millisecond, func(st engine.Status) {
			select {
			case statuses <- st:
			default:
			}
		})
		close(done)
	}()

	samples <- rollSample(20) // C4 on
	samples <- rollSample(30) // same sector, no events

	refreshed := false
	timeout := time.After(2 * time.Second)
	for !refreshed {
		select {
		case st := <-statuses:
			refreshed = math.Abs(st.Angles.Lateral-30) < 0.5
		case <-timeout:
			t.Fatalf("status never reported the 30 degree roll")
		}
	}
	cancel()
	<-done

	// C4 on, then C4 off at shutdown
	if len(rec.events) != 2 {
		t.Fatalf("events %v", rec.events)
	}
}

type scriptedSource struct {
	samples []imu.Sample
	errs    []error
}

func (s *scriptedSource) NextSample() (imu.Sample, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return imu.Sample{}, err
		}
	}
	if len(s.samples) == 0 {
		return imu.Sample{}, io.EOF
	}
	out := s.samples[0]
	s.samples = s.samples[1:]
	return out, nil
}

func TestPollSamplesSkipsErrorsAndStopsAtEOF(t *testing.T) {
	src := &scriptedSource{
		samples: []imu.Sample{{Ax: 1}, {Ax: 2}},
		errs:    []error{errors.New("bus glitch"), nil},
	}
	out := make(chan imu.Sample, 4)
	var mirrored int

	pollSamples(context.Background(), src, time.Millisecond, out, func(imu.Sample) { mirrored++ })

	var got []int16
	for s := range out {
		got = append(got, s.Ax)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v", got)
	}
	if mirrored != 2 {
		t.Fatalf("mirrored %d", mirrored)
	}
}

func TestPollSamplesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan imu.Sample)
	pollSamples(ctx, &scriptedSource{samples: []imu.Sample{{}, {}}}, time.Hour, out, nil)
	if _, ok := <-out; ok {
		t.Fatalf("channel not closed")
	}
}

func TestDisplayLines(t *testing.T) {
	if got := displayLines(engine.Status{}, false); got[2] != "Waiting..." {
		t.Fatalf("no data: %q", got)
	}
	if got := displayLines(engine.Status{Powered: false}, true); !strings.Contains(got[1], "Power off") {
		t.Fatalf("unpowered: %q", got)
	}

	st := engine.Status{Powered: true, Scale: scale.Minor, Octave: 4, Sounding: true, NoteName: "D#4", Expression: 90}
	got := displayLines(st, true)
	if got[0] != "minor      O4" || got[1] != "Note D#4" || got[2] != "Expr  90" {
		t.Fatalf("playing: %q", got)
	}

	st.Guide = true
	st.Sectors = []string{"C4", "D4", "D#4", "F4", "G4", "G#4", "A#4", "C5"}
	got = displayLines(st, true)
	if got[1] != "C4  D4  D#4 F4 " || got[2] != "G4  G#4 A#4 C5 " {
		t.Fatalf("guide: %q", got)
	}
}

func TestRenderLines(t *testing.T) {
	blank := renderLines(nil)
	if b := blank.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Fatalf("bounds %v", b)
	}
	for _, p := range blank.Pix {
		if p != 0 {
			t.Fatalf("blank frame has lit pixels")
		}
	}

	img := renderLines([]string{"major O4", "Note C4"})
	lit := 0
	for _, p := range img.Pix {
		if p != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatalf("text not drawn")
	}
}

func TestFormatters(t *testing.T) {
	if got := formatEvent(engine.Event{Kind: engine.NoteOn, Note: 60, Velocity: 64, Name: "C4"}); !strings.HasPrefix(got, "[ON ]") || !strings.Contains(got, "vel= 64") {
		t.Fatalf("note on: %q", got)
	}
	if got := formatEvent(engine.Event{Kind: engine.NoteOff, Note: 60, Name: "C4"}); !strings.HasPrefix(got, "[OFF]") {
		t.Fatalf("note off: %q", got)
	}
	got := formatStatus(engine.Status{Powered: true, Scale: scale.Blues, Octave: 2, NoteName: "-"})
	if got != "[STAT] power=on scale=blues octave=2 note=-" {
		t.Fatalf("status: %q", got)
	}
}

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakePublisher struct {
	topics   []string
	payloads []string
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, string(payload.([]byte)))
	return fakeToken{}
}

func TestWebStatus(t *testing.T) {
	srv := newWebServer(&fakePublisher{}, "instrument/control", "")
	h := srv.routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("before data: %d", rr.Code)
	}

	srv.setStatus(engine.Status{Powered: true, Scale: scale.Pentatonic, Octave: 3, NoteName: "-"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status code %d", rr.Code)
	}
	var st engine.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Scale != scale.Pentatonic || st.Octave != 3 {
		t.Fatalf("got %+v", st)
	}
}

func TestWebControlForwardsToBroker(t *testing.T) {
	pub := &fakePublisher{}
	h := newWebServer(pub, "instrument/control", "").routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/control", strings.NewReader(`{"control":"octave-down"}`)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("code %d: %s", rr.Code, rr.Body.String())
	}
	if len(pub.topics) != 1 || pub.topics[0] != "instrument/control" || pub.payloads[0] != `{"control":"octave_down"}` {
		t.Fatalf("published %v %v", pub.topics, pub.payloads)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/control", strings.NewReader("louder")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad control code %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/control", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET code %d", rr.Code)
	}
	if len(pub.topics) != 1 {
		t.Fatalf("rejected requests published")
	}
}

func TestWebNoteStream(t *testing.T) {
	srv := newWebServer(&fakePublisher{}, "c", "")
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/notes", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := engine.Event{Kind: engine.NoteOn, Note: 64, Velocity: 70, Name: "E4"}
	srv.broadcast(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got engine.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestWebBroadcastDropsClientPastWriteDeadline(t *testing.T) {
	srv := newWebServer(&fakePublisher{}, "c", "")
	if srv.writeWait <= 0 {
		t.Fatalf("write wait %v", srv.writeWait)
	}
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/notes", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// every write lands after its deadline, as with a client that stopped reading
	srv.writeWait = -time.Second
	start := time.Now()
	srv.broadcast(engine.Event{Kind: engine.NoteOn, Note: 64, Velocity: 70, Name: "E4"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("broadcast took %v", elapsed)
	}
	if n := srv.clientCount(); n != 0 {
		t.Fatalf("%d clients still registered", n)
	}
}

func TestNoteTrackerReleasesHangingNotes(t *testing.T) {
	rec := &recorder{}
	tr := newNoteTracker(rec)

	tr.Send(engine.Event{Kind: engine.NoteOn, Note: 67, Velocity: 50})
	tr.Send(engine.Event{Kind: engine.NoteOn, Note: 60, Velocity: 50}) // off for 67 was lost
	tr.Send(engine.Event{Kind: engine.Expression, Note: 60, Velocity: 40})
	tr.releaseAll()

	n := len(rec.events)
	if n != 5 {
		t.Fatalf("events %v", rec.events)
	}
	if rec.events[3].Kind != engine.NoteOff || rec.events[3].Note != 60 || rec.events[4].Note != 67 {
		t.Fatalf("release order %v", rec.events[3:])
	}

	tr.releaseAll()
	if len(rec.events) != n {
		t.Fatalf("second release sent more events")
	}
}
