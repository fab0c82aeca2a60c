package controller

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"murmur/audio"
	"murmur/capture"
	"murmur/prompt"
	"murmur/provider"
	"murmur/rewrite"
	"murmur/transcriber"
)

// 10 frames per second keeps the loops short.
var testCapture = capture.Config{
	SampleRate:       1000,
	FrameSize:        100,
	Channels:         1,
	SilenceThreshold: 500,
	SilenceDuration:  200 * time.Millisecond,
}

func frame(amplitude int16) []byte {
	b := make([]byte, testCapture.FrameSize*2)
	for i := 0; i < testCapture.FrameSize; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(amplitude))
	}
	return b
}

type genStream struct {
	gen  func(i int) []byte
	i    int
	gate <-chan struct{}
}

func (s *genStream) Read() ([]byte, error) {
	if s.gate != nil {
		<-s.gate
		s.gate = nil
	}
	f := s.gen(s.i)
	s.i++
	return f, nil
}

func (s *genStream) Close() {}

// runOpener hands out one stream per capture run. Runs beyond the script
// get the last entry.
type runOpener struct {
	mu      sync.Mutex
	runs    []func(i int) []byte
	opened  int
	openErr error
	gate    chan struct{}
}

func (o *runOpener) OpenStream(audio.CaptureConfig) (audio.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	if o.openErr != nil {
		return nil, o.openErr
	}
	gen := o.runs[min(o.opened, len(o.runs))-1]
	return &genStream{gen: gen, gate: o.gate}, nil
}

func (o *runOpener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// speechThenQuiet talks for n frames and then goes quiet.
func speechThenQuiet(n int) func(int) []byte {
	loud, quiet := frame(4000), frame(0)
	return func(i int) []byte {
		if i < n {
			return loud
		}
		return quiet
	}
}

func speechForever(int) []byte { return frame(4000) }

type recordingSink struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *recordingSink) Paste(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func newTestController(src audio.Opener, tr transcriber.Transcriber, settings Settings) (*Controller, *recordingSink, *rewrite.Fake) {
	sink := &recordingSink{}
	rw := &rewrite.Fake{}
	c := New(Options{
		Source:            src,
		Capture:           testCapture,
		ContinuousSilence: 500 * time.Millisecond,
		Transcriber:       tr,
		Format:            "wav",
		Rewriter:          rw,
		Sink:              sink,
		Settings:          settings,
	})
	return c, sink, rw
}

func drain(c *Controller) []Event {
	var evs []Event
	for {
		select {
		case ev := <-c.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func ofKind(evs []Event, k EventKind) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func states(evs []Event) []State {
	var out []State
	for _, ev := range ofKind(evs, StateChanged) {
		out = append(out, ev.State)
	}
	return out
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNext(t *testing.T) {
	cases := []struct {
		continuous, silence bool
		want                State
	}{
		{false, false, Idle},
		{false, true, Idle},
		{true, false, Restarting},
		{true, true, Idle},
	}
	for _, c := range cases {
		if got := Next(c.continuous, c.silence); got != c.want {
			t.Errorf("Next(%v, %v) = %v, want %v", c.continuous, c.silence, got, c.want)
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Recording: "recording", Transcribing: "transcribing", Restarting: "restarting", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestSingleShot(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechThenQuiet(5)}}
	c, sink, _ := newTestController(src, transcriber.NewFake("hello there", nil), Settings{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()
	evs := drain(c)

	want := []State{Recording, Transcribing, Idle}
	if got := states(evs); !equalStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	caps := ofKind(evs, CaptureDone)
	// 5 loud + limit 2 + the quiet frame that crosses it
	if len(caps) != 1 || caps[0].Frames != 8 || !caps[0].StoppedBySilence {
		t.Errorf("capture events = %+v", caps)
	}
	tr := ofKind(evs, Transcribed)
	if len(tr) != 1 || tr[0].Text != "hello there" {
		t.Errorf("transcribed events = %+v", tr)
	}
	sil := ofKind(evs, SilenceStop)
	if len(sil) != 1 || sil[0].Silence != 200*time.Millisecond || sil[0].ContinuousEnded {
		t.Errorf("silence events = %+v", sil)
	}
	if c.LastTranscript() != "hello there" || c.State() != Idle {
		t.Errorf("last=%q state=%v", c.LastTranscript(), c.State())
	}
	if len(sink.Texts()) != 0 {
		t.Error("pasted with auto-paste off")
	}
}

func TestStartWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	src := &runOpener{runs: []func(int) []byte{speechThenQuiet(1)}, gate: gate}
	c, _, _ := newTestController(src, transcriber.NewFake("x", nil), Settings{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start = %v, want ErrBusy", err)
	}
	close(gate)
	c.Wait()
	drain(c)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start after idle: %v", err)
	}
	c.Wait()
}

func TestContinuousRestartsUntilSilence(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechForever, speechForever, speechThenQuiet(3)}}
	fake := transcriber.NewFake("chunk", nil)
	c, _, _ := newTestController(src, fake, Settings{Continuous: true, MaxRecord: time.Second})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()
	evs := drain(c)

	if src.Opened() != 3 || fake.Sessions() != 3 {
		t.Fatalf("opened=%d sessions=%d, want 3 and 3", src.Opened(), fake.Sessions())
	}
	caps := ofKind(evs, CaptureDone)
	if len(caps) != 3 {
		t.Fatalf("got %d captures", len(caps))
	}
	for i, cp := range caps[:2] {
		if cp.Frames != 10 || cp.StoppedBySilence {
			t.Errorf("capture %d = %+v, want cap stop at 10 frames", i, cp)
		}
	}
	// continuous silence of 500ms: limit 5
	if caps[2].Frames != 3+6 || !caps[2].StoppedBySilence {
		t.Errorf("last capture = %+v", caps[2])
	}
	sil := ofKind(evs, SilenceStop)
	if len(sil) != 1 || sil[0].Silence != 500*time.Millisecond || !sil[0].ContinuousEnded {
		t.Errorf("silence events = %+v", sil)
	}
	want := []State{Recording, Transcribing, Restarting, Recording, Transcribing, Restarting, Recording, Transcribing, Idle}
	if got := states(evs); !equalStates(got, want) {
		t.Errorf("states = %v\nwant     %v", got, want)
	}
}

func TestContinuousTurnedOffMidRun(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechForever}}
	gate := make(chan struct{})
	src.gate = gate
	c, _, _ := newTestController(src, transcriber.NewFake("x", nil), Settings{Continuous: true, MaxRecord: time.Second})

	c.Start(context.Background())
	c.Update(func(s *Settings) { s.Continuous = false })
	close(gate)
	c.Wait()
	drain(c)
	if src.Opened() != 1 {
		t.Errorf("opened %d times, want 1", src.Opened())
	}
}

func TestProviderErrorEndsRun(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechForever}}
	boom := errors.New("quota exceeded")
	c, sink, _ := newTestController(src, transcriber.NewFake("", boom), Settings{Continuous: true, MaxRecord: time.Second, AutoPaste: true})

	c.Start(context.Background())
	c.Wait()
	evs := drain(c)

	if src.Opened() != 1 {
		t.Errorf("restarted after provider error: opened %d", src.Opened())
	}
	fails := ofKind(evs, Failed)
	var pe *provider.Error
	if len(fails) != 1 || fails[0].Op != "transcribe" || !errors.As(fails[0].Err, &pe) {
		t.Fatalf("failures = %+v", fails)
	}
	if len(ofKind(evs, Transcribed)) != 0 || len(sink.Texts()) != 0 {
		t.Error("failed transcription produced output")
	}
	if c.State() != Idle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestDeviceErrorEndsRun(t *testing.T) {
	src := &runOpener{openErr: errors.New("no mic")}
	fake := transcriber.NewFake("x", nil)
	c, _, _ := newTestController(src, fake, Settings{})

	c.Start(context.Background())
	c.Wait()
	evs := drain(c)

	fails := ofKind(evs, Failed)
	var de *capture.DeviceError
	if len(fails) != 1 || fails[0].Op != "capture" || !errors.As(fails[0].Err, &de) {
		t.Fatalf("failures = %+v", fails)
	}
	if fake.Sessions() != 0 {
		t.Error("transcribed after device error")
	}
	if got, want := states(evs), []State{Recording, Idle}; !equalStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestAutoPaste(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechThenQuiet(2)}}
	c, sink, _ := newTestController(src, transcriber.NewFake("paste me", nil), Settings{AutoPaste: true})
	c.Start(context.Background())
	c.Wait()
	drain(c)
	if got := sink.Texts(); len(got) != 1 || got[0] != "paste me" {
		t.Errorf("pasted %v", got)
	}
}

func TestNoSpeechKeepsLastTranscript(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechThenQuiet(2)}}
	c, sink, _ := newTestController(src, transcriber.NewFake("", nil), Settings{AutoPaste: true})
	c.last = "earlier"
	c.Start(context.Background())
	c.Wait()
	evs := drain(c)
	tr := ofKind(evs, Transcribed)
	if len(tr) != 1 || !tr[0].NoSpeech {
		t.Errorf("transcribed = %+v", tr)
	}
	if c.LastTranscript() != "earlier" || len(sink.Texts()) != 0 {
		t.Errorf("last=%q pasted=%v", c.LastTranscript(), sink.Texts())
	}
}

func TestRewrite(t *testing.T) {
	src := &runOpener{runs: []func(int) []byte{speechThenQuiet(2)}}
	c, sink, rw := newTestController(src, transcriber.NewFake("gonna be late", nil), Settings{Tone: rewrite.Professional})

	if _, err := c.Rewrite(context.Background()); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("Rewrite before transcript = %v, want ErrNoTranscript", err)
	}

	c.Start(context.Background())
	c.Wait()
	drain(c)

	out, err := c.Rewrite(context.Background())
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out != "[Professional] gonna be late" {
		t.Errorf("Rewrite = %q", out)
	}
	calls := rw.Calls()
	if len(calls) != 1 || calls[0].System != prompt.Default || calls[0].Tone != rewrite.Professional {
		t.Errorf("rewriter calls = %+v", calls)
	}
	if got := sink.Texts(); len(got) != 1 || got[0] != out {
		t.Errorf("pasted %v", got)
	}
	evs := drain(c)
	if rws := ofKind(evs, Rewritten); len(rws) != 1 || rws[0].Tone != rewrite.Professional {
		t.Errorf("rewritten events = %+v", rws)
	}
}

func TestRewriteUsesLoadedPromptAndCurrentTone(t *testing.T) {
	c, _, rw := newTestController(&runOpener{}, transcriber.NewFake("x", nil), Settings{})
	c.last = "some text"
	c.Prompt().Load("")
	c.Update(func(s *Settings) { s.Tone = s.Tone.Next() })

	if _, err := c.Rewrite(context.Background()); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if calls := rw.Calls(); calls[0].Tone != rewrite.Casual {
		t.Errorf("tone = %v, want Casual", calls[0].Tone)
	}
}

func TestRewriteProviderError(t *testing.T) {
	c := New(Options{
		Transcriber: transcriber.NewFake("x", nil),
		Rewriter:    &rewrite.Fake{Err: errors.New("rate limited")},
	})
	c.last = "text"
	_, err := c.Rewrite(context.Background())
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Op != "rewrite" {
		t.Fatalf("err = %v, want rewrite provider error", err)
	}
	if fails := ofKind(drain(c), Failed); len(fails) != 1 || fails[0].Op != "rewrite" {
		t.Errorf("failures = %+v", fails)
	}
}
