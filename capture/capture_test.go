package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"murmur/audio"
	"murmur/encoder"
)

func frameOf(amplitude int16, size int) []byte {
	b := make([]byte, size*2)
	for i := 0; i < size; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(amplitude))
	}
	return b
}

// scriptStream returns frames from gen until it yields nil, then errEnd.
type scriptStream struct {
	gen     func(i int) []byte
	i       int
	reads   int
	closed  int
	readErr error
}

func (s *scriptStream) Read() ([]byte, error) {
	s.reads++
	if s.readErr != nil && s.i == 0 {
		return nil, s.readErr
	}
	f := s.gen(s.i)
	s.i++
	if f == nil {
		return nil, errors.New("script exhausted")
	}
	return f, nil
}

func (s *scriptStream) Close() { s.closed++ }

type scriptOpener struct {
	stream  *scriptStream
	openErr error
	opened  audio.CaptureConfig
}

func (o *scriptOpener) OpenStream(cfg audio.CaptureConfig) (audio.Stream, error) {
	o.opened = cfg
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.stream, nil
}

func constant(amplitude int16) func(int) []byte {
	f := frameOf(amplitude, DefaultFrameSize)
	return func(int) []byte { return f }
}

func TestLimits(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SilenceLimitFrames(); got != 86 {
		t.Errorf("SilenceLimitFrames = %d, want 86", got)
	}
	if got := cfg.MaxFrames(); got != 0 {
		t.Errorf("MaxFrames unbounded = %d, want 0", got)
	}
	cfg.MaxRecord = 5 * time.Second
	if got := cfg.MaxFrames(); got != 215 {
		t.Errorf("MaxFrames(5s) = %d, want 215", got)
	}
	cfg.MaxRecord = time.Millisecond
	if got := cfg.MaxFrames(); got != 1 {
		t.Errorf("MaxFrames(1ms) = %d, want 1", got)
	}
	cfg.SilenceDuration = 20 * time.Second
	if got := cfg.SilenceLimitFrames(); got != 861 {
		t.Errorf("SilenceLimitFrames(20s) = %d, want 861", got)
	}
}

func TestRMS(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
		want  float64
	}{
		{"empty", nil, 0},
		{"zeros", frameOf(0, 16), 0},
		{"constant", frameOf(1000, 16), 1000},
		{"negative", frameOf(-300, 16), 300},
		{"odd byte ignored", append(frameOf(200, 4), 0xff), 200},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := RMS(c.frame); got != c.want {
				t.Errorf("RMS = %v, want %v", got, c.want)
			}
		})
	}

	mixed := append(frameOf(3, 1), frameOf(-4, 1)...)
	if got, want := RMS(mixed), math.Sqrt(12.5); math.Abs(got-want) > 1e-9 {
		t.Errorf("RMS mixed = %v, want %v", got, want)
	}
}

func TestStopsAfterSilence(t *testing.T) {
	s := &scriptStream{gen: constant(10)}
	res, err := Run(&scriptOpener{stream: s}, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FrameCount() != 87 {
		t.Errorf("frames = %d, want 87", res.FrameCount())
	}
	if !res.StoppedBySilence {
		t.Error("expected StoppedBySilence")
	}
	if s.closed != 1 {
		t.Errorf("stream closed %d times, want 1", s.closed)
	}
}

func TestSpeechResetsQuietCounter(t *testing.T) {
	loud := frameOf(5000, DefaultFrameSize)
	quiet := frameOf(0, DefaultFrameSize)
	// 50 quiet, 1 loud, then quiet forever
	s := &scriptStream{gen: func(i int) []byte {
		if i == 50 {
			return loud
		}
		return quiet
	}}
	res, err := Run(&scriptOpener{stream: s}, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := 51 + 87; res.FrameCount() != want {
		t.Errorf("frames = %d, want %d", res.FrameCount(), want)
	}
}

func TestThresholdIsStrict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecord = time.Second
	s := &scriptStream{gen: constant(DefaultSilenceThreshold)}
	res, err := Run(&scriptOpener{stream: s}, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StoppedBySilence {
		t.Error("RMS equal to threshold counted as quiet")
	}
}

func TestStopsAtCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecord = 5 * time.Second
	s := &scriptStream{gen: constant(4000)}
	res, err := Run(&scriptOpener{stream: s}, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FrameCount() != 215 {
		t.Errorf("frames = %d, want 215", res.FrameCount())
	}
	if res.StoppedBySilence {
		t.Error("cap stop reported as silence")
	}
	if s.reads != 215 {
		t.Errorf("reads = %d, want 215", s.reads)
	}
}

func TestSilenceWinsTie(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SilenceDuration = 0
	cfg.MaxRecord = time.Millisecond // one frame
	s := &scriptStream{gen: constant(0)}
	res, err := Run(&scriptOpener{stream: s}, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FrameCount() != 1 || !res.StoppedBySilence {
		t.Errorf("frames=%d silence=%v, want 1 and true", res.FrameCount(), res.StoppedBySilence)
	}
}

func TestZeroSilenceStopsOnFirstQuietFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SilenceDuration = 0
	loud := frameOf(3000, DefaultFrameSize)
	s := &scriptStream{gen: func(i int) []byte {
		if i < 3 {
			return loud
		}
		return frameOf(0, DefaultFrameSize)
	}}
	res, err := Run(&scriptOpener{stream: s}, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FrameCount() != 4 {
		t.Errorf("frames = %d, want 4", res.FrameCount())
	}
}

func TestUnboundedRunsUntilSilence(t *testing.T) {
	loud := frameOf(3000, DefaultFrameSize)
	quiet := frameOf(0, DefaultFrameSize)
	s := &scriptStream{gen: func(i int) []byte {
		if i < 1000 {
			return loud
		}
		return quiet
	}}
	res, err := Run(&scriptOpener{stream: s}, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := 1000 + 87; res.FrameCount() != want {
		t.Errorf("frames = %d, want %d", res.FrameCount(), want)
	}
}

func TestOpenFailure(t *testing.T) {
	openErr := errors.New("no such device")
	res, err := Run(&scriptOpener{openErr: openErr}, DefaultConfig())
	var de *DeviceError
	if !errors.As(err, &de) || de.Op != "open" {
		t.Fatalf("err = %v, want open DeviceError", err)
	}
	if !errors.Is(err, openErr) {
		t.Error("DeviceError does not unwrap to the cause")
	}
	if res.FrameCount() != 0 {
		t.Errorf("frames = %d, want 0", res.FrameCount())
	}
}

func TestReadFailureDiscardsFrames(t *testing.T) {
	loud := frameOf(3000, DefaultFrameSize)
	s := &scriptStream{gen: func(i int) []byte {
		if i < 10 {
			return loud
		}
		return nil
	}}
	res, err := Run(&scriptOpener{stream: s}, DefaultConfig())
	var de *DeviceError
	if !errors.As(err, &de) || de.Op != "read" {
		t.Fatalf("err = %v, want read DeviceError", err)
	}
	if res.FrameCount() != 0 {
		t.Errorf("frames = %d, want 0 after read failure", res.FrameCount())
	}
	if s.closed != 1 {
		t.Errorf("stream closed %d times, want 1", s.closed)
	}
}

func TestOverrunSurfacesAsDeviceError(t *testing.T) {
	s := &scriptStream{gen: constant(0), readErr: audio.ErrOverrun}
	_, err := Run(&scriptOpener{stream: s}, DefaultConfig())
	if !errors.Is(err, audio.ErrOverrun) {
		t.Fatalf("err = %v, want ErrOverrun", err)
	}
}

func TestInvalidConfigNeverOpens(t *testing.T) {
	bad := []Config{
		{FrameSize: 1024, Channels: 1},
		{SampleRate: 44100, Channels: 1},
		{SampleRate: 44100, FrameSize: 1024},
		{SampleRate: 44100, FrameSize: 1024, Channels: 1, SilenceDuration: -time.Second},
		{SampleRate: 44100, FrameSize: 1024, Channels: 1, MaxRecord: -time.Second},
	}
	for _, cfg := range bad {
		o := &scriptOpener{stream: &scriptStream{gen: constant(0)}}
		if _, err := Run(o, cfg); err == nil {
			t.Errorf("Run(%+v) succeeded", cfg)
		}
		if o.opened != (audio.CaptureConfig{}) {
			t.Errorf("Run(%+v) opened the device", cfg)
		}
	}
}

func TestOpensRequestedFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000
	cfg.Channels = 2
	cfg.FrameSize = 512
	o := &scriptOpener{stream: &scriptStream{gen: func(int) []byte { return frameOf(0, 1024) }}}
	res, err := Run(o, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := audio.CaptureConfig{SampleRate: 16000, Channels: 2, FrameSize: 512}
	if o.opened != want {
		t.Errorf("opened %+v, want %+v", o.opened, want)
	}
	if res.SampleRate != 16000 || res.Channels != 2 || res.FrameSize != 512 {
		t.Errorf("result format = %d/%d/%d", res.SampleRate, res.Channels, res.FrameSize)
	}
}

func TestResultHelpers(t *testing.T) {
	res := Result{
		Frames:     [][]byte{frameOf(1, 4), frameOf(2, 4)},
		SampleRate: 8,
		FrameSize:  4,
		Channels:   1,
	}
	if res.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", res.Duration())
	}
	if len(res.PCM()) != 16 {
		t.Errorf("PCM len = %d, want 16", len(res.PCM()))
	}
	samples := res.Samples()
	if len(samples) != 8 || samples[0] != 1 || samples[7] != 2 {
		t.Errorf("Samples = %v", samples)
	}
	if (Result{}).Duration() != 0 {
		t.Error("zero result should have zero duration")
	}
}

func TestCapturedFramesSurviveWAV(t *testing.T) {
	loud := func(i int) []byte { return frameOf(int16(100*i+600), DefaultFrameSize) }
	s := &scriptStream{gen: func(i int) []byte {
		if i < 20 {
			return loud(i)
		}
		return frameOf(0, DefaultFrameSize)
	}}
	cfg := DefaultConfig()
	cfg.SilenceDuration = 100 * time.Millisecond
	res, err := Run(&scriptOpener{stream: s}, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	format := encoder.Format{SampleRate: res.SampleRate, Channels: res.Channels}
	data, err := encoder.EncodeWAV(res.Frames, format)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	got, frames, err := encoder.DecodeWAVFrames(data, res.FrameSize)
	if err != nil {
		t.Fatalf("DecodeWAVFrames: %v", err)
	}
	if got != format {
		t.Errorf("format = %+v, want %+v", got, format)
	}
	if len(frames) != res.FrameCount() {
		t.Fatalf("decoded %d frames, want %d", len(frames), res.FrameCount())
	}
	for i := range frames {
		if !bytes.Equal(frames[i], res.Frames[i]) {
			t.Fatalf("frame %d differs", i)
		}
	}
}
