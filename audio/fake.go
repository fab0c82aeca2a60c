package audio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"murmur/encoder"
)

// FakeContext replays a clip on every capture Start, then feeds silence until
// stopped. Callbacks are paced at the real frame rate divided by Speedup.
type FakeContext struct {
	pcm     []byte
	Speedup int

	// clip format; zero for raw PCM, which plays at any capture rate
	rate     int
	channels int
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm, Speedup: 1}
}

// NewFakeContextFromWAV loads a 16-bit PCM WAV file as the replay clip.
func NewFakeContextFromWAV(path string) (*FakeContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format, samples, err := encoder.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fc := NewFakeContext(encoder.SamplesToPCM(samples))
	fc.rate, fc.channels = format.SampleRate, format.Channels
	return fc, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

// NewCapture fails when a WAV clip does not match the requested format, since
// replaying it at another rate would change its pitch and duration.
func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.rate != 0 && (f.rate != int(config.SampleRate) || f.channels != int(config.Channels)) {
		return nil, fmt.Errorf("clip is %d Hz %d ch, capture wants %d Hz %d ch",
			f.rate, f.channels, config.SampleRate, config.Channels)
	}
	speedup := max(f.Speedup, 1)
	interval := time.Duration(config.FrameSize) * time.Second / time.Duration(config.SampleRate) / time.Duration(speedup)
	return &FakeCapture{
		pcm:        f.pcm,
		chunkBytes: config.FrameBytes(),
		frames:     config.FrameSize,
		interval:   interval,
		audioDone:  make(chan struct{}),
	}, nil
}

type FakeCapture struct {
	pcm        []byte
	chunkBytes int
	frames     uint32
	interval   time.Duration

	cb atomic.Pointer[DataCallback]

	mu        sync.Mutex
	audioDone chan struct{}
	stop      chan struct{}
	done      chan struct{}
}

// AudioDone closes once the clip of the current run has been fed.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeCapture) SetCallback(cb DataCallback) { f.cb.Store(&cb) }
func (f *FakeCapture) ClearCallback()              { f.cb.Store(nil) }
func (f *FakeCapture) DeviceName() string          { return "fake" }

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		return fmt.Errorf("fake capture already started")
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	stop, done, audioDone := f.stop, f.done, f.audioDone

	go func() {
		defer close(done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		silence := make([]byte, f.chunkBytes)
		pos := 0
		finished := false
		for {
			chunk := silence
			if pos < len(f.pcm) {
				end := min(pos+f.chunkBytes, len(f.pcm))
				chunk = make([]byte, f.chunkBytes)
				copy(chunk, f.pcm[pos:end])
				pos = end
			} else if !finished {
				finished = true
				close(audioDone)
			}
			if cb := f.cb.Load(); cb != nil {
				(*cb)(chunk, f.frames)
			}

			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop == nil {
		return
	}
	close(f.stop)
	<-f.done
	f.stop, f.done = nil, nil
	select {
	case <-f.audioDone:
		f.audioDone = make(chan struct{}) // reset for replay
	default:
	}
}

func (f *FakeCapture) Close() { f.Stop() }
