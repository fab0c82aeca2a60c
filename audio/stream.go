package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed  = errors.New("audio stream closed")
	ErrOverrun = errors.New("audio input overflowed")
	ErrTimeout = errors.New("no audio from device")
)

const (
	DefaultReadTimeout = 2 * time.Second

	// callback buffers queued ahead of the reader before Read reports ErrOverrun
	streamBacklog = 512
)

// Stream hands out fixed-size frames from a capture device with blocking
// reads. A Stream is owned by a single reader.
type Stream interface {
	// Read blocks until exactly one frame (CaptureConfig.FrameBytes) is available.
	Read() ([]byte, error)
	// Close stops and releases the device. Safe to call more than once.
	Close()
}

// Opener opens a Stream for the given format.
type Opener interface {
	OpenStream(cfg CaptureConfig) (Stream, error)
}

// Source opens streams on a device of a Context. A nil Device means the
// system default input.
type Source struct {
	Ctx         Context
	Device      *DeviceInfo
	ReadTimeout time.Duration
}

func (s Source) OpenStream(cfg CaptureConfig) (Stream, error) {
	return OpenStream(s.Ctx, s.Device, cfg, s.ReadTimeout)
}

// OpenStream creates a capture device, starts it and re-frames whatever
// buffer sizes the backend delivers into cfg.FrameBytes() sized frames.
func OpenStream(ctx Context, device *DeviceInfo, cfg CaptureConfig, readTimeout time.Duration) (Stream, error) {
	if cfg.FrameBytes() <= 0 {
		return nil, errors.New("audio: frame size and channels must be positive")
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	dev, err := ctx.NewCapture(device, cfg)
	if err != nil {
		return nil, err
	}

	s := &frameStream{
		dev:        dev,
		frameBytes: cfg.FrameBytes(),
		timeout:    readTimeout,
		chunks:     make(chan []byte, streamBacklog),
		closed:     make(chan struct{}),
	}
	dev.SetCallback(s.push)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, err
	}
	return s, nil
}

type frameStream struct {
	dev        CaptureDevice
	frameBytes int
	timeout    time.Duration

	chunks    chan []byte
	overrun   atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once

	pending []byte
}

// push runs on the backend's audio thread and must never block.
func (s *frameStream) push(data []byte, _ uint32) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case s.chunks <- buf:
	default:
		s.overrun.Store(true)
	}
}

func (s *frameStream) Read() ([]byte, error) {
	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}
	if s.overrun.Load() {
		return nil, ErrOverrun
	}

	var timeout <-chan time.Time
	for len(s.pending) < s.frameBytes {
		if timeout == nil {
			t := time.NewTimer(s.timeout)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case chunk := <-s.chunks:
			s.pending = append(s.pending, chunk...)
		case <-s.closed:
			return nil, ErrClosed
		case <-timeout:
			return nil, ErrTimeout
		}
		if s.overrun.Load() {
			return nil, ErrOverrun
		}
	}

	frame := make([]byte, s.frameBytes)
	copy(frame, s.pending)
	s.pending = append(s.pending[:0], s.pending[s.frameBytes:]...)
	return frame, nil
}

func (s *frameStream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.dev.Stop()
		s.dev.ClearCallback()
		s.dev.Close()
	})
}
