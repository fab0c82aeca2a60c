// Package capture records fixed-size PCM frames until the speaker has been
// quiet long enough or an optional length cap is reached.
package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"murmur/audio"
)

const (
	DefaultSampleRate       = 44100
	DefaultFrameSize        = 1024
	DefaultChannels         = 1
	DefaultSilenceThreshold = 500
	DefaultSilenceDuration  = 2 * time.Second
)

type Config struct {
	SampleRate       int
	FrameSize        int // samples per channel per frame
	Channels         int
	SilenceThreshold float64       // RMS in 16-bit amplitude units
	SilenceDuration  time.Duration // quiet run that ends the capture
	MaxRecord        time.Duration // 0 means unbounded
}

func DefaultConfig() Config {
	return Config{
		SampleRate:       DefaultSampleRate,
		FrameSize:        DefaultFrameSize,
		Channels:         DefaultChannels,
		SilenceThreshold: DefaultSilenceThreshold,
		SilenceDuration:  DefaultSilenceDuration,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.New("capture: sample rate must be positive")
	case c.FrameSize <= 0:
		return errors.New("capture: frame size must be positive")
	case c.Channels <= 0:
		return errors.New("capture: channels must be positive")
	case c.SilenceThreshold < 0:
		return errors.New("capture: silence threshold must not be negative")
	case c.SilenceDuration < 0:
		return errors.New("capture: silence duration must not be negative")
	case c.MaxRecord < 0:
		return errors.New("capture: max record must not be negative")
	}
	return nil
}

func (c Config) framesFor(d time.Duration) int {
	return int(math.Round(float64(c.SampleRate) / float64(c.FrameSize) * d.Seconds()))
}

// SilenceLimitFrames is how many consecutive quiet frames are tolerated; the
// next quiet frame ends the capture.
func (c Config) SilenceLimitFrames() int { return c.framesFor(c.SilenceDuration) }

// MaxFrames is the frame cap, or 0 when unbounded. A positive MaxRecord
// always allows at least one frame.
func (c Config) MaxFrames() int {
	if c.MaxRecord <= 0 {
		return 0
	}
	return max(c.framesFor(c.MaxRecord), 1)
}

func (c Config) audioConfig() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: uint32(c.SampleRate),
		Channels:   uint32(c.Channels),
		FrameSize:  uint32(c.FrameSize),
	}
}

type Result struct {
	Frames           [][]byte
	StoppedBySilence bool
	SampleRate       int
	FrameSize        int
	Channels         int
}

func (r Result) FrameCount() int { return len(r.Frames) }

func (r Result) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	samples := len(r.Frames) * r.FrameSize
	return time.Duration(samples) * time.Second / time.Duration(r.SampleRate)
}

func (r Result) PCM() []byte {
	n := 0
	for _, f := range r.Frames {
		n += len(f)
	}
	pcm := make([]byte, 0, n)
	for _, f := range r.Frames {
		pcm = append(pcm, f...)
	}
	return pcm
}

func (r Result) Samples() []int16 {
	pcm := r.PCM()
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// RMS is the root mean square of a frame of signed 16-bit little-endian
// samples. An empty frame is 0.
func RMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Run records from src until silence or the frame cap. On a device error
// the partial recording is discarded.
func Run(src audio.Opener, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	stream, err := src.OpenStream(cfg.audioConfig())
	if err != nil {
		return Result{}, &DeviceError{Op: "open", Err: err}
	}
	defer stream.Close()

	silenceLimit := cfg.SilenceLimitFrames()
	maxFrames := cfg.MaxFrames()

	res := Result{SampleRate: cfg.SampleRate, FrameSize: cfg.FrameSize, Channels: cfg.Channels}
	quiet := 0
	for {
		frame, err := stream.Read()
		if err != nil {
			return Result{}, &DeviceError{Op: "read", Err: err}
		}
		res.Frames = append(res.Frames, frame)

		if RMS(frame) < cfg.SilenceThreshold {
			quiet++
		} else {
			quiet = 0
		}
		if quiet > silenceLimit {
			res.StoppedBySilence = true
			return res, nil
		}
		if maxFrames > 0 && len(res.Frames) >= maxFrames {
			return res, nil
		}
	}
}
