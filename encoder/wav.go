package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

const wavPCMFormat = 1

// WavEncoder writes an uncompressed PCM WAV. go-audio/wav needs a seekable
// writer to patch the header, so samples go to a transient file that Close
// reads back and removes.
type WavEncoder struct {
	format      Format
	path        string
	file        *os.File
	enc         *wav.Encoder
	buf         []byte
	totalFrames uint64
	encodeTime  time.Duration
	closed      bool
	mu          sync.Mutex
}

func NewWav(f Format) (*WavEncoder, error) {
	return NewWavIn(os.TempDir(), f)
}

func NewWavIn(dir string, f Format) (*WavEncoder, error) {
	path := filepath.Join(dir, "murmur_"+uuid.NewString()+".wav")
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating wav file: %w", err)
	}
	return &WavEncoder{
		format: f,
		path:   path,
		file:   file,
		enc:    wav.NewEncoder(file, f.SampleRate, BitsPerSample, f.Channels, wavPCMFormat),
	}, nil
}

func (e *WavEncoder) intBuffer(block []int16) *audio.IntBuffer {
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: e.format.Channels, SampleRate: e.format.SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	if err := e.enc.Write(e.intBuffer(block)); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block) / e.format.Channels)
	return nil
}

// Close finalizes the header and loads the container into memory. The
// transient file is removed whether or not that succeeds.
func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	defer os.Remove(e.path)
	defer e.file.Close()

	if e.totalFrames == 0 {
		// forces the RIFF header out for an empty recording
		if err := e.enc.Write(e.intBuffer(nil)); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading wav back: %w", err)
	}
	e.buf = data
	return nil
}

// Path is the transient file, which no longer exists after Close.
func (e *WavEncoder) Path() string { return e.path }

func (e *WavEncoder) Bytes() []byte { return e.buf }

func (e *WavEncoder) TotalFrames() uint64 { return e.totalFrames }

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}

// EncodeWAV wraps whole PCM frames in a WAV container.
func EncodeWAV(frames [][]byte, f Format) ([]byte, error) {
	enc, err := NewWav(f)
	if err != nil {
		return nil, err
	}
	for _, fr := range frames {
		if err := enc.EncodeBlock(PCMToSamples(fr)); err != nil {
			enc.Close()
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// DecodeWAV returns the format and interleaved samples of a 16-bit PCM WAV.
func DecodeWAV(data []byte) (Format, []int16, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return Format{}, nil, errors.New("not a valid WAV file")
	}
	if d.BitDepth != BitsPerSample {
		return Format{}, nil, fmt.Errorf("unsupported bit depth %d", d.BitDepth)
	}
	f := Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Format{}, nil, fmt.Errorf("decoding wav: %w", err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return f, samples, nil
}

// DecodeWAVFrames splits decoded PCM into frames of frameSize samples per
// channel. A short trailing frame is returned as is.
func DecodeWAVFrames(data []byte, frameSize int) (Format, [][]byte, error) {
	if frameSize <= 0 {
		return Format{}, nil, fmt.Errorf("invalid frame size %d", frameSize)
	}
	f, samples, err := DecodeWAV(data)
	if err != nil {
		return Format{}, nil, err
	}
	pcm := SamplesToPCM(samples)
	step := frameSize * f.Channels * 2
	var frames [][]byte
	for pos := 0; pos < len(pcm); pos += step {
		end := min(pos+step, len(pcm))
		frames = append(frames, pcm[pos:end])
	}
	return f, frames, nil
}
