package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

type Format struct {
	SampleRate int
	Channels   int
}

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// Names lists the container formats New accepts.
var Names = []string{"wav", "flac"}

func New(name string, f Format) (Encoder, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("invalid format %+v", f)
	}
	switch name {
	case "wav":
		return NewWav(f)
	case "flac":
		return NewFlac(f)
	default:
		return nil, fmt.Errorf("unknown format %q", name)
	}
}

// PCMToSamples decodes little-endian signed 16-bit PCM. A trailing odd byte is dropped.
func PCMToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func SamplesToPCM(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}
