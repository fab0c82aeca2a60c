// Package beep plays short feedback tones when recording starts and stops.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

type Sound int

const (
	Start Sound = iota
	End
	Error
)

const sampleRate = 44100

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

type tone struct {
	freq, volume, decay float64
	dur, gap            float64 // seconds
	repeat              int
}

var tones = map[Sound]tone{
	Start: {freq: 1200, volume: 0.5, decay: 60, dur: 0.08, repeat: 1},
	End:   {freq: 900, volume: 0.5, decay: 40, dur: 0.1, repeat: 1},
	Error: {freq: 350, volume: 0.6, decay: 30, dur: 0.08, gap: 0.05, repeat: 2},
}

var (
	rendered   = map[Sound][]int16{}
	renderOnce sync.Once
)

// render produces mono samples of a decaying sine, repeated with silent gaps.
func render(t tone) []int16 {
	n := int(sampleRate * t.dur)
	gap := int(sampleRate * t.gap)
	out := make([]int16, 0, t.repeat*n+(t.repeat-1)*gap)
	for r := 0; r < t.repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap)...)
		}
		for i := 0; i < n; i++ {
			x := float64(i) / sampleRate
			env := math.Exp(-x * t.decay)
			out = append(out, int16(math.Sin(2*math.Pi*t.freq*x)*32767*t.volume*env))
		}
	}
	return out
}

func samplesFor(s Sound) []int16 {
	renderOnce.Do(func() {
		for k, t := range tones {
			rendered[k] = render(t)
		}
	})
	return rendered[s]
}

// Play starts the sound in the background. Failures to reach the audio
// server are ignored.
func Play(s Sound) {
	if disabled.Load() {
		return
	}
	samples := samplesFor(s)
	if len(samples) == 0 {
		return
	}
	go play(samples)
}
