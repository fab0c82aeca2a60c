package controller

import (
	"time"

	"murmur/rewrite"
)

type EventKind int

const (
	StateChanged EventKind = iota
	CaptureDone
	SilenceStop
	Transcribed
	Rewritten
	Failed
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "state"
	case CaptureDone:
		return "capture"
	case SilenceStop:
		return "silence"
	case Transcribed:
		return "transcribed"
	case Rewritten:
		return "rewritten"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event reports progress of the controller. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind  EventKind
	State State

	// CaptureDone, SilenceStop
	Frames           int
	Duration         time.Duration
	StoppedBySilence bool
	Silence          time.Duration
	ContinuousEnded  bool

	// Transcribed, Rewritten
	Text     string
	NoSpeech bool
	Metrics  []string
	Tone     rewrite.Tone

	// Failed
	Op  string // "capture", "transcribe", "paste", "rewrite"
	Err error
}
