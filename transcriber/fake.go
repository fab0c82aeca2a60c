package transcriber

import (
	"context"
	"sync"

	"murmur/provider"
)

// FakeText is what the "fake" provider returns for every utterance.
const FakeText = "the quick brown fox jumps over the lazy dog"

// FakeTranscriber returns a fixed text or error without network access and
// remembers what it was fed.
type FakeTranscriber struct {
	text string
	err  error
	lang string

	mu       sync.Mutex
	sessions int
	lastPCM  int
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string           { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }

// Sessions is the number of sessions closed so far.
func (f *FakeTranscriber) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// LastPCMBytes is how much audio the most recent session received.
func (f *FakeTranscriber) LastPCMBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPCM
}

func (f *FakeTranscriber) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	return &fakeSession{parent: f, cfg: cfg}, nil
}

type fakeSession struct {
	parent *FakeTranscriber
	cfg    SessionConfig
	fed    int
}

func (s *fakeSession) Feed(pcm []byte) { s.fed += len(pcm) }

func (s *fakeSession) Close() (SessionResult, error) {
	f := s.parent
	f.mu.Lock()
	f.sessions++
	f.lastPCM = s.fed
	f.mu.Unlock()

	if f.err != nil {
		return SessionResult{}, &provider.Error{Provider: "fake", Op: "transcribe", Err: f.err}
	}
	var seconds float64
	if s.cfg.SampleRate > 0 && s.cfg.Channels > 0 {
		seconds = float64(s.fed) / 2 / float64(s.cfg.Channels) / float64(s.cfg.SampleRate)
	}
	r := SessionResult{
		Text:     f.text,
		HasText:  f.text != "",
		NoSpeech: f.text == "",
		Batch: &BatchStats{
			AudioLengthS: seconds,
			TotalTimeMs:  10,
		},
		Metrics: []string{"total: 10ms (fake)"},
	}
	r.captureMemStats()
	return r, nil
}
