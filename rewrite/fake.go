package rewrite

import (
	"context"
	"sync"

	"murmur/provider"
)

// Fake answers every rewrite with a canned reply and records the requests.
type Fake struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	System string
	Tone   Tone
	Text   string
}

func (f *Fake) Rewrite(_ context.Context, system string, tone Tone, text string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{System: system, Tone: tone, Text: text})
	f.mu.Unlock()
	if f.Err != nil {
		return "", &provider.Error{Provider: "fake", Op: "rewrite", Err: f.Err}
	}
	if f.Reply == "" {
		return "[" + string(tone) + "] " + text, nil
	}
	return f.Reply, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
