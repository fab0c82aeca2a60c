package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Options configures a cloud transcriber. Empty BaseURL and Model select the
// provider defaults.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	apiKey string
	model  string
	lang   string
}

func newBase(opts Options, defaultBase, defaultModel string) baseTranscriber {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	return baseTranscriber{
		client: NewTracedClient(),
		apiURL: base + "/audio/transcriptions",
		apiKey: opts.APIKey,
		model:  model,
	}
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// Providers lists the names New accepts.
var Providers = []string{"openai", "groq", "fake"}

func New(name string, opts Options) (Transcriber, error) {
	switch name {
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY is not set")
		}
		return NewOpenAI(opts), nil
	case "groq":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("groq: GROQ_API_KEY is not set")
		}
		return NewGroq(opts), nil
	case "fake":
		return NewFake(FakeText, nil), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
