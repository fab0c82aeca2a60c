package transcriber

import (
	"context"
	"encoding/json"
	"fmt"

	"murmur/provider"
)

const (
	GroqBaseURL = "https://api.groq.com/openai/v1"
	GroqModel   = "whisper-large-v3-turbo"
)

type Groq struct {
	baseTranscriber
}

func NewGroq(opts Options) *Groq {
	return &Groq{baseTranscriber: newBase(opts, GroqBaseURL, GroqModel)}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go g.client.Warm(g.apiURL)
	if cfg.Language != "" {
		g.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, cfg, g.transcribe)
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text             string  `json:"text"`
		Start            float64 `json:"start"`
		End              float64 `json:"end"`
		NoSpeechProb     float64 `json:"no_speech_prob"`
		AvgLogProb       float64 `json:"avg_logprob"`
		CompressionRatio float64 `json:"compression_ratio"`
		Temperature      float64 `json:"temperature"`
	} `json:"segments"`
}

func (g *Groq) transcribe(ctx context.Context, audio []byte, format string) (*Result, error) {
	resp, err := g.upload(ctx, g.Name(), audio, format, map[string]string{"response_format": "verbose_json"})
	if err != nil {
		return nil, err
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, &provider.Error{Provider: g.Name(), Op: "transcribe", Err: fmt.Errorf("parsing response: %w", err)}
	}

	// worst segment wins for no-speech, log-probs are averaged
	var noSpeechProb, avgLogProb float64
	var segments []Segment
	if len(gResp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range gResp.Segments {
			noSpeechProb = max(noSpeechProb, seg.NoSpeechProb)
			logProbSum += seg.AvgLogProb
			segments = append(segments, Segment{
				Text:             seg.Text,
				NoSpeechProb:     seg.NoSpeechProb,
				AvgLogProb:       seg.AvgLogProb,
				CompressionRatio: seg.CompressionRatio,
				Temperature:      seg.Temperature,
				Start:            seg.Start,
				End:              seg.End,
			})
		}
		avgLogProb = logProbSum / float64(len(gResp.Segments))
	}

	return &Result{
		Text:         gResp.Text,
		Metrics:      resp.Metrics,
		RateLimit:    rateLimit(resp.Header),
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     gResp.Duration,
		Segments:     segments,
	}, nil
}
