package transcriber

import (
	"context"
	"encoding/json"
	"fmt"

	"murmur/provider"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "whisper-1"
)

type OpenAI struct {
	baseTranscriber
}

func NewOpenAI(opts Options) *OpenAI {
	return &OpenAI{baseTranscriber: newBase(opts, OpenAIBaseURL, OpenAIModel)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go o.client.Warm(o.apiURL)
	if cfg.Language != "" {
		o.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, cfg, o.transcribe)
}

func (o *OpenAI) transcribe(ctx context.Context, audio []byte, format string) (*Result, error) {
	resp, err := o.upload(ctx, o.Name(), audio, format, map[string]string{"response_format": "json"})
	if err != nil {
		return nil, err
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, &provider.Error{Provider: o.Name(), Op: "transcribe", Err: fmt.Errorf("parsing response: %w", err)}
	}

	return &Result{
		Text:      oResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: rateLimit(resp.Header),
	}, nil
}
