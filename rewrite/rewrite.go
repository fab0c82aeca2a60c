// Package rewrite restyles a transcript in a chosen tone with an OpenAI chat
// model.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"murmur/provider"
)

const DefaultModel = openai.GPT4

type Tone string

const (
	Formal       Tone = "Formal"
	Casual       Tone = "Casual"
	Professional Tone = "Professional"
)

var Tones = []Tone{Formal, Casual, Professional}

func ParseTone(s string) (Tone, error) {
	for _, t := range Tones {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tone %q (want formal, casual or professional)", s)
}

// Next cycles through Tones.
func (t Tone) Next() Tone {
	for i, tt := range Tones {
		if tt == t {
			return Tones[(i+1)%len(Tones)]
		}
	}
	return Tones[0]
}

// UserMessage is the instruction sent alongside the transcript.
func UserMessage(tone Tone, text string) string {
	return fmt.Sprintf("Rewrite the following text in a %s tone:\n\n%s", tone, text)
}

type Rewriter interface {
	Rewrite(ctx context.Context, system string, tone Tone, text string) (string, error)
}

type Options struct {
	APIKey  string
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string
}

type Client struct {
	client *openai.Client
	model  string
}

func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *Client) Model() string { return c.model }

func (c *Client) Rewrite(ctx context.Context, system string, tone Tone, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: UserMessage(tone, text)},
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &provider.Error{Provider: "openai", Op: "rewrite", StatusCode: statusOf(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &provider.Error{Provider: "openai", Op: "rewrite", Err: errors.New("response has no choices")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
