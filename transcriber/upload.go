package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"murmur/provider"
)

// upload posts audio as a multipart form to the provider's transcription
// endpoint. Anything but a 200 comes back as a *provider.Error.
func (b *baseTranscriber) upload(ctx context.Context, name string, audio []byte, format string, fields map[string]string) (*TracedResponse, error) {
	fail := func(status int, err error) error {
		return &provider.Error{Provider: name, Op: "transcribe", StatusCode: status, Err: err}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, fail(0, err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fail(0, err)
	}
	writer.WriteField("model", b.model)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if b.lang != "" {
		writer.WriteField("language", b.lang)
	}
	if err := writer.Close(); err != nil {
		return nil, fail(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, &body)
	if err != nil {
		return nil, fail(0, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fail(resp.StatusCode, fmt.Errorf("%s", bytes.TrimSpace(resp.Body)))
	}
	return resp, nil
}

func rateLimit(h http.Header) string {
	remaining := firstNonEmpty(h, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(h, "x-ratelimit-limit-requests")
	return remaining + "/" + limit
}
