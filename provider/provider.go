// Package provider holds the error type shared by the cloud clients.
package provider

import "fmt"

// Error is any failure talking to a remote speech or language model API:
// transport errors, non-2xx responses and undecodable bodies alike.
type Error struct {
	Provider   string // "openai", "groq", ...
	Op         string // "transcribe", "rewrite"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
