// Package prompt holds the system instruction used for rewrites, optionally
// loaded from a plain text file.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const Default = "You are a skilled assistant for rewriting text."

// FileError is a prompt file that could not be read. The previous prompt
// stays in effect.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("loading prompt %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

type Source struct {
	mu   sync.RWMutex
	text string
	path string
}

func NewSource() *Source {
	return &Source{text: Default}
}

// Load replaces the prompt with the trimmed contents of path. An empty path
// restores the default.
func (s *Source) Load(path string) error {
	if path == "" {
		s.mu.Lock()
		s.text, s.path = Default, ""
		s.mu.Unlock()
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	s.mu.Lock()
	s.text, s.path = strings.TrimSpace(string(data)), path
	s.mu.Unlock()
	return nil
}

func (s *Source) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Label describes the active prompt for display: "Default" or
// "Custom (<file name>)".
func (s *Source) Label() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.path == "" {
		return "Default"
	}
	return fmt.Sprintf("Custom (%s)", filepath.Base(s.path))
}

func (s *Source) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}
