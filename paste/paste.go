// Package paste puts text on the clipboard and sends the paste keystroke to
// the focused window.
package paste

import (
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"

	"murmur/clipboard"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Init creates the virtual keyboard. On Linux this needs write access to
// /dev/uinput.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

// Send presses the platform paste shortcut.
func Send() error {
	if err := Init(); err != nil {
		return err
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	setModifier(&kb)
	return kb.Launching()
}

// Sink copies text to the clipboard, then pastes it.
type Sink struct {
	Copy  func(string) error
	Send  func() error
	Delay time.Duration // between copy and keystroke
}

func NewSink() *Sink {
	return &Sink{Copy: clipboard.Copy, Send: Send, Delay: 50 * time.Millisecond}
}

func (s *Sink) Paste(text string) error {
	if err := s.Copy(text); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	if err := s.Send(); err != nil {
		return fmt.Errorf("sending paste keystroke: %w", err)
	}
	return nil
}
