// Package hotkey starts recordings from a system-wide key combination.
package hotkey

// Label is the combination New registers.
const Label = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	// Keydown fires once per press. Presses arriving while one is pending
	// are dropped.
	Keydown() <-chan struct{}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
