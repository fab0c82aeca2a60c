//go:build darwin

package paste

import "github.com/micmonay/keybd_event"

// ShortcutLabel names the keystroke Send presses.
const ShortcutLabel = "Cmd+V"

func setModifier(kb *keybd_event.KeyBonding) {
	kb.HasSuper(true)
}
