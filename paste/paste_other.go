//go:build !darwin

package paste

import "github.com/micmonay/keybd_event"

const ShortcutLabel = "Ctrl+V"

func setModifier(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
}
