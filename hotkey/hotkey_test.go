package hotkey

import "testing"

func TestFakeCoalescesPresses(t *testing.T) {
	f := NewFake()
	var hk Hotkey = f
	if err := hk.Register(); err != nil || !f.Registered() {
		t.Fatalf("Register: %v", err)
	}
	f.SimKeydown()
	f.SimKeydown() // dropped, one already pending

	<-hk.Keydown()
	select {
	case <-hk.Keydown():
		t.Fatal("second press was queued")
	default:
	}
	hk.Unregister()
	if f.Registered() {
		t.Error("still registered")
	}
}
