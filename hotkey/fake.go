package hotkey

type FakeHotkey struct {
	keydown    chan struct{}
	registered bool
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{keydown: make(chan struct{}, 1)}
}

func (f *FakeHotkey) Register() error          { f.registered = true; return nil }
func (f *FakeHotkey) Unregister()              { f.registered = false }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Registered() bool         { return f.registered }

func (f *FakeHotkey) SimKeydown() { notify(f.keydown) }
