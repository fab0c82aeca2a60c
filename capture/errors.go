package capture

import "fmt"

// DeviceError reports a failure opening or reading the input stream. The
// capture run that produced it yields no frames.
type DeviceError struct {
	Op  string // "open" or "read"
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
