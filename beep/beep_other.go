//go:build !linux

package beep

import (
	"sync"

	"github.com/gen2brain/malgo"

	"murmur/encoder"
)

var (
	ctxOnce sync.Once
	mctx    *malgo.AllocatedContext
	playMu  sync.Mutex
)

func play(samples []int16) {
	ctxOnce.Do(func() {
		c, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err == nil {
			mctx = c
		}
	})
	if mctx == nil {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()

	data := encoder.SamplesToPCM(samples)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := copy(out, data[pos:])
			pos += n
			clear(out[n:])
			if pos >= len(data) {
				once.Do(func() { close(done) })
			}
		},
	}
	device, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		return
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return
	}
	<-done
	device.Stop()
}
