//go:build portaudio

package audio

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

type portaudioContext struct{}

func NewContext() (Context, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	return &portaudioContext{}, nil
}

func (p *portaudioContext) Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	var result []DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, DeviceInfo{ID: strconv.Itoa(i), Name: d.Name})
	}
	return result, nil
}

func (p *portaudioContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	var dev *portaudio.DeviceInfo
	if device == nil {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("portaudio default input: %w", err)
		}
		dev = d
	} else {
		idx, err := strconv.Atoi(device.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID %q: %w", device.ID, err)
		}
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("portaudio devices: %w", err)
		}
		if idx < 0 || idx >= len(devices) {
			return nil, fmt.Errorf("device %q no longer present", device.Name)
		}
		dev = devices[idx]
	}
	if dev.MaxInputChannels < int(config.Channels) {
		return nil, fmt.Errorf("device %q has %d input channels, need %d", dev.Name, dev.MaxInputChannels, config.Channels)
	}

	c := &portaudioCapture{name: dev.Name, channels: int(config.Channels)}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: int(config.Channels),
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(config.SampleRate),
		FramesPerBuffer: int(config.FrameSize),
	}
	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return nil, fmt.Errorf("portaudio open stream: %w", err)
	}
	c.stream = stream
	return c, nil
}

func (p *portaudioContext) Close() {
	_ = portaudio.Terminate()
}

type portaudioCapture struct {
	stream   *portaudio.Stream
	name     string
	channels int
	callback atomic.Pointer[DataCallback]
	running  atomic.Bool
}

func (c *portaudioCapture) process(in []int16) {
	cb := c.callback.Load()
	if cb == nil {
		return
	}
	data := make([]byte, len(in)*BytesPerSample)
	for i, s := range in {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	(*cb)(data, uint32(len(in)/c.channels))
}

func (c *portaudioCapture) Start() error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("portaudio start: %w", err)
	}
	c.running.Store(true)
	return nil
}

func (c *portaudioCapture) Stop() {
	if c.running.Swap(false) {
		_ = c.stream.Stop()
	}
}

func (c *portaudioCapture) Close() {
	c.Stop()
	_ = c.stream.Close()
}

func (c *portaudioCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *portaudioCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *portaudioCapture) DeviceName() string { return c.name }
