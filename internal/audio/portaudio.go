package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

type portAudioPlatform struct{}

// NewPortAudio returns a Platform backed by PortAudio.
func NewPortAudio() Platform {
	return &portAudioPlatform{}
}

// Init initializes PortAudio. Monitor sources are listed by the host API
// alongside other inputs, so includeMonitors needs no extra setup.
func (p *portAudioPlatform) Init(includeMonitors bool) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

func (p *portAudioPlatform) Quit() {
	portaudio.Terminate()
}

func (p *portAudioPlatform) Driver() string {
	host, err := portaudio.DefaultHostApi()
	if err != nil {
		return ""
	}
	return host.Name
}

func (p *portAudioPlatform) RecordingDevices() ([]DeviceHandle, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	return inputHandles(devices), nil
}

// inputHandles returns handles for input-capable devices. A handle is the
// device's position in the list plus one, so 0 stays the default sentinel.
func inputHandles(devices []*portaudio.DeviceInfo) []DeviceHandle {
	handles := make([]DeviceHandle, 0, len(devices))
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			handles = append(handles, DeviceHandle(i+1))
		}
	}
	return handles
}

// deviceAt resolves a non-default handle produced by inputHandles.
func deviceAt(devices []*portaudio.DeviceInfo, h DeviceHandle) (*portaudio.DeviceInfo, error) {
	idx := int(h) - 1
	if idx < 0 || idx >= len(devices) {
		return nil, fmt.Errorf("device not found: %d", h)
	}
	return devices[idx], nil
}

func (p *portAudioPlatform) DeviceName(h DeviceHandle) (string, error) {
	device, err := p.lookup(h)
	if err != nil {
		return "", err
	}
	if device.Name == "" {
		return "", fmt.Errorf("device %d has no name", h)
	}
	return device.Name, nil
}

func (p *portAudioPlatform) OpenStream(h DeviceHandle, spec Spec, cb StreamCallback) (Stream, error) {
	device, err := p.lookup(h)
	if err != nil {
		return nil, err
	}

	channels := negotiateChannels(spec.Channels, device.MaxInputChannels)
	s := &portAudioStream{
		cb: cb,
		spec: Spec{
			Frequency: spec.Frequency,
			Format:    FormatF32LE,
			Channels:  channels,
			Samples:   spec.Samples,
		},
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(spec.Frequency)
	params.FramesPerBuffer = spec.Samples

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (p *portAudioPlatform) lookup(h DeviceHandle) (*portaudio.DeviceInfo, error) {
	if h == DefaultDevice {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	return deviceAt(devices, h)
}

// negotiateChannels returns the channel count a device can actually open.
func negotiateChannels(requested, available int) int {
	if available > 0 && available < requested {
		return available
	}
	return requested
}

type portAudioStream struct {
	stream  *portaudio.Stream
	spec    Spec
	cb      StreamCallback
	pending []float32 // valid only during process
}

// process runs on the PortAudio callback thread. in is reused by
// PortAudio after return, so it is only exposed for the callback's duration.
func (s *portAudioStream) process(in []float32) {
	s.pending = in
	s.cb(s, len(in)*sampleSize)
	s.pending = nil
}

func (s *portAudioStream) Spec() Spec { return s.spec }

func (s *portAudioStream) Resume() error {
	return s.stream.Start()
}

func (s *portAudioStream) Read(buf []float32) int {
	n := copy(buf, s.pending)
	s.pending = s.pending[n:]
	return n * sampleSize
}

// Close stops the stream; Pa_StopStream returns after the last callback.
func (s *portAudioStream) Close() {
	s.stream.Stop()
	s.stream.Close()
}
