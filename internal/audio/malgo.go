package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// miniaudioPlatform captures through miniaudio via malgo. Handles are
// assigned per device ID on first sight so that they stay stable while
// the device remains present.
type miniaudioPlatform struct {
	log zerolog.Logger
	ctx *malgo.AllocatedContext

	handles map[string]DeviceHandle
	devices map[DeviceHandle]malgo.DeviceInfo
	last    DeviceHandle
}

// NewMiniaudio returns a Platform backed by miniaudio.
func NewMiniaudio(log zerolog.Logger) Platform {
	return &miniaudioPlatform{
		log:     log,
		handles: make(map[string]DeviceHandle),
		devices: make(map[DeviceHandle]malgo.DeviceInfo),
	}
}

// Init creates the miniaudio context. PulseAudio and PipeWire expose
// monitor sources as ordinary capture devices, which miniaudio lists.
func (p *miniaudioPlatform) Init(includeMonitors bool) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		p.log.Debug().Str("source", "miniaudio").Msg(strings.TrimSpace(message))
	})
	if err != nil {
		return fmt.Errorf("init malgo context: %w", err)
	}
	p.ctx = ctx
	return nil
}

func (p *miniaudioPlatform) Quit() {
	if p.ctx == nil {
		return
	}
	_ = p.ctx.Uninit()
	p.ctx.Free()
	p.ctx = nil
}

func (p *miniaudioPlatform) Driver() string {
	return "miniaudio"
}

func (p *miniaudioPlatform) RecordingDevices() ([]DeviceHandle, error) {
	if p.ctx == nil {
		return nil, errors.New("miniaudio context not initialized")
	}

	infos, err := p.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}

	handles := make([]DeviceHandle, 0, len(infos))
	for _, info := range infos {
		key := info.ID.String()
		h, ok := p.handles[key]
		if !ok {
			p.last++
			h = p.last
			p.handles[key] = h
		}
		p.devices[h] = info
		handles = append(handles, h)
	}
	return handles, nil
}

func (p *miniaudioPlatform) DeviceName(h DeviceHandle) (string, error) {
	info, ok := p.devices[h]
	if !ok {
		return "", fmt.Errorf("unknown device handle %d", h)
	}
	name := info.Name()
	if name == "" {
		return "", fmt.Errorf("device %d has no name", h)
	}
	return name, nil
}

func (p *miniaudioPlatform) OpenStream(h DeviceHandle, spec Spec, cb StreamCallback) (Stream, error) {
	if p.ctx == nil {
		return nil, errors.New("miniaudio context not initialized")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(spec.Channels)
	deviceConfig.SampleRate = uint32(spec.Frequency)
	deviceConfig.PeriodSizeInFrames = uint32(spec.Samples)

	if h != DefaultDevice {
		info, ok := p.devices[h]
		if !ok {
			return nil, fmt.Errorf("unknown device handle %d", h)
		}
		id := info.ID
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	s := &miniaudioStream{cb: cb}
	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.process,
	})
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}

	s.device = device
	s.spec = Spec{
		Frequency: int(device.SampleRate()),
		Format:    FormatF32LE,
		Channels:  int(device.CaptureChannels()),
		Samples:   spec.Samples,
	}
	return s, nil
}

type miniaudioStream struct {
	device  *malgo.Device
	spec    Spec
	cb      StreamCallback
	pending []byte // valid only during process
}

func (s *miniaudioStream) process(pOutputSample, pInputSamples []byte, frameCount uint32) {
	s.pending = pInputSamples
	s.cb(s, len(pInputSamples))
	s.pending = nil
}

func (s *miniaudioStream) Spec() Spec { return s.spec }

func (s *miniaudioStream) Resume() error {
	return s.device.Start()
}

func (s *miniaudioStream) Read(buf []float32) int {
	n := decodeF32LE(buf, s.pending)
	s.pending = s.pending[n*sampleSize:]
	return n * sampleSize
}

// Close uninitializes the device; miniaudio joins its worker thread first.
func (s *miniaudioStream) Close() {
	s.device.Uninit()
}

// decodeF32LE fills dst from little-endian float32 bytes in src and returns
// the number of samples decoded. A trailing partial sample is ignored.
func decodeF32LE(dst []float32, src []byte) int {
	n := min(len(dst), len(src)/sampleSize)
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*sampleSize:]))
	}
	return n
}
