package audio

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	// SampleFrequency is the rate requested from every device.
	SampleFrequency = 44100
	// RequestedChannels is the channel count requested from every device.
	RequestedChannels = 2

	// MinSampleCount keeps callbacks from firing too often; 300 samples
	// still covers 144 fps at 44.1 kHz.
	MinSampleCount = 300

	DefaultDeviceIndex = -1
	DefaultDeviceName  = "Default capturing device"
	UnknownDeviceName  = "Unknown Device"

	systemDefaultDeviceName = "System default capturing device"
)

// Options configures a capture component.
type Options struct {
	// TargetFPS caps the callback block size so that one block arrives per
	// rendered frame. Zero leaves the block size at MaxSamples.
	TargetFPS uint
	// MaxSamples is the largest block the downstream sink accepts.
	MaxSamples int
	// IncludeMonitors asks the platform to list monitor/loopback sources.
	IncludeMonitors bool
}

// AudioCapture binds one platform recording device to one Sink.
//
// Control methods are not safe for concurrent use; callers serialize them.
type AudioCapture struct {
	platform Platform
	log      zerolog.Logger

	requestedSampleCount int

	sink        Sink
	deviceIndex int
	current     *session
}

// session is the state of one open stream. Its deliver method is the
// stream callback, so delivery never touches AudioCapture fields.
type session struct {
	stream   Stream
	sink     Sink
	channels int
}

// New initializes the platform audio subsystem. Close releases it.
func New(platform Platform, opts Options, log zerolog.Logger) (*AudioCapture, error) {
	c := &AudioCapture{
		platform:             platform,
		log:                  log,
		requestedSampleCount: RequestedSampleCount(opts.TargetFPS, opts.MaxSamples),
		deviceIndex:          DefaultDeviceIndex,
	}

	if err := platform.Init(opts.IncludeMonitors); err != nil {
		return nil, fmt.Errorf("failed to initialize audio subsystem: %w", err)
	}
	return c, nil
}

// RequestedSampleCount returns the callback block size for a target frame
// rate. A rate of zero disables the cap.
func RequestedSampleCount(targetFPS uint, maxSamples int) int {
	count := maxSamples
	if targetFPS > 0 {
		count = min(SampleFrequency/int(targetFPS), maxSamples)
		count = max(count, MinSampleCount)
	}
	return count
}

// RequestedSampleCount returns the block size requested from the platform.
func (c *AudioCapture) RequestedSampleCount() int {
	return c.requestedSampleCount
}

// Close stops recording and shuts the platform subsystem down.
func (c *AudioCapture) Close() error {
	c.StopRecording()
	c.platform.Quit()
	return nil
}

// ListDevices returns a fresh snapshot of selectable devices keyed by index.
// Index -1 is always present and selects the system default.
func (c *AudioCapture) ListDevices() map[int]string {
	devices := map[int]string{
		DefaultDeviceIndex: DefaultDeviceName,
	}

	handles, err := c.platform.RecordingDevices()
	if err != nil {
		c.log.Error().Err(err).Msg("Could not enumerate recording devices")
		return devices
	}

	for i, h := range handles {
		name, err := c.platform.DeviceName(h)
		if err != nil {
			c.log.Error().Err(err).Int("index", i).Msg("Could not get device name")
			continue
		}
		devices[i] = name
	}
	return devices
}

// StartRecording opens the device at index and begins delivering samples
// to sink. Failures are logged; no stream is left open.
func (c *AudioCapture) StartRecording(sink Sink, index int) {
	c.sink = sink
	c.deviceIndex = index

	driver := c.platform.Driver()
	if driver == "" {
		driver = "unknown"
	}
	c.log.Debug().Str("driver", driver).Msg("Using audio driver")

	if !c.open() {
		return
	}

	if err := c.current.stream.Resume(); err != nil {
		c.log.Error().Err(err).Int("index", c.deviceIndex).Msg("Failed to resume audio stream")
		c.current.stream.Close()
		c.current = nil
		return
	}
	c.log.Debug().Msg("Started audio recording")
}

// StopRecording closes the open stream, if any.
func (c *AudioCapture) StopRecording() {
	if c.current == nil {
		return
	}

	c.current.stream.Close()
	c.current = nil

	c.log.Debug().Msg("Stopped audio recording and closed device")
}

// NextAudioDevice cycles forward through the device list, wrapping to the
// system default after the last device.
func (c *AudioCapture) NextAudioDevice() {
	c.StopRecording()

	next := NextDeviceIndex(c.deviceIndex, c.deviceCount())
	c.StartRecording(c.sink, next)
}

// NextDeviceIndex returns the index following current in a list of count
// devices: 0..count-1, then -1, then 0 again.
func NextDeviceIndex(current, count int) int {
	return ((current + 2) % (count + 1)) - 1
}

// SetAudioDeviceIndex switches to the device at index. Indices outside
// [-1, count) are ignored.
func (c *AudioCapture) SetAudioDeviceIndex(index int) {
	if index < DefaultDeviceIndex || index >= c.deviceCount() {
		return
	}

	c.StopRecording()
	c.deviceIndex = index
	c.StartRecording(c.sink, index)
}

// AudioDeviceIndex returns the selected index, which may no longer exist.
func (c *AudioCapture) AudioDeviceIndex() int {
	return c.deviceIndex
}

// AudioDeviceName returns the display name of the selected device.
func (c *AudioCapture) AudioDeviceName() string {
	if c.deviceIndex < 0 {
		return DefaultDeviceName
	}

	handles, err := c.platform.RecordingDevices()
	if err != nil || c.deviceIndex >= len(handles) {
		return UnknownDeviceName
	}

	name, err := c.platform.DeviceName(handles[c.deviceIndex])
	if err != nil {
		return UnknownDeviceName
	}
	return name
}

// Recording reports whether a stream is open.
func (c *AudioCapture) Recording() bool {
	return c.current != nil
}

func (c *AudioCapture) deviceCount() int {
	handles, err := c.platform.RecordingDevices()
	if err != nil {
		return 0
	}
	return len(handles)
}

func (c *AudioCapture) open() bool {
	requested := Spec{
		Frequency: SampleFrequency,
		Format:    FormatF32LE,
		Channels:  RequestedChannels,
		Samples:   c.requestedSampleCount,
	}

	handle := DefaultDevice
	name := systemDefaultDeviceName

	// Out-of-range indices fall back to the default device.
	if c.deviceIndex >= 0 {
		if handles, err := c.platform.RecordingDevices(); err == nil && c.deviceIndex < len(handles) {
			handle = handles[c.deviceIndex]
			if n, err := c.platform.DeviceName(handle); err == nil {
				name = n
			} else {
				name = "Unknown"
			}
		}
	}

	sess := &session{sink: c.sink}
	stream, err := c.platform.OpenStream(handle, requested, sess.deliver)
	if err != nil {
		c.log.Error().
			Err(err).
			Str("device", name).
			Int("index", c.deviceIndex).
			Msg("Failed to open audio device")
		return false
	}

	negotiated := stream.Spec()
	sess.stream = stream
	sess.channels = negotiated.Channels
	if sess.channels <= 0 {
		sess.channels = requested.Channels
	}
	c.current = sess

	c.log.Info().
		Str("device", name).
		Int("index", c.deviceIndex).
		Int("channels", sess.channels).
		Int("frequency", negotiated.Frequency).
		Msg("Opened audio recording device")

	return true
}

func (s *session) deliver(stream Stream, available int) {
	if available <= 0 {
		return
	}

	buf := make([]float32, available/sampleSize)
	read := stream.Read(buf)
	if read <= 0 {
		return
	}

	frames := read / sampleSize / s.channels
	if s.sink != nil {
		s.sink.AddFloat(buf[:read/sampleSize], frames, s.channels)
	}
}
