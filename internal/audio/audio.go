package audio

// Sink receives interleaved float PCM. Implementations must tolerate being
// called from the platform's audio thread.
type Sink interface {
	AddFloat(samples []float32, frames int, channels int)
}

// Format is a sample encoding understood by the platform backends.
type Format int

const (
	// FormatF32LE is 32-bit IEEE float, little endian
	FormatF32LE Format = iota
)

// sampleSize is the byte width of one FormatF32LE sample.
const sampleSize = 4

// Spec describes a requested or negotiated stream format.
type Spec struct {
	Frequency int
	Format    Format
	Channels  int
	// Samples is the preferred callback block size in frames.
	Samples int
}

// DeviceHandle identifies a recording device within one platform.
// Handles are only meaningful for the platform that returned them.
type DeviceHandle uint32

// DefaultDevice selects the platform's default recording device.
const DefaultDevice DeviceHandle = 0

// StreamCallback is invoked on the platform's delivery thread when
// available bytes can be drained from s.
type StreamCallback func(s Stream, available int)

// Stream is an open binding to a recording device.
type Stream interface {
	// Spec returns the negotiated format, which may differ from the request.
	Spec() Spec
	// Resume starts delivery.
	Resume() error
	// Read drains up to len(buf) samples and returns the number of bytes read.
	Read(buf []float32) int
	// Close destroys the stream. The callback is not invoked after Close returns.
	Close()
}

// Platform is the audio subsystem a capture session runs on.
type Platform interface {
	Init(includeMonitors bool) error
	Quit()
	Driver() string
	RecordingDevices() ([]DeviceHandle, error)
	DeviceName(h DeviceHandle) (string, error)
	OpenStream(h DeviceHandle, spec Spec, cb StreamCallback) (Stream, error)
}
