package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
	"github.com/veandco/go-sdl2/sdl"
)

func encodeF32LE(samples ...float32) []byte {
	b := make([]byte, len(samples)*sampleSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*sampleSize:], math.Float32bits(s))
	}
	return b
}

func TestDecodeF32LE(t *testing.T) {
	src := encodeF32LE(0.5, -1, 0.25)

	dst := make([]float32, 3)
	if n := decodeF32LE(dst, src); n != 3 {
		t.Fatalf("expected 3 samples, got %d", n)
	}
	want := []float32{0.5, -1, 0.25}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], dst[i])
		}
	}

	// Partial trailing sample is dropped
	if n := decodeF32LE(dst, src[:7]); n != 1 {
		t.Errorf("expected 1 whole sample from 7 bytes, got %d", n)
	}

	// Destination bounds the decode
	if n := decodeF32LE(dst[:2], src); n != 2 {
		t.Errorf("expected 2 samples into a 2-slot buffer, got %d", n)
	}
}

func TestNegotiateChannels(t *testing.T) {
	tests := []struct {
		requested, available, want int
	}{
		{2, 2, 2},
		{2, 8, 2},
		{2, 1, 1},
		{2, 0, 2},
	}
	for _, tt := range tests {
		if got := negotiateChannels(tt.requested, tt.available); got != tt.want {
			t.Errorf("negotiateChannels(%d, %d) = %d, want %d", tt.requested, tt.available, got, tt.want)
		}
	}
}

func TestPollInterval(t *testing.T) {
	got := pollInterval(Spec{Frequency: 44100, Samples: 441})
	if got != 5*time.Millisecond {
		t.Errorf("expected half of a 10ms block, got %v", got)
	}

	if got := pollInterval(Spec{}); got != 5*time.Millisecond {
		t.Errorf("expected fallback interval for an empty spec, got %v", got)
	}

	if got := pollInterval(Spec{Frequency: 44100, Samples: 1}); got != time.Millisecond {
		t.Errorf("expected interval floor of 1ms, got %v", got)
	}
}

func TestPortAudioHandlesResolveToSameDevice(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "Speakers", MaxOutputChannels: 2},
		{Name: "Mic", MaxInputChannels: 1},
		{Name: "HDMI", MaxOutputChannels: 8},
		{Name: "Line In", MaxInputChannels: 2},
	}

	handles := inputHandles(devices)
	if len(handles) != 2 {
		t.Fatalf("expected 2 input handles, got %v", handles)
	}

	for i, want := range []string{"Mic", "Line In"} {
		if handles[i] == DefaultDevice {
			t.Errorf("handle %d collides with the default sentinel", i)
		}
		d, err := deviceAt(devices, handles[i])
		if err != nil {
			t.Fatalf("deviceAt(%d): %v", handles[i], err)
		}
		if d.Name != want {
			t.Errorf("handle %d: expected %s, got %s", handles[i], want, d.Name)
		}
	}

	if _, err := deviceAt(devices, DeviceHandle(len(devices)+1)); err == nil {
		t.Error("expected error for a handle past the device list")
	}
	if _, err := deviceAt(devices, DefaultDevice); err == nil {
		t.Error("expected error for the default sentinel")
	}
}

func TestSDLOpenKeepsRequestedFrequency(t *testing.T) {
	if sdlAllowedChanges&sdl.AUDIO_ALLOW_FREQUENCY_CHANGE != 0 {
		t.Error("SDL must resample to the requested rate; sinks assume 44100 Hz")
	}
	if sdlAllowedChanges&sdl.AUDIO_ALLOW_CHANNELS_CHANGE == 0 {
		t.Error("expected channel count negotiation to stay enabled")
	}
}

func TestPortAudioStreamProcess(t *testing.T) {
	var got []float32
	var announced int
	s := &portAudioStream{}
	s.cb = func(st Stream, available int) {
		announced = available
		buf := make([]float32, available/sampleSize)
		n := st.Read(buf)
		got = buf[:n/sampleSize]
	}

	s.process([]float32{0.1, 0.2, 0.3, 0.4})

	if announced != 16 {
		t.Errorf("expected 16 bytes announced, got %d", announced)
	}
	if len(got) != 4 || got[3] != 0.4 {
		t.Errorf("unexpected drained samples %v", got)
	}
	if s.pending != nil {
		t.Error("expected PortAudio's buffer to be released after the callback")
	}
}

func TestMiniaudioStreamProcess(t *testing.T) {
	var got []float32
	s := &miniaudioStream{}
	s.cb = func(st Stream, available int) {
		buf := make([]float32, available/sampleSize)
		n := st.Read(buf)
		got = buf[:n/sampleSize]
	}

	s.process(nil, encodeF32LE(1, -1), 1)

	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("unexpected drained samples %v", got)
	}
	if s.pending != nil {
		t.Error("expected miniaudio's buffer to be released after the callback")
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	var calls int
	counter := SinkFunc(func(samples []float32, frames int, channels int) { calls++ })

	sink := MultiSink(a, nil, MultiSink(b, counter))
	sink.AddFloat([]float32{1, 2}, 1, 2)

	if len(a.deliveries) != 1 || len(b.deliveries) != 1 || calls != 1 {
		t.Fatalf("expected every sink to receive one delivery, got %d/%d/%d",
			len(a.deliveries), len(b.deliveries), calls)
	}
	if b.deliveries[0].frames != 1 || b.deliveries[0].channels != 2 {
		t.Errorf("unexpected delivery %+v", b.deliveries[0])
	}
}

func TestNewPlatform(t *testing.T) {
	for _, name := range []string{"", "portaudio", "miniaudio", "sdl"} {
		if _, err := NewPlatform(name, zerolog.Nop()); err != nil {
			t.Errorf("NewPlatform(%q): %v", name, err)
		}
	}
	if _, err := NewPlatform("jack", zerolog.Nop()); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
