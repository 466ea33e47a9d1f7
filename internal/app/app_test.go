package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/petems/audioviz/internal/audio"
	"github.com/petems/audioviz/internal/config"
	"github.com/rs/zerolog"
)

// Mock implementations for testing
type mockCapture struct {
	devices   map[int]string
	index     int
	recording bool
	sink      audio.Sink
	starts    []int
	closed    bool
}

func newMockCapture(names ...string) *mockCapture {
	devices := map[int]string{-1: audio.DefaultDeviceName}
	for i, n := range names {
		devices[i] = n
	}
	return &mockCapture{devices: devices, index: -1}
}

func (m *mockCapture) count() int { return len(m.devices) - 1 }

func (m *mockCapture) ListDevices() map[int]string { return m.devices }

func (m *mockCapture) StartRecording(sink audio.Sink, index int) {
	m.sink = sink
	m.index = index
	m.recording = true
	m.starts = append(m.starts, index)
}

func (m *mockCapture) StopRecording() { m.recording = false }

func (m *mockCapture) NextAudioDevice() {
	m.StopRecording()
	m.StartRecording(m.sink, audio.NextDeviceIndex(m.index, m.count()))
}

func (m *mockCapture) SetAudioDeviceIndex(index int) {
	if index < -1 || index >= m.count() {
		return
	}
	m.StopRecording()
	m.StartRecording(m.sink, index)
}

func (m *mockCapture) AudioDeviceIndex() int { return m.index }

func (m *mockCapture) AudioDeviceName() string {
	if name, ok := m.devices[m.index]; ok {
		return name
	}
	return audio.UnknownDeviceName
}

func (m *mockCapture) Recording() bool { return m.recording }

func (m *mockCapture) Close() error {
	m.closed = true
	return nil
}

type mockStatus struct {
	index     int
	name      string
	recording bool
	updates   int
}

func (m *mockStatus) SetDevice(index int, name string) {
	m.index = index
	m.name = name
	m.updates++
}

func (m *mockStatus) SetRecording(recording bool) { m.recording = recording }

type nopSink struct{}

func (nopSink) AddFloat(samples []float32, frames int, channels int) {}

func newTestApp(t *testing.T, capture *mockCapture, deviceIndex int) (*App, *config.Config, *mockStatus) {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Audio.DeviceIndex = deviceIndex

	status := &mockStatus{}
	app := New(Config{
		Capture:       capture,
		Sink:          nopSink{},
		Config:        cfg,
		Logger:        zerolog.Nop(),
		StatusUpdater: status,
	})
	return app, cfg, status
}

func TestStartUsesConfiguredDevice(t *testing.T) {
	capture := newMockCapture("Mic", "Line In")
	app, _, status := newTestApp(t, capture, 1)

	app.Start()

	if len(capture.starts) != 1 || capture.starts[0] != 1 {
		t.Fatalf("expected one start on index 1, got %v", capture.starts)
	}
	if capture.sink == nil {
		t.Error("expected the sink to be passed to the capture component")
	}
	if status.name != "Line In" || !status.recording {
		t.Errorf("expected status for Line In recording, got %+v", status)
	}

	// Start is idempotent
	app.Start()
	if len(capture.starts) != 1 {
		t.Errorf("expected a second Start to be ignored, got %v", capture.starts)
	}
}

func TestNextDevicePersistsIndex(t *testing.T) {
	capture := newMockCapture("Mic", "Line In")
	app, cfg, status := newTestApp(t, capture, -1)
	app.Start()

	app.NextDevice()
	if capture.index != 0 || cfg.Audio.DeviceIndex != 0 {
		t.Fatalf("expected index 0 in capture and config, got %d / %d", capture.index, cfg.Audio.DeviceIndex)
	}
	if status.name != "Mic" {
		t.Errorf("expected status name Mic, got %s", status.name)
	}

	reloaded, err := config.Load(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Audio.DeviceIndex != 0 {
		t.Errorf("expected saved index 0, got %d", reloaded.Audio.DeviceIndex)
	}

	app.NextDevice()
	app.NextDevice()
	if cfg.Audio.DeviceIndex != -1 {
		t.Errorf("expected wrap to -1, got %d", cfg.Audio.DeviceIndex)
	}
}

func TestSelectDeviceIgnoresInvalidIndex(t *testing.T) {
	capture := newMockCapture("Mic")
	app, cfg, _ := newTestApp(t, capture, 0)
	app.Start()

	app.SelectDevice(5)

	if capture.index != 0 || cfg.Audio.DeviceIndex != 0 {
		t.Errorf("expected index to stay 0, got %d / %d", capture.index, cfg.Audio.DeviceIndex)
	}
	if len(capture.starts) != 1 {
		t.Errorf("expected no restart, got %v", capture.starts)
	}

	app.SelectDevice(-1)
	if cfg.Audio.DeviceIndex != -1 {
		t.Errorf("expected -1 after selecting the default device, got %d", cfg.Audio.DeviceIndex)
	}
}

func TestControlIgnoredBeforeStart(t *testing.T) {
	capture := newMockCapture("Mic")
	app, _, _ := newTestApp(t, capture, -1)

	app.NextDevice()
	app.SelectDevice(0)

	if len(capture.starts) != 0 {
		t.Errorf("expected no capture before Start, got %v", capture.starts)
	}
}

func TestDevicesSortedWithCurrent(t *testing.T) {
	capture := newMockCapture("Mic", "Line In")
	app, _, _ := newTestApp(t, capture, 1)
	app.Start()

	devices := app.Devices()
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %v", devices)
	}
	for i, want := range []int{-1, 0, 1} {
		if devices[i].Index != want {
			t.Errorf("position %d: expected index %d, got %d", i, want, devices[i].Index)
		}
	}
	if !devices[2].Current || devices[0].Current || devices[1].Current {
		t.Errorf("expected only index 1 to be current, got %+v", devices)
	}

	idx, name := app.CurrentDevice()
	if idx != 1 || name != "Line In" {
		t.Errorf("expected (1, Line In), got (%d, %s)", idx, name)
	}
}

func TestShutdownClosesCapture(t *testing.T) {
	capture := newMockCapture("Mic")
	app, _, status := newTestApp(t, capture, -1)
	app.Start()

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !capture.closed {
		t.Error("expected capture to be closed")
	}
	if app.IsRecording() || status.recording {
		t.Error("expected recording to be stopped")
	}
}
