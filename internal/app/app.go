package app

import (
	"context"
	"sort"
	"sync"

	"github.com/petems/audioviz/internal/audio"
	"github.com/petems/audioviz/internal/config"
	"github.com/rs/zerolog"
)

// Capturer is the capture component the app drives.
type Capturer interface {
	ListDevices() map[int]string
	StartRecording(sink audio.Sink, index int)
	StopRecording()
	NextAudioDevice()
	SetAudioDeviceIndex(index int)
	AudioDeviceIndex() int
	AudioDeviceName() string
	Recording() bool
	Close() error
}

// StatusUpdater is an interface for updating status (e.g., tray menu)
type StatusUpdater interface {
	SetDevice(index int, name string)
	SetRecording(recording bool)
}

type Config struct {
	Capture       Capturer
	Sink          audio.Sink
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

// Device is one entry of the device menu.
type Device struct {
	Index   int
	Name    string
	Current bool
}

// App serializes control of the capture component. Front-ends (tray,
// terminal UI, hotkey) call it from their own goroutines.
type App struct {
	capture Capturer
	sink    audio.Sink
	cfg     *config.Config
	log     zerolog.Logger

	mu      sync.Mutex
	status  StatusUpdater
	started bool
}

func New(cfg Config) *App {
	return &App{
		capture: cfg.Capture,
		sink:    cfg.Sink,
		cfg:     cfg.Config,
		log:     cfg.Logger,
		status:  cfg.StatusUpdater,
	}
}

// SetStatusUpdater sets the status receiver (for circular dependency resolution)
func (a *App) SetStatusUpdater(s StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// Start begins capturing from the configured device.
func (a *App) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return
	}
	a.started = true

	a.log.Info().Int("device_index", a.cfg.Audio.DeviceIndex).Msg("Starting capture")
	a.capture.StartRecording(a.sink, a.cfg.Audio.DeviceIndex)
	a.notifyLocked()
}

// NextDevice switches to the next capture device and remembers it.
func (a *App) NextDevice() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}

	a.capture.NextAudioDevice()
	a.persistLocked()
	a.notifyLocked()
}

// SelectDevice switches to the device at index. Unknown indices are ignored.
func (a *App) SelectDevice(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}

	a.capture.SetAudioDeviceIndex(index)
	a.persistLocked()
	a.notifyLocked()
}

// Devices returns the current device list ordered by index.
func (a *App) Devices() []Device {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.capture.AudioDeviceIndex()
	list := a.capture.ListDevices()

	devices := make([]Device, 0, len(list))
	for idx, name := range list {
		devices = append(devices, Device{Index: idx, Name: name, Current: idx == current})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices
}

// CurrentDevice returns the selected index and its display name.
func (a *App) CurrentDevice() (int, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture.AudioDeviceIndex(), a.capture.AudioDeviceName()
}

func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture.Recording()
}

// Shutdown stops capture and releases the audio subsystem.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.capture.StopRecording()
	a.started = false
	a.notifyLocked()

	return a.capture.Close()
}

func (a *App) persistLocked() {
	idx := a.capture.AudioDeviceIndex()
	if idx == a.cfg.Audio.DeviceIndex {
		return
	}

	a.cfg.Audio.DeviceIndex = idx
	if err := a.cfg.Save(); err != nil {
		a.log.Error().Err(err).Msg("Failed to save config")
		return
	}
	a.log.Info().Int("device_index", idx).Str("device", a.capture.AudioDeviceName()).Msg("Changed audio device")
}

func (a *App) notifyLocked() {
	if a.status == nil {
		return
	}
	a.status.SetDevice(a.capture.AudioDeviceIndex(), a.capture.AudioDeviceName())
	a.status.SetRecording(a.capture.Recording())
}
