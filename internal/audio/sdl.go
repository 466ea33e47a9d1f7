package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// hintAudioIncludeMonitors makes SDL list PulseAudio monitor sources as
// recording devices (SDL 2.0.16+).
const hintAudioIncludeMonitors = "SDL_AUDIO_INCLUDE_MONITORS"

// sdlAllowedChanges lets SDL open a device with fewer channels. Frequency
// changes are not allowed, so SDL resamples and every sink sees
// SampleFrequency.
const sdlAllowedChanges = sdl.AUDIO_ALLOW_CHANNELS_CHANGE

type sdlPlatform struct{}

// NewSDL returns a Platform backed by the SDL2 audio subsystem.
func NewSDL() Platform {
	return &sdlPlatform{}
}

func (p *sdlPlatform) Init(includeMonitors bool) error {
	if includeMonitors {
		sdl.SetHint(hintAudioIncludeMonitors, "1")
	}
	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		return fmt.Errorf("failed to initialize SDL audio: %w", err)
	}
	return nil
}

func (p *sdlPlatform) Quit() {
	sdl.QuitSubSystem(sdl.INIT_AUDIO)
}

func (p *sdlPlatform) Driver() string {
	return sdl.GetCurrentAudioDriver()
}

// RecordingDevices returns handles 1..n for SDL's recording device indices.
func (p *sdlPlatform) RecordingDevices() ([]DeviceHandle, error) {
	n := sdl.GetNumAudioDevices(true)
	if n < 0 {
		return nil, lastSDLError()
	}

	handles := make([]DeviceHandle, n)
	for i := range handles {
		handles[i] = DeviceHandle(i + 1)
	}
	return handles, nil
}

func (p *sdlPlatform) DeviceName(h DeviceHandle) (string, error) {
	if h == DefaultDevice {
		return "", errors.New("the default device has no SDL name")
	}
	name := sdl.GetAudioDeviceName(int(h)-1, true)
	if name == "" {
		return "", lastSDLError()
	}
	return name, nil
}

func (p *sdlPlatform) OpenStream(h DeviceHandle, spec Spec, cb StreamCallback) (Stream, error) {
	// An empty name asks SDL for its default recording device.
	name := ""
	if h != DefaultDevice {
		var err error
		if name, err = p.DeviceName(h); err != nil {
			return nil, err
		}
	}

	desired := sdl.AudioSpec{
		Freq:     int32(spec.Frequency),
		Format:   sdl.AUDIO_F32LSB,
		Channels: uint8(spec.Channels),
		Samples:  uint16(spec.Samples),
	}
	var obtained sdl.AudioSpec

	id, err := sdl.OpenAudioDevice(name, true, &desired, &obtained, sdlAllowedChanges)
	if err != nil {
		return nil, err
	}

	s := &sdlStream{
		id: id,
		cb: cb,
		spec: Spec{
			Frequency: int(obtained.Freq),
			Format:    FormatF32LE,
			Channels:  int(obtained.Channels),
			Samples:   int(obtained.Samples),
		},
		stop: make(chan struct{}),
	}
	s.interval = pollInterval(s.spec)
	return s, nil
}

// pollInterval is half the duration of one block, so the queue is drained
// at least once per block.
func pollInterval(spec Spec) time.Duration {
	if spec.Frequency <= 0 || spec.Samples <= 0 {
		return 5 * time.Millisecond
	}
	block := time.Duration(spec.Samples) * time.Second / time.Duration(spec.Frequency)
	return max(block/2, time.Millisecond)
}

func lastSDLError() error {
	if err := sdl.GetError(); err != nil {
		return err
	}
	return errors.New("unknown SDL error")
}

// sdlStream is a queued (callback-less) SDL capture device. A poll
// goroutine stands in for the delivery thread.
type sdlStream struct {
	id       sdl.AudioDeviceID
	spec     Spec
	cb       StreamCallback
	interval time.Duration

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func (s *sdlStream) Spec() Spec { return s.spec }

func (s *sdlStream) Resume() error {
	sdl.PauseAudioDevice(s.id, false)
	if !s.started {
		s.started = true
		s.wg.Add(1)
		go s.poll()
	}
	return nil
}

func (s *sdlStream) poll() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if queued := int(sdl.GetQueuedAudioSize(s.id)); queued > 0 {
				s.cb(s, queued)
			}
		}
	}
}

func (s *sdlStream) Read(buf []float32) int {
	queued := int(sdl.GetQueuedAudioSize(s.id))
	n := min(len(buf)*sampleSize, queued-queued%sampleSize)
	if n <= 0 {
		return 0
	}

	raw := make([]byte, n)
	if err := sdl.DequeueAudio(s.id, raw); err != nil {
		return 0
	}
	return decodeF32LE(buf, raw) * sampleSize
}

// Close joins the poll goroutine before closing the device.
func (s *sdlStream) Close() {
	if s.started {
		close(s.stop)
		s.wg.Wait()
	}
	sdl.CloseAudioDevice(s.id)
}
