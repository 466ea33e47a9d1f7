package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/petems/audioviz/internal/app"
	"github.com/petems/audioviz/internal/logging"
	"github.com/rs/zerolog"
)

const deviceRescanInterval = 5 * time.Second

// Controller is the subset of the app the tray drives.
type Controller interface {
	NextDevice()
	SelectDevice(index int)
	Devices() []app.Device
}

// Meter reports the current input level in [0, 1].
type Meter interface {
	Level() float64
}

type UI struct {
	app     Controller
	meter   Meter
	version string
	commit  string
	log     zerolog.Logger

	mu        sync.Mutex
	index     int
	name      string
	recording bool
	dirty     bool

	// Menu items
	mDevice     *systray.MenuItem
	mNext       *systray.MenuItem
	mDevices    *systray.MenuItem
	mCopy       *systray.MenuItem
	deviceItems map[int]*systray.MenuItem

	stop chan struct{}
}

// SetDevice records the selected device. The menu is refreshed on the
// next tick so callers holding locks never wait on the tray.
func (u *UI) SetDevice(index int, name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.index = index
	u.name = name
	u.dirty = true
}

func (u *UI) SetRecording(recording bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.recording = recording
	u.dirty = true
}

func New(application Controller, meter Meter, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		meter:   meter,
		version: version,
		commit:  commit,
		log:     log,
		index:   -1,
		stop:    make(chan struct{}),
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application Controller) {
	u.app = application
}

// Run blocks on the tray event loop. It must be called from the main
// goroutine.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			systray.Quit()
		case <-u.stop:
		}
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTitle(titleFor(0, false))
	systray.SetTooltip(fmt.Sprintf("audioviz %s", u.version))

	u.mDevice = systray.AddMenuItem("Input: …", "Current capture device")
	u.mDevice.Disable()
	systray.AddSeparator()

	u.mNext = systray.AddMenuItem("Next Input Device", "Switch to the next capture device")
	u.mDevices = systray.AddMenuItem("Input Devices", "Select capture device")
	u.buildDeviceMenu()
	u.mCopy = systray.AddMenuItem("Copy Device Name", "Copy the current device name")

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About audioviz")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
	go u.refreshLoop()
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mNext.ClickedCh:
			u.app.NextDevice()
		case <-u.mCopy.ClickedCh:
			u.copyDeviceName()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		case <-u.stop:
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	u.deviceItems = make(map[int]*systray.MenuItem)
	u.syncDeviceMenu()
}

// syncDeviceMenu re-queries the device list. systray cannot remove menu
// items, so devices that disappear are hidden and shown again if they
// come back.
func (u *UI) syncDeviceMenu() {
	devices := u.app.Devices()

	known := make(map[int]bool, len(u.deviceItems))
	for idx := range u.deviceItems {
		known[idx] = true
	}
	added, gone := planDeviceMenu(known, devices)

	for _, dev := range added {
		u.addDeviceItem(dev)
	}
	for _, idx := range gone {
		u.deviceItems[idx].Hide()
	}

	for _, dev := range devices {
		item := u.deviceItems[dev.Index]
		item.SetTitle(dev.Name)
		item.Show()
		if dev.Current {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (u *UI) addDeviceItem(dev app.Device) {
	item := u.mDevices.AddSubMenuItemCheckbox(dev.Name, "", dev.Current)
	u.deviceItems[dev.Index] = item

	go func(index int, menuItem *systray.MenuItem) {
		for {
			select {
			case <-menuItem.ClickedCh:
				u.app.SelectDevice(index)
			case <-u.stop:
				return
			}
		}
	}(dev.Index, item)
}

// planDeviceMenu returns devices that need a new menu item and known
// indices that are no longer listed, in index order.
func planDeviceMenu(known map[int]bool, devices []app.Device) (added []app.Device, gone []int) {
	listed := make(map[int]bool, len(devices))
	for _, dev := range devices {
		listed[dev.Index] = true
		if !known[dev.Index] {
			added = append(added, dev)
		}
	}
	for idx := range known {
		if !listed[idx] {
			gone = append(gone, idx)
		}
	}
	sort.Ints(gone)
	return added, gone
}

// refreshLoop applies status changes, animates the level glyph and
// periodically picks up devices that appeared or went away.
func (u *UI) refreshLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	devices := time.NewTicker(deviceRescanInterval)
	defer devices.Stop()

	for {
		select {
		case <-ticker.C:
			u.refresh()
		case <-devices.C:
			u.syncDeviceMenu()
		case <-u.stop:
			return
		}
	}
}

func (u *UI) refresh() {
	u.mu.Lock()
	index, name, recording, dirty := u.index, u.name, u.recording, u.dirty
	u.dirty = false
	u.mu.Unlock()

	level := 0.0
	if recording && u.meter != nil {
		level = u.meter.Level()
	}
	systray.SetTitle(titleFor(level, recording))

	if !dirty {
		return
	}

	u.mDevice.SetTitle(deviceLabel(index, name, recording))
	u.syncDeviceMenu()
}

func (u *UI) copyDeviceName() {
	u.mu.Lock()
	name := u.name
	u.mu.Unlock()

	if err := clipboard.WriteAll(name); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy device name")
		return
	}
	u.log.Debug().Str("device", name).Msg("Copied device name to clipboard")
}

func (u *UI) openLogs() {
	path := logging.Path()
	if err := openCommand(runtime.GOOS, path).Start(); err != nil {
		u.log.Error().Err(err).Str("path", path).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("audioviz: live audio visualizer")
}

func (u *UI) onExit() {
	close(u.stop)
}

// openCommand returns the command that opens path with the default app.
func openCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

func deviceLabel(index int, name string, recording bool) string {
	if !recording {
		return fmt.Sprintf("Input: %s (no audio)", name)
	}
	return fmt.Sprintf("Input: %s [%d]", name, index)
}

// titleFor sets the tray title with a note emoji and level indicator
func titleFor(level float64, recording bool) string {
	return fmt.Sprintf("🎵 %s", glyphForLevel(level, recording))
}

var levelGlyphs = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// glyphForLevel returns a bar glyph for the RMS level
func glyphForLevel(level float64, recording bool) string {
	if !recording {
		return "⚪️" // White - no input
	}
	switch {
	case level <= 0:
		return levelGlyphs[0]
	case level >= 1:
		return levelGlyphs[len(levelGlyphs)-1]
	}
	return levelGlyphs[int(level*float64(len(levelGlyphs)))]
}
