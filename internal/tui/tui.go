// Package tui renders the visualizer in the terminal using bubbletea.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/petems/audioviz/internal/app"
)

// Controller is the subset of the app the UI drives.
type Controller interface {
	NextDevice()
	SelectDevice(index int)
	Devices() []app.Device
}

// Visualizer is the PCM state the UI draws.
type Visualizer interface {
	Spectrum(bands int) []float64
	Level() float64
	Waveform() (left, right []float32)
}

// Status receives device updates from the app. It never blocks, so the app
// may call it while holding its own lock.
type Status struct {
	mu        sync.Mutex
	index     int
	name      string
	recording bool
}

func NewStatus() *Status {
	return &Status{index: -1}
}

func (s *Status) SetDevice(index int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	s.name = name
}

func (s *Status) SetRecording(recording bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = recording
}

func (s *Status) snapshot() (int, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.name, s.recording
}

const spectrumRows = 8

var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

type frameMsg time.Time
type devicesMsg []app.Device

// Model is the bubbletea model for the visualizer.
type Model struct {
	ctrl     Controller
	viz      Visualizer
	status   *Status
	bands    int
	interval time.Duration

	index     int
	name      string
	recording bool
	spectrum  []float64
	level     float64
	scope     string

	devices     []app.Device
	showDevices bool
	quitting    bool
}

// NewModel creates a model redrawing at fps frames per second. An fps of
// zero redraws at 60 Hz; capture itself stays uncapped.
func NewModel(ctrl Controller, viz Visualizer, status *Status, bands int, fps uint) Model {
	if fps == 0 {
		fps = 60
	}
	return Model{
		ctrl:     ctrl,
		viz:      viz,
		status:   status,
		bands:    bands,
		interval: time.Second / time.Duration(fps),
		index:    -1,
	}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		m.index, m.name, m.recording = m.status.snapshot()
		m.spectrum = m.viz.Spectrum(m.bands)
		m.level = m.viz.Level()
		left, right := m.viz.Waveform()
		m.scope = renderWaveform(left, right, max(len(m.spectrum)*2, 20))
		return m, m.tick()

	case devicesMsg:
		m.devices = msg
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "n":
		return m, m.control(m.ctrl.NextDevice)

	case "d":
		m.showDevices = !m.showDevices
		if m.showDevices {
			return m, m.control(func() {})
		}
		return m, nil
	}

	// 0-9 select a device; the default device is reached with "n" wrapping
	// or by typing "-".
	if key == "-" {
		return m, m.control(func() { m.ctrl.SelectDevice(-1) })
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		idx := int(key[0] - '0')
		return m, m.control(func() { m.ctrl.SelectDevice(idx) })
	}
	return m, nil
}

// control runs fn off the event loop, then refreshes the device list.
func (m Model) control(fn func()) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		fn()
		return devicesMsg(ctrl.Devices())
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))

	scopeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	meterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	currentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))
)

func (m Model) View() string {
	if m.quitting {
		return "Stopping capture...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("audioviz"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Input: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (index %d)", m.name, m.index)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("State: "))
	if m.recording {
		b.WriteString(valueStyle.Render("capturing"))
	} else {
		b.WriteString(valueStyle.Render("no audio input"))
	}
	b.WriteString("\n\n")

	b.WriteString(barStyle.Render(renderSpectrum(m.spectrum, spectrumRows)))
	b.WriteString("\n")
	b.WriteString(scopeStyle.Render(m.scope))
	b.WriteString("\n")
	b.WriteString(meterStyle.Render(renderMeter(m.level, max(len(m.spectrum)*2, 20))))
	b.WriteString("\n")

	if m.showDevices {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Devices"))
		b.WriteString("\n")
		for _, d := range m.devices {
			line := fmt.Sprintf("  %2d  %s", d.Index, d.Name)
			if d.Current {
				b.WriteString(currentStyle.Render(line + "  ●"))
			} else {
				b.WriteString(valueStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("n: next device  0-9/-: select  d: devices  q: quit"))

	return b.String()
}

// renderSpectrum draws one column per band, rows tall, using eighth-block
// glyphs for the partial top cell.
func renderSpectrum(spectrum []float64, rows int) string {
	if len(spectrum) == 0 {
		return strings.Repeat("\n", rows-1)
	}

	lines := make([]string, rows)
	for r := 0; r < rows; r++ {
		var line strings.Builder
		// r counts from the top; cell covers heights [floor, floor+1) in rows
		floor := float64(rows - 1 - r)
		for _, v := range spectrum {
			fill := math.Max(0, math.Min(1, v*float64(rows)-floor))
			glyph := barGlyphs[int(math.Round(fill*float64(len(barGlyphs)-1)))]
			line.WriteRune(glyph)
			line.WriteRune(glyph)
		}
		lines[r] = line.String()
	}
	return strings.Join(lines, "\n")
}

// renderWaveform draws the mono mix as one row of glyphs, width cells wide,
// with silence on the middle glyph.
func renderWaveform(left, right []float32, width int) string {
	n := min(len(left), len(right))
	if n == 0 || width <= 0 {
		return ""
	}

	top := len(barGlyphs) - 1
	var b strings.Builder
	for i := 0; i < width; i++ {
		f := i * n / width
		v := float64(left[f]+right[f]) / 2
		v = math.Max(-1, math.Min(1, v))
		b.WriteRune(barGlyphs[int(math.Round((v+1)/2*float64(top)))])
	}
	return b.String()
}

// renderMeter draws an RMS level bar width cells wide.
func renderMeter(level float64, width int) string {
	filled := int(math.Round(math.Min(1, math.Max(0, level)) * float64(width)))
	return strings.Repeat("■", filled) + strings.Repeat("·", width-filled)
}

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
