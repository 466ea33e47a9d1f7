package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/petems/audioviz/internal/app"
)

type mockController struct {
	next     int
	selected []int
	devices  []app.Device
}

func (m *mockController) NextDevice()            { m.next++ }
func (m *mockController) SelectDevice(index int) { m.selected = append(m.selected, index) }
func (m *mockController) Devices() []app.Device  { return m.devices }

type mockVisualizer struct {
	spectrum []float64
	level    float64
}

func (m *mockVisualizer) Spectrum(bands int) []float64 { return m.spectrum[:bands] }
func (m *mockVisualizer) Level() float64               { return m.level }
func (m *mockVisualizer) Waveform() ([]float32, []float32) {
	return []float32{0, 1, -1, 0}, []float32{0, 1, -1, 0}
}

func newTestModel() (Model, *mockController, *mockVisualizer, *Status) {
	ctrl := &mockController{devices: []app.Device{
		{Index: -1, Name: "Default capturing device"},
		{Index: 0, Name: "Mic", Current: true},
	}}
	viz := &mockVisualizer{spectrum: []float64{0, 0.5, 1, 0.25}, level: 0.5}
	status := NewStatus()
	return NewModel(ctrl, viz, status, 4, 30), ctrl, viz, status
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewModelInterval(t *testing.T) {
	m, _, _, _ := newTestModel()
	if m.interval != time.Second/30 {
		t.Errorf("expected 30 fps interval, got %v", m.interval)
	}

	uncapped := NewModel(&mockController{}, &mockVisualizer{}, NewStatus(), 4, 0)
	if uncapped.interval != time.Second/60 {
		t.Errorf("expected 60 Hz redraw for fps 0, got %v", uncapped.interval)
	}
}

func TestNextDeviceKey(t *testing.T) {
	m, ctrl, _, _ := newTestModel()

	_, cmd := m.Update(keyRune('n'))
	if cmd == nil {
		t.Fatal("expected a command for n")
	}
	if ctrl.next != 0 {
		t.Fatal("expected the switch to run inside the command, not in Update")
	}

	msg := cmd()
	if ctrl.next != 1 {
		t.Errorf("expected one NextDevice call, got %d", ctrl.next)
	}
	devices, ok := msg.(devicesMsg)
	if !ok || len(devices) != 2 {
		t.Errorf("expected refreshed device list, got %#v", msg)
	}
}

func TestSelectDeviceKeys(t *testing.T) {
	m, ctrl, _, _ := newTestModel()

	for _, r := range []rune{'3', '0', '-'} {
		_, cmd := m.Update(keyRune(r))
		if cmd == nil {
			t.Fatalf("expected a command for %q", r)
		}
		cmd()
	}

	want := []int{3, 0, -1}
	if len(ctrl.selected) != len(want) {
		t.Fatalf("expected selections %v, got %v", want, ctrl.selected)
	}
	for i := range want {
		if ctrl.selected[i] != want[i] {
			t.Errorf("expected selections %v, got %v", want, ctrl.selected)
		}
	}
}

func TestUnboundKeyIgnored(t *testing.T) {
	m, ctrl, _, _ := newTestModel()

	_, cmd := m.Update(keyRune('x'))
	if cmd != nil {
		t.Error("expected no command for an unbound key")
	}
	if ctrl.next != 0 || len(ctrl.selected) != 0 {
		t.Error("expected no controller calls")
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{keyRune('q'), {Type: tea.KeyCtrlC}} {
		m, _, _, _ := newTestModel()

		updated, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("expected quit command for %s", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("expected tea.QuitMsg for %s", key)
		}
		if !updated.(Model).quitting {
			t.Errorf("expected quitting state for %s", key)
		}
	}
}

func TestFrameSamplesStatusAndVisualizer(t *testing.T) {
	m, _, _, status := newTestModel()
	status.SetDevice(0, "Mic")
	status.SetRecording(true)

	updated, cmd := m.Update(frameMsg(time.Now()))
	if cmd == nil {
		t.Error("expected the next tick to be scheduled")
	}
	model := updated.(Model)

	if model.index != 0 || model.name != "Mic" || !model.recording {
		t.Errorf("expected status snapshot, got %d %q %v", model.index, model.name, model.recording)
	}
	if len(model.spectrum) != 4 || model.level != 0.5 {
		t.Errorf("expected visualizer sample, got %v %v", model.spectrum, model.level)
	}

	view := model.View()
	if !strings.Contains(view, "Mic (index 0)") {
		t.Errorf("expected device line in view, got:\n%s", view)
	}
	if !strings.Contains(view, "capturing") {
		t.Errorf("expected capturing state in view, got:\n%s", view)
	}
}

func TestDeviceListToggle(t *testing.T) {
	m, _, _, _ := newTestModel()

	updated, cmd := m.Update(keyRune('d'))
	model := updated.(Model)
	if !model.showDevices || cmd == nil {
		t.Fatal("expected device list to open and load")
	}

	updated, _ = model.Update(cmd())
	model = updated.(Model)
	view := model.View()
	if !strings.Contains(view, "Default capturing device") || !strings.Contains(view, "Mic") {
		t.Errorf("expected device names in view, got:\n%s", view)
	}

	updated, cmd = model.Update(keyRune('d'))
	if updated.(Model).showDevices || cmd != nil {
		t.Error("expected device list to close without a command")
	}
}

func TestRenderSpectrum(t *testing.T) {
	out := renderSpectrum([]float64{0, 1}, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(lines))
	}
	for _, line := range lines {
		if line != "  ██" {
			t.Errorf("expected empty then full column, got %q", line)
		}
	}

	half := strings.Split(renderSpectrum([]float64{0.25}, 2), "\n")
	if half[0] != "  " || half[1] != "▄▄" {
		t.Errorf("expected a half cell in the bottom row, got %q", half)
	}
}

func TestRenderWaveform(t *testing.T) {
	got := renderWaveform([]float32{0, 1, -1, 0}, []float32{0, 1, -1, 0}, 4)
	if got != "▄█ ▄" {
		t.Errorf("expected mid, top, bottom, mid, got %q", got)
	}
	if renderWaveform(nil, nil, 4) != "" {
		t.Error("expected empty scope without samples")
	}
}

func TestRenderMeter(t *testing.T) {
	if got := renderMeter(0.5, 4); got != "■■··" {
		t.Errorf("expected half meter, got %q", got)
	}
	if got := renderMeter(2, 3); got != "■■■" {
		t.Errorf("expected clamped meter, got %q", got)
	}
}
