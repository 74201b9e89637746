package termview

import (
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasilyte/xmscope"
)

var testColor = color.RGBA{R: 10, G: 20, B: 30, A: 255}

func TestCanvasDots(t *testing.T) {
	c := newCanvas(2, 1)
	if w, h := c.Size(); w != 4 || h != 4 {
		t.Fatalf("size: %dx%d", w, h)
	}
	if m := c.Metrics(xmscope.FontBody); m != (xmscope.FontMetrics{Width: 2, Height: 4}) {
		t.Errorf("body metrics: %+v", m)
	}

	c.DrawPoints([]image.Point{{0, 0}, {1, 3}, {2, 1}, {-1, 0}, {4, 0}, {0, 4}}, testColor)
	if r := c.cell(0); r != '⢁' {
		t.Errorf("cell 0: %U", r)
	}
	if r := c.cell(1); r != '⠂' {
		t.Errorf("cell 1: %U", r)
	}
	if c.colors[0] != testColor {
		t.Errorf("cell color: %v", c.colors[0])
	}

	c.Clear(color.Black)
	if c.cell(0) != ' ' || c.cell(1) != ' ' {
		t.Error("canvas is not cleared")
	}
}

func TestCanvasFillRect(t *testing.T) {
	c := newCanvas(4, 2)
	// Touches the cells (0,0), (1,0), (0,1), (1,1).
	c.FillRect(image.Rect(1, 3, 3, 5), testColor)

	for row := 0; row < 2; row++ {
		for col := 0; col < 4; col++ {
			painted := c.backgrounds[row*4+col] == testColor
			if painted != (col < 2) {
				t.Errorf("cell (%d,%d): painted=%v", col, row, painted)
			}
		}
	}
	if c.cell(0) != ' ' {
		t.Error("a rectangle should not produce the dots")
	}

	// Out of bounds rectangles are clipped.
	c.FillRect(image.Rect(-10, -10, 100, 100), color.White)
	c.FillRect(image.Rect(50, 50, 60, 60), testColor)
}

func TestCanvasText(t *testing.T) {
	c := newCanvas(6, 2)
	c.DrawPoints([]image.Point{{2, 0}}, color.White)
	// Baselines 1..4 belong to the first cell row.
	c.DrawText("ab", 2, 4, xmscope.FontBody, testColor)
	c.DrawText("clipped", -2, 8, xmscope.FontBody, testColor)
	c.DrawText("xyz", 8, 5, xmscope.FontIndex, testColor)
	c.DrawText("hidden", 0, 100, xmscope.FontBody, testColor)

	var rows []string
	for row := 0; row < 2; row++ {
		var sb strings.Builder
		for col := 0; col < 6; col++ {
			sb.WriteRune(c.cell(row*6 + col))
		}
		rows = append(rows, sb.String())
	}
	if rows[0] != " ab   " {
		t.Errorf("row 0: %q", rows[0])
	}
	if rows[1] != "lippxy" {
		t.Errorf("row 1: %q", rows[1])
	}
}

func newTestSurface() *Surface {
	return NewSurface(lipgloss.NewRenderer(io.Discard))
}

func TestSurface(t *testing.T) {
	s := newTestSurface()
	if _, err := s.Lock(); err == nil {
		t.Fatal("lock without a size succeeded")
	}

	s.Resize(3, 2)
	c, err := s.Lock()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Lock(); err == nil {
		t.Error("double lock succeeded")
	}
	c.Clear(color.Black)
	c.DrawPoints([]image.Point{{0, 0}, {5, 7}}, testColor)
	c.DrawText("hi", 2, 4, xmscope.FontBody, color.White)
	if s.Presented() != "" {
		t.Error("the frame is presented before the unlock")
	}
	s.UnlockAndPost(c)

	want := "⠁hi\n  ⢀"
	if have := s.Presented(); have != want {
		t.Errorf("presented:\nhave: %q\nwant: %q", have, want)
	}

	// The canvas follows the new size.
	s.Resize(1, 1)
	c, err = s.Lock()
	if err != nil {
		t.Fatal(err)
	}
	if w, h := c.Size(); w != 2 || h != 4 {
		t.Errorf("resized canvas: %dx%d", w, h)
	}
	c.Clear(color.Black)
	s.UnlockAndPost(c)
	if have := s.Presented(); have != " " {
		t.Errorf("presented after resize: %q", have)
	}
}

type testSource struct {
	paused bool
	muted  []bool
}

func (s *testSource) NumChannels() (int, error) { return 2, nil }

func (s *testSource) Instruments() ([]string, error) { return []string{"Lead"}, nil }

func (s *testSource) SampleData(trigger bool, ins, key, chn int, buf []int8) error {
	for i := range buf {
		buf[i] = int8(i % 64)
	}
	return nil
}

func (s *testSource) Mute(chn, status int) (int, error) {
	prev := 0
	if s.muted[chn] {
		prev = 1
	}
	if status >= 0 {
		s.muted[chn] = status == 1
	}
	return prev, nil
}

func (s *testSource) FillSnapshot(dst *xmscope.Snapshot) error {
	dst.Resize(2)
	dst.Instruments[0] = 0
	dst.Keys[0] = 48
	dst.Volumes[0] = 64
	dst.FinalVolumes[0] = 64
	dst.Row = 0x1F
	dst.NumRows = 0x40
	dst.Speed = 6
	dst.BPM = 125
	return nil
}

func (s *testSource) SetPaused(paused bool) { s.paused = paused }

func (s *testSource) Paused() bool { return s.paused }

func newTestModel(t *testing.T) (Model, *testSource, *time.Time) {
	t.Helper()
	source := &testSource{muted: make([]bool, 2)}
	surface := newTestSurface()
	viewer := xmscope.NewViewer(source, surface, xmscope.Options{})
	if err := viewer.SetupFromSource(); err != nil {
		t.Fatal(err)
	}
	now := time.Unix(100, 0)
	m := NewModel(viewer, surface, source, ModelConfig{
		Title: "test.xm",
		Now:   func() time.Time { return now },
	})
	return m, source, &now
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelRender(t *testing.T) {
	m, _, _ := newTestModel(t)
	if m.Init() == nil {
		t.Fatal("Init should schedule a frame")
	}

	m = update(m, tea.WindowSizeMsg{Width: 40, Height: 20})
	next, cmd := m.Update(frameMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Error("the next frame is not scheduled")
	}

	view := m.View()
	lines := strings.Split(view, "\n")
	if len(lines) != 20 {
		t.Fatalf("view has %d lines, want 20", len(lines))
	}
	if !strings.Contains(lines[0], "test.xm") || !strings.Contains(lines[0], "row:1F/40") {
		t.Errorf("status line: %q", lines[0])
	}
	if !strings.Contains(view, " 1") || !strings.Contains(view, " 2") {
		t.Error("channel numbers are missing")
	}
	if !strings.Contains(view, "Lead") {
		t.Error("instrument label is missing")
	}
}

func TestModelPause(t *testing.T) {
	m, source, _ := newTestModel(t)

	m = update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !source.Paused() {
		t.Fatal("space didn't pause the source")
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("status line doesn't show the pause")
	}

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if source.Paused() {
		t.Error("p didn't resume the source")
	}
}

func TestModelClicks(t *testing.T) {
	m, source, now := newTestModel(t)
	m = update(m, tea.WindowSizeMsg{Width: 40, Height: 20})
	m = update(m, frameMsg(time.Now()))

	// Cell (5, 2) is inside the channel 1 scope.
	press := tea.MouseMsg{X: 5, Y: 2, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}
	release := tea.MouseMsg{X: 5, Y: 2, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease}

	m = update(m, press)
	m = update(m, release)
	if !source.muted[0] || source.muted[1] {
		t.Fatalf("click should mute channel 1: %v", source.muted)
	}

	m = update(m, press)
	m = update(m, release)
	if source.muted[0] {
		t.Fatalf("second click should un-mute channel 1: %v", source.muted)
	}

	m = update(m, press)
	*now = now.Add(LongClickDuration + time.Millisecond)
	m = update(m, release)
	if source.muted[0] || !source.muted[1] {
		t.Fatalf("long click should solo channel 1: %v", source.muted)
	}

	// A release without a press is ignored.
	update(m, release)
	if source.muted[0] || !source.muted[1] {
		t.Errorf("stray release changed the mute state: %v", source.muted)
	}
}

func TestModelQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if next.View() != "" {
		t.Error("view after quit is not empty")
	}
}

func TestModelReload(t *testing.T) {
	m, _, _ := newTestModel(t)
	reloads := 0
	var reloadErr error
	m.config.Reload = func() (string, error) {
		reloads++
		return "new.xm", reloadErr
	}
	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}

	m = update(m, key)
	if reloads != 1 {
		t.Fatalf("reload was called %d times", reloads)
	}
	if status := strings.Split(m.View(), "\n")[0]; !strings.Contains(status, "new.xm") {
		t.Errorf("status line: %q", status)
	}

	reloadErr = errors.New("broken file")
	m = update(m, key)
	m = update(m, frameMsg(time.Now()))
	status := strings.Split(m.View(), "\n")[0]
	if !strings.Contains(status, "reload: broken file") || !strings.Contains(status, "new.xm") {
		t.Errorf("status line: %q", status)
	}
}
