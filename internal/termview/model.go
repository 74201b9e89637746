package termview

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasilyte/xmscope"
)

// LongClickDuration separates the clicks (mute) from the long clicks (solo).
const LongClickDuration = 500 * time.Millisecond

// scrollStep is a single channel row height in canvas pixels.
const scrollStep = 4 * cellHeight

// Source is the playback engine as seen by the terminal viewer loop.
type Source interface {
	FillSnapshot(dst *xmscope.Snapshot) error
	SetPaused(paused bool)
	Paused() bool
}

// ModelConfig configures the viewer program model.
type ModelConfig struct {
	Title string

	// FrameInterval is a delay between the rendered frames.
	// A zero value means 30 frames per second.
	FrameInterval time.Duration

	// Now is used to measure the click durations.
	// A nil value means time.Now.
	Now func() time.Time

	// Reload loads the module again and returns its new title.
	// The viewer is set up again after a successful reload.
	// A nil value disables the reload key.
	Reload func() (string, error)
}

// Model is a bubbletea model that renders the viewer frames.
type Model struct {
	viewer   *xmscope.Viewer
	surface  *Surface
	source   Source
	snapshot *xmscope.Snapshot
	config   ModelConfig

	// press is shared between the model copies.
	press *pressState

	status   string
	quitting bool

	// notice is the last reload error; it's kept until the next reload.
	notice string
}

type pressState struct {
	active bool
	x, y   int
	at     time.Time
}

type frameMsg time.Time

// NewModel creates a model; the viewer must be set up already.
func NewModel(viewer *xmscope.Viewer, surface *Surface, source Source, config ModelConfig) Model {
	if config.FrameInterval == 0 {
		config.FrameInterval = time.Second / 30
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return Model{
		viewer:   viewer,
		surface:  surface,
		source:   source,
		snapshot: xmscope.NewSnapshot(0),
		config:   config,
		press:    &pressState{},
	}
}

func nextFrame(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return nextFrame(m.config.FrameInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// The first line is the status line.
		m.surface.Resize(msg.Width, msg.Height-1)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case " ", "p":
			paused := !m.source.Paused()
			m.source.SetPaused(paused)
			m.viewer.SetPaused(paused)

		case "up", "k":
			m.scroll(scrollStep)

		case "down", "j":
			m.scroll(-scrollStep)

		case "home", "g":
			m.viewer.ResetScroll()

		case "r":
			m.reload()
		}

	case tea.MouseMsg:
		m.handleMouse(msg)

	case frameMsg:
		m.status = ""
		if err := m.source.FillSnapshot(m.snapshot); err != nil {
			m.status = err.Error()
		} else if err := m.viewer.RenderFrame(m.snapshot); err != nil {
			m.status = err.Error()
		}
		return m, nextFrame(m.config.FrameInterval)
	}

	return m, nil
}

func (m *Model) reload() {
	if m.config.Reload == nil {
		return
	}
	title, err := m.config.Reload()
	if err == nil {
		err = m.viewer.SetupFromSource()
	}
	if err != nil {
		m.notice = "reload: " + err.Error()
		return
	}
	m.notice = ""
	m.config.Title = title
}

func (m *Model) scroll(dy int) {
	m.viewer.OnScrollDelta(0, dy)
	m.viewer.OnScrollEnd()
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	if msg.Action == tea.MouseActionRelease {
		// Some terminals don't report which button was released.
		m.release()
		return
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.scroll(scrollStep)
	case tea.MouseButtonWheelDown:
		m.scroll(-scrollStep)
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress {
			*m.press = pressState{active: true, x: msg.X, y: msg.Y, at: m.config.Now()}
		}
	}
}

func (m *Model) release() {
	if !m.press.active {
		return
	}
	press := *m.press
	m.press.active = false
	// The center of the pressed cell; the status line is skipped.
	x := press.x*cellWidth + cellWidth/2
	y := (press.y-1)*cellHeight + cellHeight/2
	if m.config.Now().Sub(press.at) >= LongClickDuration {
		m.viewer.OnLongClick(x, y)
	} else {
		m.viewer.OnClick(x, y)
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.statusLine() + "\n" + m.surface.Presented()
}

func (m Model) statusLine() string {
	s := m.snapshot
	line := fmt.Sprintf("%s  ord:%02X pat:%02X row:%02X/%02X  spd:%d bpm:%d",
		m.config.Title, s.Order, s.Pattern, s.Row, s.NumRows, s.Speed, s.BPM)
	if m.source.Paused() {
		line += "  PAUSED"
	}
	for _, msg := range []string{m.status, m.notice} {
		if msg != "" {
			line += "  " + msg
		}
	}
	style := lipgloss.NewStyle().Bold(true)
	return style.Render(line)
}
