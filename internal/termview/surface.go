package termview

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/quasilyte/xmscope"
)

var (
	errNoSize = errors.New("terminal size is unknown")
	errLocked = errors.New("surface is already locked")
)

// Surface is a terminal drawable surface.
//
// A frame is drawn into a cell grid and then rendered into a string
// that is picked up by the bubbletea View method (see Presented).
type Surface struct {
	mu sync.Mutex

	canvas *canvas
	locked bool

	cols int
	rows int

	renderer *lipgloss.Renderer
	styles   map[cellStyle]lipgloss.Style

	presented string
}

type cellStyle struct {
	fg color.RGBA
	bg color.RGBA
}

// NewSurface creates a surface that renders the cells using r.
// A nil renderer means lipgloss.DefaultRenderer().
func NewSurface(r *lipgloss.Renderer) *Surface {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Surface{
		canvas:   newCanvas(0, 0),
		renderer: r,
		styles:   make(map[cellStyle]lipgloss.Style),
	}
}

// Resize sets the canvas size in terminal cells.
// It takes effect on the next Lock.
func (s *Surface) Resize(cols, rows int) {
	s.mu.Lock()
	s.cols = max(cols, 0)
	s.rows = max(rows, 0)
	s.mu.Unlock()
}

func (s *Surface) Lock() (xmscope.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cols == 0 || s.rows == 0 {
		return nil, errNoSize
	}
	if s.locked {
		return nil, errLocked
	}
	s.locked = true
	s.canvas.resize(s.cols, s.rows)
	return s.canvas, nil
}

func (s *Surface) UnlockAndPost(c xmscope.Canvas) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	if c != xmscope.Canvas(s.canvas) {
		return
	}
	s.presented = s.render()
}

// Presented returns the last posted frame.
func (s *Surface) Presented() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

func (s *Surface) render() string {
	c := s.canvas
	var sb strings.Builder
	var run strings.Builder
	for row := 0; row < c.rows; row++ {
		if row != 0 {
			sb.WriteByte('\n')
		}
		var runStyle cellStyle
		for col := 0; col < c.cols; col++ {
			i := row*c.cols + col
			style := cellStyle{fg: c.colors[i], bg: c.backgrounds[i]}
			if col != 0 && style != runStyle {
				sb.WriteString(s.style(runStyle).Render(run.String()))
				run.Reset()
			}
			runStyle = style
			run.WriteRune(c.cell(i))
		}
		sb.WriteString(s.style(runStyle).Render(run.String()))
		run.Reset()
	}
	return sb.String()
}

func (s *Surface) style(key cellStyle) lipgloss.Style {
	if style, ok := s.styles[key]; ok {
		return style
	}
	style := s.renderer.NewStyle()
	if key.fg.A != 0 {
		style = style.Foreground(hexColor(key.fg))
	}
	if key.bg.A != 0 {
		style = style.Background(hexColor(key.bg))
	}
	s.styles[key] = style
	return style
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
