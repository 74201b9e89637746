package ebitenview

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/quasilyte/xmscope"
)

// basicfont.Face7x13 cell metrics.
const (
	glyphWidth  = 7
	glyphHeight = 13
	glyphAscent = 11
)

// The channel numbers are printed with a smaller font.
const indexFontScale = 0.75

var (
	// ErrNotBound is returned by Lock outside of the game Draw call.
	ErrNotBound = errors.New("no screen is bound to the surface")

	errLocked = errors.New("surface is already locked")
)

// Surface adapts the Ebitengine screen image to the viewer.
//
// Ebitengine only allows drawing to the screen from inside the
// Game.Draw method, so the screen has to be bound to the surface
// before the frame is rendered:
//
//	surface.Bind(screen)
//	defer surface.Unbind()
//	viewer.RenderFrame(snapshot)
//
// The actual presentation is done by Ebitengine after Draw returns.
type Surface struct {
	mu     sync.Mutex
	screen *ebiten.Image
	locked bool

	scale float64
	face  *text.GoXFace
}

// NewSurface creates a surface that draws text using the
// basicfont 7x13 face multiplied by scale.
func NewSurface(scale float64) *Surface {
	if scale <= 0 {
		scale = 1
	}
	return &Surface{
		scale: scale,
		face:  text.NewGoXFace(basicfont.Face7x13),
	}
}

// Bind makes the screen a drawing target for the next Lock call.
func (s *Surface) Bind(screen *ebiten.Image) {
	s.mu.Lock()
	s.screen = screen
	s.mu.Unlock()
}

// Unbind forgets the bound screen.
// The screen image must not be used after the Draw method returns.
func (s *Surface) Unbind() {
	s.mu.Lock()
	s.screen = nil
	s.mu.Unlock()
}

func (s *Surface) Lock() (xmscope.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen == nil {
		return nil, ErrNotBound
	}
	if s.locked {
		return nil, errLocked
	}
	s.locked = true
	return &canvas{
		dst:   s.screen,
		scale: s.scale,
		face:  s.face,
	}, nil
}

func (s *Surface) UnlockAndPost(c xmscope.Canvas) {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
	if c, ok := c.(*canvas); ok {
		// Any late draw calls will panic instead of
		// writing into a stale screen image.
		c.dst = nil
	}
}

// Metrics returns the font cell size for the given scale.
func Metrics(f xmscope.FontKind, scale float64) xmscope.FontMetrics {
	if f == xmscope.FontIndex {
		scale *= indexFontScale
	}
	return xmscope.MetricsFromSize(int(glyphHeight*scale), int(glyphWidth*scale))
}

type canvas struct {
	dst   *ebiten.Image
	scale float64
	face  *text.GoXFace
}

func (c *canvas) Size() (width, height int) {
	b := c.dst.Bounds()
	return b.Dx(), b.Dy()
}

func (c *canvas) Metrics(f xmscope.FontKind) xmscope.FontMetrics {
	return Metrics(f, c.scale)
}

func (c *canvas) Clear(clr color.Color) {
	c.dst.Fill(clr)
}

func (c *canvas) FillRect(r image.Rectangle, clr color.Color) {
	if r.Empty() {
		return
	}
	ebitenutil.DrawRect(c.dst, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), clr)
}

func (c *canvas) DrawPoints(points []image.Point, clr color.Color) {
	for _, p := range points {
		ebitenutil.DrawRect(c.dst, float64(p.X), float64(p.Y), 1, 1, clr)
	}
}

func (c *canvas) DrawText(s string, x, y int, f xmscope.FontKind, clr color.Color) {
	scale := c.scale
	if f == xmscope.FontIndex {
		scale *= indexFontScale
	}
	var opts text.DrawOptions
	opts.GeoM.Scale(scale, scale)
	opts.GeoM.Translate(float64(x), float64(y)-glyphAscent*scale)
	opts.ColorScale.ScaleWithColor(clr)
	text.Draw(c.dst, s, c.face, &opts)
}
