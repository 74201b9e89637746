package termview

import (
	"image"
	"image/color"

	"github.com/quasilyte/xmscope"
)

// Every terminal cell is a 2x4 braille dot matrix.
const (
	cellWidth  = 2
	cellHeight = 4
)

// brailleBits maps a dot position inside a cell to its braille pattern bit.
var brailleBits = [cellWidth][cellHeight]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// Both fonts occupy exactly one cell per character.
var cellMetrics = xmscope.MetricsFromSize(cellHeight, cellWidth)

// canvas is a dot canvas backed by a grid of terminal cells.
//
// A cell has a single foreground color: the last one drawn wins.
// Rectangles are painted as the cell backgrounds, so the dots
// drawn over them stay visible.
type canvas struct {
	cols int
	rows int

	dots   []uint8
	text   []rune
	colors []color.RGBA

	// A zero alpha means "terminal default".
	backgrounds []color.RGBA
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{}
	c.resize(cols, rows)
	return c
}

func (c *canvas) resize(cols, rows int) {
	n := cols * rows
	c.cols = cols
	c.rows = rows
	if cap(c.dots) < n {
		c.dots = make([]uint8, n)
		c.text = make([]rune, n)
		c.colors = make([]color.RGBA, n)
		c.backgrounds = make([]color.RGBA, n)
	}
	c.dots = c.dots[:n]
	c.text = c.text[:n]
	c.colors = c.colors[:n]
	c.backgrounds = c.backgrounds[:n]
}

func (c *canvas) Size() (width, height int) {
	return c.cols * cellWidth, c.rows * cellHeight
}

func (c *canvas) Metrics(f xmscope.FontKind) xmscope.FontMetrics {
	return cellMetrics
}

// Clear resets all cells.
// The terminal own background is used instead of clr.
func (c *canvas) Clear(clr color.Color) {
	clear(c.dots)
	clear(c.text)
	clear(c.colors)
	clear(c.backgrounds)
}

// FillRect paints the background of every cell the rectangle touches.
func (c *canvas) FillRect(r image.Rectangle, clr color.Color) {
	w, h := c.Size()
	r = r.Intersect(image.Rect(0, 0, w, h))
	if r.Empty() {
		return
	}
	rgba := toRGBA(clr)
	for row := r.Min.Y / cellHeight; row <= (r.Max.Y-1)/cellHeight; row++ {
		for col := r.Min.X / cellWidth; col <= (r.Max.X-1)/cellWidth; col++ {
			c.backgrounds[row*c.cols+col] = rgba
		}
	}
}

func (c *canvas) DrawPoints(points []image.Point, clr color.Color) {
	w, h := c.Size()
	rgba := toRGBA(clr)
	for _, p := range points {
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= h {
			continue
		}
		c.setDot(p.X, p.Y, rgba)
	}
}

// DrawText places the characters into the cells that contain the
// baseline pixel row; the text replaces the dots.
func (c *canvas) DrawText(s string, x, y int, f xmscope.FontKind, clr color.Color) {
	if y < 1 {
		return
	}
	row := (y - 1) / cellHeight
	if row >= c.rows {
		return
	}
	col := floorDiv(x, cellWidth)
	rgba := toRGBA(clr)
	for _, ch := range s {
		if col >= c.cols {
			break
		}
		if col >= 0 {
			i := row*c.cols + col
			c.text[i] = ch
			c.colors[i] = rgba
		}
		col++
	}
}

func (c *canvas) setDot(x, y int, clr color.RGBA) {
	i := (y/cellHeight)*c.cols + x/cellWidth
	c.dots[i] |= brailleBits[x%cellWidth][y%cellHeight]
	c.colors[i] = clr
}

// cell returns the rune to print for the cell.
// An empty cell is printed as a space.
func (c *canvas) cell(i int) rune {
	switch {
	case c.text[i] != 0:
		return c.text[i]
	case c.dots[i] != 0:
		return 0x2800 + rune(c.dots[i])
	default:
		return ' '
	}
}

func toRGBA(clr color.Color) color.RGBA {
	if rgba, ok := clr.(color.RGBA); ok {
		return rgba
	}
	r, g, b, a := clr.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
