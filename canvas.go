package xmscope

import (
	"image"
	"image/color"
)

// Surface is a drawable target that needs to be locked before drawing.
//
// A successful Lock must always be paired with an UnlockAndPost call,
// the viewer does that even if the drawing code panics.
type Surface interface {
	// Lock acquires an exclusive canvas for a single frame.
	Lock() (Canvas, error)

	// UnlockAndPost releases the canvas and presents its contents.
	UnlockAndPost(c Canvas)
}

// Canvas is a minimal set of drawing operations the viewer needs.
//
// All coordinates are in canvas pixels (whatever a pixel means for the backend).
type Canvas interface {
	Size() (width, height int)

	// Metrics reports the glyph size of the given font.
	// The height is a line height, not a glyph bounds height.
	Metrics(f FontKind) FontMetrics

	Clear(c color.Color)

	FillRect(r image.Rectangle, c color.Color)

	// DrawPoints plots every point as a single pixel.
	DrawPoints(points []image.Point, c color.Color)

	// DrawText draws s so that its baseline is located at y.
	DrawText(s string, x, y int, f FontKind, c color.Color)
}

// FontKind selects one of the two viewer fonts.
type FontKind uint8

const (
	// FontBody is used for instrument labels and it defines the layout grid.
	FontBody FontKind = iota

	// FontIndex is a (smaller) font used for channel numbers.
	FontIndex
)

// FontMetrics describes a monospace font cell.
type FontMetrics struct {
	Width  int
	Height int
}

// MetricsFromSize derives the line metrics from a font size
// in the same way for every backend: line height is 1.2 of the font size.
func MetricsFromSize(size, glyphWidth int) FontMetrics {
	return FontMetrics{
		Width:  glyphWidth,
		Height: size * 12 / 10,
	}
}

// Palette holds the viewer colors.
type Palette struct {
	Background color.RGBA
	Scope      color.RGBA
	ScopeMuted color.RGBA
	ScopeLine  color.RGBA
	Meter      color.RGBA
	Label      color.RGBA
	Number     color.RGBA
}

// DefaultPalette returns the classic dark channel viewer colors.
func DefaultPalette() Palette {
	return Palette{
		Background: color.RGBA{0, 0, 0, 255},
		Scope:      color.RGBA{40, 40, 40, 255},
		ScopeMuted: color.RGBA{60, 0, 0, 255},
		ScopeLine:  color.RGBA{80, 160, 80, 255},
		Meter:      color.RGBA{40, 80, 160, 255},
		Label:      color.RGBA{140, 140, 160, 255},
		Number:     color.RGBA{220, 220, 220, 255},
	}
}
