package xmscope

import (
	"image"
)

// Layout is the channel viewer geometry for a single frame.
//
// It's a pure function of the font metrics, canvas size and scroll offset,
// so it's recomputed every frame instead of being cached.
//
// Every channel row takes 4 body lines:
//
//	NN  [scope   ]  XX instrument name
//	    [        ]  [volume====   ]    [  |  pan   ]
//	    [        ]
//
// On wide canvases the rows can be split into several columns.
// The channels fill the first column top to bottom, then the next one.
type Layout struct {
	Body  FontMetrics
	Index FontMetrics

	CanvasWidth  int
	CanvasHeight int

	BiasY int

	// Columns is the number of row columns, at least 1.
	// ColumnWidth is the width of a single column.
	// RowsPerColumn is only meaningful for a multi-column layout.
	Columns       int
	ColumnWidth   int
	RowsPerColumn int

	// Left is the X offset of the column the layout is bound to.
	// See ForChannel.
	Left int

	ScopeLeft   int
	ScopeWidth  int
	ScopeHeight int

	VolLeft  int
	VolWidth int

	PanLeft  int
	PanWidth int
}

// ComputeLayout derives the single column viewer geometry.
func ComputeLayout(body, index FontMetrics, canvasWidth, canvasHeight, biasY int) Layout {
	return ComputeColumnLayout(body, index, canvasWidth, canvasHeight, biasY, 1, 0)
}

// ComputeColumnLayout derives the viewer geometry for numChannels rows
// split into the given number of columns.
// A single column layout does not depend on numChannels.
func ComputeColumnLayout(body, index FontMetrics, canvasWidth, canvasHeight, biasY, columns, numChannels int) Layout {
	columns = max(1, columns)
	l := Layout{
		Body:          body,
		Index:         index,
		CanvasWidth:   canvasWidth,
		CanvasHeight:  canvasHeight,
		BiasY:         biasY,
		Columns:       columns,
		ColumnWidth:   canvasWidth / columns,
		RowsPerColumn: ceilDiv(numChannels, columns),
	}

	l.ScopeWidth = 8 * body.Width
	l.ScopeHeight = 3 * body.Height
	l.ScopeLeft = 2*index.Width + 2*body.Width
	l.VolLeft = l.ScopeLeft + l.ScopeWidth + 2*body.Width
	l.VolWidth = max(0, (l.ColumnWidth-6*body.Width-l.VolLeft)/2)
	l.PanLeft = l.VolLeft + l.VolWidth + 4*body.Width
	l.PanWidth = l.VolWidth

	return l
}

// ColumnsFor picks the number of columns for the canvas width.
// Two columns are used when every column still has room for
// the meters that are at least as wide as the scope.
func ColumnsFor(body, index FontMetrics, canvasWidth int) int {
	scopeLeft := 2*index.Width + 2*body.Width
	minColumn := scopeLeft + 10*body.Width + 6*body.Width + 2*ScopeWidthFor(body)
	if minColumn > 0 && canvasWidth/2 >= minColumn {
		return 2
	}
	return 1
}

// ForChannel returns a copy of the layout bound to the channel column.
// All X coordinates of the copy are shifted by the column offset.
func (l *Layout) ForChannel(chn int) Layout {
	bound := *l
	dx := l.column(chn) * l.ColumnWidth
	bound.Left += dx
	bound.ScopeLeft += dx
	bound.VolLeft += dx
	bound.PanLeft += dx
	return bound
}

func (l *Layout) column(chn int) int {
	if l.Columns <= 1 || l.RowsPerColumn == 0 {
		return 0
	}
	return chn / l.RowsPerColumn
}

func (l *Layout) row(chn int) int {
	if l.Columns <= 1 || l.RowsPerColumn == 0 {
		return chn
	}
	return chn % l.RowsPerColumn
}

// ScopeWidthFor returns the scope width for the given body font.
// The waveform buffers are sized using this value.
func ScopeWidthFor(body FontMetrics) int {
	return 8 * body.Width
}

// ContentHeight returns the total height of n channel rows.
func ContentHeight(body FontMetrics, n int) int {
	return (n*4 + 1) * body.Height
}

// ColumnContentHeight is like ContentHeight, but the rows
// are split into the given number of columns.
func ColumnContentHeight(body FontMetrics, n, columns int) int {
	return ContentHeight(body, ceilDiv(n, max(1, columns)))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// RowY returns the top Y coordinate of the channel row.
func (l *Layout) RowY(chn int) int {
	return l.BiasY + (l.row(chn)*4+1)*l.Body.Height
}

// RowVisible reports whether a row that starts at y intersects the canvas.
func (l *Layout) RowVisible(y int) bool {
	return y > -l.ScopeHeight && y < l.CanvasHeight
}

// ScopeRect returns the scope box of the row.
func (l *Layout) ScopeRect(y int) image.Rectangle {
	return span(l.ScopeLeft, l.ScopeLeft+l.ScopeWidth, y+1, y+l.ScopeHeight)
}

// ScopeMid returns the scope center line Y coordinate.
func (l *Layout) ScopeMid(y int) int {
	return y + l.ScopeHeight/2
}

// SampleY maps a raw sample value to the screen.
//
// The integer operations order is significant: it's a part of the
// visual behavior (small volumes flatten the waveform early).
func (l *Layout) SampleY(yMid, sample, finalVol int) int {
	return yMid + sample*finalVol/64*l.ScopeHeight/2/180
}

// NumberBaseline returns the channel number text baseline.
func (l *Layout) NumberBaseline(y int) int {
	return y + l.ScopeHeight/2 + l.Index.Height/2
}

// LabelBaseline returns the instrument label text baseline.
func (l *Layout) LabelBaseline(y int) int {
	return y + l.Body.Height
}

// LabelChars returns the max number of instrument label characters
// that fit the meters area.
func (l *Layout) LabelChars() int {
	if l.Body.Width == 0 {
		return 0
	}
	return 2*l.VolWidth/l.Body.Width + 3
}

func (l *Layout) meterRows(y int) (y1, y2 int) {
	y1 = y + 2*l.Body.Height
	y2 = y1 + l.Body.Height/3
	return y1, y2
}

// VolumeBar returns the filled and the empty parts of a volume meter.
// vol is expected to be in [0, 0x40].
func (l *Layout) VolumeBar(y, vol int) (filled, empty image.Rectangle) {
	y1, y2 := l.meterRows(y)
	volX := l.VolLeft + clamp(vol, 0, 0x40)*l.VolWidth/0x40
	filled = span(l.VolLeft, volX, y1, y2)
	empty = span(volX+1, l.VolLeft+l.VolWidth, y1, y2)
	return filled, empty
}

// PanBar returns the pan meter background and its position marker.
// pan is a signed value centered at 0.
func (l *Layout) PanBar(y, pan int) (bg, marker image.Rectangle) {
	y1, y2 := l.meterRows(y)
	panX := l.PanMarkerX(pan)
	bg = span(l.PanLeft, l.PanLeft+l.PanWidth, y1, y2)
	marker = span(panX, panX+l.Body.Width/2, y1, y2)
	return bg, marker
}

// span is like image.Rect, but it never swaps the coordinates:
// a reversed range results in an empty rectangle.
func span(x0, x1, y0, y1 int) image.Rectangle {
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}
	}
	return image.Rectangle{Min: image.Pt(x0, y0), Max: image.Pt(x1, y1)}
}

// PanMarkerX returns the pan marker left edge.
func (l *Layout) PanMarkerX(pan int) int {
	return l.PanLeft + l.PanWidth/2 + pan*l.PanWidth/0x100
}

// ScopeAt finds a channel whose scope box contains the point.
// The layout scroll offset is taken into account.
// -1 is returned if there is no such channel.
//
// The layout is expected to be unbound (see ForChannel).
func (l *Layout) ScopeAt(x, y, numChannels int) int {
	col := 0
	rows := numChannels
	if l.Columns > 1 {
		if l.ColumnWidth <= 0 || x < 0 {
			return -1
		}
		col = x / l.ColumnWidth
		if col >= l.Columns {
			return -1
		}
		x -= col * l.ColumnWidth
		rows = ceilDiv(numChannels, l.Columns)
	}
	if x < l.ScopeLeft || x > l.ScopeLeft+l.ScopeWidth {
		return -1
	}
	rowHeight := 4 * l.Body.Height
	if rowHeight == 0 {
		return -1
	}
	rel := y - l.BiasY - l.Body.Height
	if rel < 0 {
		return -1
	}
	row := rel / rowHeight
	if row >= rows {
		return -1
	}
	if rel%rowHeight > l.ScopeHeight {
		// Between the scopes.
		return -1
	}
	chn := col*rows + row
	if chn >= numChannels {
		return -1
	}
	return chn
}
