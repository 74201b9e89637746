package xmscope

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"
)

// Options configures the Viewer.
type Options struct {
	// Logger receives the recoverable errors reports.
	// A nil logger disables the logging.
	Logger *log.Logger

	// LogEvery limits the per-frame errors logging:
	// only every N-th repeated message is printed.
	// A zero value means 100.
	LogEvery int

	// Palette overrides the default colors.
	Palette *Palette

	// Strict makes RenderFrame reject the snapshots that don't match
	// the channel count passed to the Setup.
	// By default, the viewer only renders the channels it can safely read.
	Strict bool

	// Columns is the number of channel columns.
	// Zero means a single column, AutoColumns selects
	// the value depending on the canvas width.
	Columns int
}

// AutoColumns makes the viewer use two columns on wide canvases.
const AutoColumns = -1

// FrameStats is a viewer health report.
type FrameStats struct {
	// Presented is the number of frames that were drawn and posted.
	Presented int

	// Dropped is the number of frames skipped due to surface errors.
	Dropped int

	// SampleErrors counts failed (and ignored) sample data requests.
	SampleErrors int

	// Mismatches counts malformed snapshots.
	Mismatches int
}

type frameState uint8

var (
	errFrameInProgress = errors.New("another frame is being rendered")
	errNilCanvas       = errors.New("nil canvas")
)

const (
	stateIdle frameState = iota
	stateLocked
	stateDrawing
	statePresented
)

// Viewer renders per-channel scopes, volume and pan meters.
//
// RenderFrame and Setup are expected to be called from a single
// rendering goroutine. The input handlers (OnScrollDelta, OnClick, etc.)
// can be called from any other goroutine.
type Viewer struct {
	source  PlaybackSource
	surface Surface
	palette Palette
	strict  bool
	log     *rateLogger

	viewport Viewport
	paused   atomic.Bool
	columns  atomic.Int32

	// Render goroutine state.
	state          frameState
	numChannels    int
	hold           *HoldState
	names          *InstrumentNames
	channelNumbers []string
	frameMuted     []bool
	points         []image.Point

	// buffers are the per-channel waveform windows.
	// They're overwritten in place by the sample data requests
	// and they're never cleared: if a request fails, the previous
	// contents are drawn again.
	buffers [][]int8

	// mu protects the state shared with the input handlers.
	mu          sync.Mutex
	muted       []bool
	hitLayout   Layout
	hitChannels int
	stats       FrameStats
}

// NewViewer creates a viewer that reads the data from source and draws to surface.
// Setup (or SetupFromSource) must be called before rendering any frames.
func NewViewer(source PlaybackSource, surface Surface, opts Options) *Viewer {
	if opts.LogEvery == 0 {
		opts.LogEvery = 100
	}
	palette := DefaultPalette()
	if opts.Palette != nil {
		palette = *opts.Palette
	}
	v := &Viewer{
		source:  source,
		surface: surface,
		palette: palette,
		strict:  opts.Strict,
		log:     newRateLogger(opts.Logger, opts.LogEvery),
	}
	v.SetColumns(opts.Columns)
	return v
}

// Setup prepares the viewer for a newly loaded module.
//
// It resets the held instruments and keys, rebuilds the instrument labels
// and allocates the per-channel state.
// The scroll position survives the module reload.
func (v *Viewer) Setup(numChannels int, instrumentNames []string) {
	v.numChannels = numChannels
	v.hold = NewHoldState(numChannels)
	v.names = NewInstrumentNames(instrumentNames)
	v.frameMuted = make([]bool, numChannels)
	v.buffers = make([][]int8, numChannels)

	v.channelNumbers = make([]string, numChannels)
	for i := range v.channelNumbers {
		v.channelNumbers[i] = fmt.Sprintf("%2d", i+1)
	}

	muted := make([]bool, numChannels)
	if m, ok := v.source.(Muter); ok {
		for i := range muted {
			status, err := m.Mute(i, -1)
			if err != nil {
				v.log.Printf("mute", "can't read channel %d mute status: %v", i+1, err)
				continue
			}
			muted[i] = status == 1
		}
	}

	v.mu.Lock()
	v.muted = muted
	v.hitChannels = numChannels
	v.mu.Unlock()
}

// SetupFromSource calls Setup using the values provided by the playback source.
//
// Only a channel count query failure is reported: the instrument names
// are optional, the labels fall back to plain indexes without them.
func (v *Viewer) SetupFromSource() error {
	n, err := v.source.NumChannels()
	if err != nil {
		return fmt.Errorf("query channel count: %w", err)
	}
	names, err := v.source.Instruments()
	if err != nil {
		v.log.Printf("instruments", "can't get instrument names: %v", err)
		names = nil
	}
	v.Setup(n, names)
	return nil
}

// SetPaused freezes the scopes: no sample data is requested while paused.
func (v *Viewer) SetPaused(paused bool) { v.paused.Store(paused) }

// Paused reports whether the scopes are frozen.
func (v *Viewer) Paused() bool { return v.paused.Load() }

// SetColumns changes the number of channel columns starting from the next frame.
// See Options.Columns.
func (v *Viewer) SetColumns(n int) {
	if n < 0 {
		n = AutoColumns
	}
	v.columns.Store(int32(n))
}

func (v *Viewer) columnsFor(body, index FontMetrics, width int) int {
	n := int(v.columns.Load())
	if n == AutoColumns {
		return ColumnsFor(body, index, width)
	}
	return max(1, n)
}

// OnScrollDelta handles a drag movement.
func (v *Viewer) OnScrollDelta(dx, dy int) { v.viewport.OnScrollDelta(dx, dy) }

// OnScrollEnd handles a drag release.
func (v *Viewer) OnScrollEnd() { v.viewport.OnScrollEnd() }

// OnFling starts an inertial scroll (vy is in pixels per frame).
func (v *Viewer) OnFling(vy float64) { v.viewport.Fling(vy) }

// ResetScroll moves the view back to the first channel.
func (v *Viewer) ResetScroll() { v.viewport.Reset() }

// Stats returns the frame counters.
func (v *Viewer) Stats() FrameStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Muted reports whether the channel is muted.
func (v *Viewer) Muted(chn int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return chn >= 0 && chn < len(v.muted) && v.muted[chn]
}

// OnClick toggles the mute state of the channel whose scope is under the point.
// It reports whether any scope was hit.
func (v *Viewer) OnClick(x, y int) bool {
	m, ok := v.source.(Muter)
	if !ok {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	chn := v.hitLayout.ScopeAt(x, y, v.hitChannels)
	if chn < 0 {
		return false
	}
	status := 1
	if v.muted[chn] {
		status = 0
	}
	if _, err := m.Mute(chn, status); err != nil {
		v.log.Printf("mute", "can't mute channel %d: %v", chn+1, err)
		return true
	}
	v.muted[chn] = !v.muted[chn]
	return true
}

// OnLongClick makes the channel under the point the only audible one.
// If it's already the only audible channel, all channels are un-muted.
// It reports whether any scope was hit.
func (v *Viewer) OnLongClick(x, y int) bool {
	m, ok := v.source.(Muter)
	if !ok {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	chn := v.hitLayout.ScopeAt(x, y, v.hitChannels)
	if chn < 0 {
		return false
	}

	audible := 0
	for _, muted := range v.muted {
		if !muted {
			audible++
		}
	}
	solo := audible == 1 && !v.muted[chn]

	for i := range v.muted {
		mute := i != chn
		if solo {
			mute = false
		}
		status := 0
		if mute {
			status = 1
		}
		if _, err := m.Mute(i, status); err != nil {
			v.log.Printf("mute", "can't change channel %d mute status: %v", i+1, err)
			continue
		}
		v.muted[i] = mute
	}
	return true
}

// RenderFrame draws a single frame using the snapshot data.
//
// The surface is always released if it was acquired, even if the
// drawing code panics. A surface acquisition failure drops this frame;
// the caller is free to continue with the next one.
//
// The playback source errors are never returned: the affected
// scope is drawn using the previous sample data instead.
func (v *Viewer) RenderFrame(s *Snapshot) error {
	if v.hold == nil {
		return ErrNotSetup
	}
	if v.state != stateIdle {
		return errFrameInProgress
	}
	if s == nil {
		v.mu.Lock()
		v.stats.Mismatches++
		v.mu.Unlock()
		return fmt.Errorf("%w: nil snapshot", ErrSnapshotMismatch)
	}

	c, err := v.surface.Lock()
	if err == nil && c == nil {
		err = errNilCanvas
	}
	if err != nil {
		v.mu.Lock()
		v.stats.Dropped++
		v.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}
	v.state = stateLocked

	defer func() {
		v.surface.UnlockAndPost(c)
		v.state = statePresented
		v.mu.Lock()
		v.stats.Presented++
		v.mu.Unlock()
		v.state = stateIdle
	}()

	v.state = stateDrawing
	return v.draw(c, s)
}

func (v *Viewer) draw(c Canvas, s *Snapshot) error {
	width, height := c.Size()
	body := c.Metrics(FontBody)
	index := c.Metrics(FontIndex)

	n := v.numChannels
	if !s.wellFormed() || s.Len() != n {
		v.mu.Lock()
		v.stats.Mismatches++
		v.mu.Unlock()
		v.log.Printf("mismatch", "snapshot has %d channels, expected %d", s.Len(), n)
		if v.strict {
			c.Clear(v.palette.Background)
			return fmt.Errorf("%w: expected %d channels, got %d", ErrSnapshotMismatch, n, s.Len())
		}
		n = min(n, s.Len())
	}

	cols := v.columnsFor(body, index, width)
	biasY := v.viewport.BiasY(ColumnContentHeight(body, v.numChannels, cols), height)
	l := ComputeColumnLayout(body, index, width, height, biasY, cols, v.numChannels)
	v.ensureBuffers(l.ScopeWidth)

	v.mu.Lock()
	v.hitLayout = l
	copy(v.frameMuted, v.muted)
	v.mu.Unlock()

	paused := v.paused.Load()
	labelChars := l.LabelChars()

	c.Clear(v.palette.Background)

	for i := 0; i < n; i++ {
		cl := l.ForChannel(i)
		y := cl.RowY(i)
		ins, key, trigger := v.hold.UpdateChannel(i, s.Instruments[i], s.Keys[i])

		if !cl.RowVisible(y) {
			continue
		}

		c.DrawText(v.channelNumbers[i], cl.Left, cl.NumberBaseline(y), FontIndex, v.palette.Number)

		vol := s.Volumes[i]
		if v.frameMuted[i] {
			vol = 0
			c.FillRect(cl.ScopeRect(y), v.palette.ScopeMuted)
			c.DrawText("MUTE", cl.ScopeLeft+2*body.Width, cl.ScopeMid(y)+body.Height/3, FontBody, v.palette.Label)
		} else {
			c.FillRect(cl.ScopeRect(y), v.palette.Scope)
			if !paused {
				v.fetchSamples(trigger, ins, key, i)
			}
			v.drawWaveform(c, &cl, y, v.buffers[i], s.FinalVolumes[i])
			if ins >= 0 {
				label := trimLabel(v.names.Label(ins), labelChars)
				c.DrawText(label, cl.VolLeft, cl.LabelBaseline(y), FontBody, v.palette.Label)
			}
		}

		filled, empty := cl.VolumeBar(y, vol)
		c.FillRect(filled, v.palette.Meter)
		c.FillRect(empty, v.palette.Scope)

		panBg, panMarker := cl.PanBar(y, s.Pans[i])
		c.FillRect(panBg, v.palette.Scope)
		c.FillRect(panMarker, v.palette.Meter)
	}

	return nil
}

func (v *Viewer) ensureBuffers(width int) {
	for i, buf := range v.buffers {
		if len(buf) != width {
			// Font or scale change; the old contents are useless anyway.
			v.buffers[i] = make([]int8, width)
		}
	}
}

// fetchSamples updates the channel waveform buffer.
// Any failure is ignored: the buffer keeps the last received window.
func (v *Viewer) fetchSamples(trigger bool, ins, key, chn int) {
	err := v.sampleData(trigger, ins, key, chn, v.buffers[chn])
	if err == nil {
		return
	}
	v.mu.Lock()
	v.stats.SampleErrors++
	v.mu.Unlock()
	v.log.Printf("sample", "channel %d sample data: %v", chn+1, err)
}

func (v *Viewer) sampleData(trigger bool, ins, key, chn int, buf []int8) (err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("playback source panic: %v", rv)
		}
	}()
	return v.source.SampleData(trigger, ins, key, chn, buf)
}

func (v *Viewer) drawWaveform(c Canvas, l *Layout, y int, samples []int8, finalVol int) {
	mid := l.ScopeMid(y)
	v.points = v.points[:0]
	for j, sample := range samples {
		v.points = append(v.points, image.Pt(l.ScopeLeft+j, l.SampleY(mid, int(sample), finalVol)))
	}
	c.DrawPoints(v.points, v.palette.ScopeLine)
}
