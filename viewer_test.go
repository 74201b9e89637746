package xmscope

import (
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"
)

type sampleCall struct {
	trigger bool
	ins     int
	key     int
	chn     int
}

type fakeSource struct {
	channels    int
	channelsErr error
	names       []string
	namesErr    error

	fill      int8
	failing   map[int]bool
	panicking bool
	calls     []sampleCall

	muted   []int
	muteErr error
}

func newFakeSource(channels int) *fakeSource {
	return &fakeSource{
		channels: channels,
		failing:  map[int]bool{},
		muted:    make([]int, channels),
	}
}

func (s *fakeSource) NumChannels() (int, error) { return s.channels, s.channelsErr }

func (s *fakeSource) Instruments() ([]string, error) { return s.names, s.namesErr }

func (s *fakeSource) SampleData(trigger bool, ins, key, chn int, buf []int8) error {
	s.calls = append(s.calls, sampleCall{trigger: trigger, ins: ins, key: key, chn: chn})
	if s.panicking {
		panic("engine crashed")
	}
	if s.failing[chn] {
		return errors.New("sample data is not available")
	}
	for i := range buf {
		buf[i] = s.fill
	}
	return nil
}

func (s *fakeSource) Mute(chn, status int) (int, error) {
	if s.muteErr != nil {
		return 0, s.muteErr
	}
	prev := s.muted[chn]
	if status >= 0 {
		s.muted[chn] = status
	}
	return prev, nil
}

func (s *fakeSource) channelCalls() []int {
	var channels []int
	for _, c := range s.calls {
		channels = append(channels, c.chn)
	}
	return channels
}

type canvasOp struct {
	kind   string
	rect   image.Rectangle
	points []image.Point
	text   string
	x, y   int
	color  color.Color
}

type recordingCanvas struct {
	width, height int
	ops           []canvasOp

	panicOnPoints bool
}

func (c *recordingCanvas) Size() (int, int) { return c.width, c.height }

func (c *recordingCanvas) Metrics(f FontKind) FontMetrics {
	if f == FontIndex {
		return testIndexFont
	}
	return testBodyFont
}

func (c *recordingCanvas) Clear(col color.Color) {
	c.ops = append(c.ops, canvasOp{kind: "clear", color: col})
}

func (c *recordingCanvas) FillRect(r image.Rectangle, col color.Color) {
	c.ops = append(c.ops, canvasOp{kind: "rect", rect: r, color: col})
}

func (c *recordingCanvas) DrawPoints(points []image.Point, col color.Color) {
	if c.panicOnPoints {
		panic("bad points")
	}
	c.ops = append(c.ops, canvasOp{kind: "points", points: slices.Clone(points), color: col})
}

func (c *recordingCanvas) DrawText(s string, x, y int, f FontKind, col color.Color) {
	c.ops = append(c.ops, canvasOp{kind: "text", text: s, x: x, y: y, color: col})
}

func (c *recordingCanvas) filter(kind string) []canvasOp {
	var result []canvasOp
	for _, op := range c.ops {
		if op.kind == kind {
			result = append(result, op)
		}
	}
	return result
}

func (c *recordingCanvas) texts() []string {
	var result []string
	for _, op := range c.filter("text") {
		result = append(result, op.text)
	}
	return result
}

type fakeSurface struct {
	canvas  *recordingCanvas
	lockErr error
	locks   int
	unlocks int
}

func (s *fakeSurface) Lock() (Canvas, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	s.locks++
	s.canvas.ops = s.canvas.ops[:0]
	return s.canvas, nil
}

func (s *fakeSurface) UnlockAndPost(c Canvas) {
	s.unlocks++
}

type viewerTester struct {
	source  *fakeSource
	surface *fakeSurface
	canvas  *recordingCanvas
	viewer  *Viewer
}

func newViewerTester(t *testing.T, channels int, opts Options) *viewerTester {
	t.Helper()
	canvas := &recordingCanvas{width: 640, height: 400}
	tester := &viewerTester{
		source:  newFakeSource(channels),
		surface: &fakeSurface{canvas: canvas},
		canvas:  canvas,
	}
	tester.viewer = NewViewer(tester.source, tester.surface, opts)
	if err := tester.viewer.SetupFromSource(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return tester
}

func (tester *viewerTester) snapshot() *Snapshot {
	s := NewSnapshot(tester.source.channels)
	for i := range s.Volumes {
		s.Volumes[i] = 0x40
		s.FinalVolumes[i] = 0x40
	}
	return s
}

func (tester *viewerTester) render(t *testing.T, s *Snapshot) {
	t.Helper()
	if err := tester.viewer.RenderFrame(s); err != nil {
		t.Fatalf("render: %v", err)
	}
}

func TestViewerNotSetup(t *testing.T) {
	v := NewViewer(newFakeSource(4), &fakeSurface{canvas: &recordingCanvas{}}, Options{})
	if err := v.RenderFrame(NewSnapshot(4)); !errors.Is(err, ErrNotSetup) {
		t.Fatalf("expected ErrNotSetup, got %v", err)
	}
}

func TestViewerSetupFromSourceErrors(t *testing.T) {
	source := newFakeSource(4)
	source.channelsErr = errors.New("engine is gone")
	v := NewViewer(source, &fakeSurface{canvas: &recordingCanvas{}}, Options{})
	if err := v.SetupFromSource(); err == nil {
		t.Fatal("expected an error")
	}

	source.channelsErr = nil
	source.namesErr = errors.New("no names")
	if err := v.SetupFromSource(); err != nil {
		t.Fatalf("names failure should not be fatal: %v", err)
	}
}

func TestViewerDrawsAllVisibleChannels(t *testing.T) {
	tester := newViewerTester(t, 4, Options{})
	tester.source.names = []string{"Kick", "Bass"}
	if err := tester.viewer.SetupFromSource(); err != nil {
		t.Fatal(err)
	}

	s := tester.snapshot()
	s.Instruments[1] = 1
	s.Keys[1] = 48
	tester.render(t, s)

	if got := tester.canvas.filter("clear"); len(got) != 1 {
		t.Fatalf("expected 1 clear call, got %d", len(got))
	}
	if got := tester.canvas.filter("points"); len(got) != 4 {
		t.Fatalf("expected 4 waveforms, got %d", len(got))
	}
	texts := tester.canvas.texts()
	for _, want := range []string{" 1", " 2", " 3", " 4", "01 Bass"} {
		if !slices.Contains(texts, want) {
			t.Errorf("text %q was not drawn (have %q)", want, texts)
		}
	}
	if stats := tester.viewer.Stats(); stats.Presented != 1 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if tester.surface.locks != 1 || tester.surface.unlocks != 1 {
		t.Fatalf("lock/unlock mismatch: %d/%d", tester.surface.locks, tester.surface.unlocks)
	}
}

func TestViewerCullsInvisibleRows(t *testing.T) {
	// 8 channels with a 20px line: the content is 660px tall,
	// the canvas is 400px.
	tester := newViewerTester(t, 8, Options{})

	s := tester.snapshot()
	s.Instruments[7] = 3
	tester.render(t, s)

	if have := tester.source.channelCalls(); !slices.Equal(have, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("sampled channels: %v", have)
	}
	texts := tester.canvas.texts()
	for _, hidden := range []string{" 6", " 7", " 8"} {
		if slices.Contains(texts, hidden) {
			t.Fatalf("culled row %q was drawn", hidden)
		}
	}
	for _, op := range tester.canvas.filter("rect") {
		if op.rect.Min.Y >= 400 {
			t.Fatalf("rect %v is below the canvas", op.rect)
		}
	}

	// Scroll to the bottom: the hold state of the culled rows
	// must be up to date.
	tester.viewer.OnScrollDelta(0, -1000)
	tester.viewer.OnScrollEnd()
	tester.source.calls = nil
	tester.render(t, tester.snapshot())

	if have := tester.source.channelCalls(); !slices.Equal(have, []int{3, 4, 5, 6, 7}) {
		t.Fatalf("sampled channels after scroll: %v", have)
	}
	last := tester.source.calls[len(tester.source.calls)-1]
	if last.ins != 3 || last.trigger {
		t.Fatalf("channel 8 should play the held instrument without a trigger, got %+v", last)
	}
}

func TestViewerTriggerUsesHeldValues(t *testing.T) {
	tester := newViewerTester(t, 1, Options{})

	s := tester.snapshot()
	s.Instruments[0] = 5
	s.Keys[0] = 48
	tester.render(t, s)
	tester.render(t, tester.snapshot())

	s = tester.snapshot()
	s.Keys[0] = 50
	tester.render(t, s)

	want := []sampleCall{
		{trigger: true, ins: 5, key: 48, chn: 0},
		{trigger: false, ins: 5, key: 48, chn: 0},
		{trigger: true, ins: 5, key: 50, chn: 0},
	}
	if !slices.Equal(tester.source.calls, want) {
		t.Fatalf("sample calls:\nhave: %+v\nwant: %+v", tester.source.calls, want)
	}
}

func TestViewerSampleFailureKeepsPreviousWindow(t *testing.T) {
	tester := newViewerTester(t, 4, Options{})

	tester.source.fill = 60
	tester.render(t, tester.snapshot())

	tester.source.fill = 120
	tester.source.failing[2] = true
	tester.render(t, tester.snapshot())

	l := ComputeLayout(testBodyFont, testIndexFont, 640, 400, 0)
	waveforms := tester.canvas.filter("points")
	if len(waveforms) != 4 {
		t.Fatalf("expected 4 waveforms, got %d", len(waveforms))
	}
	for chn, op := range waveforms {
		if len(op.points) != l.ScopeWidth {
			t.Fatalf("channel %d: %d points, want %d", chn, len(op.points), l.ScopeWidth)
		}
		mid := l.ScopeMid(l.RowY(chn))
		want := mid + 20
		if chn == 2 {
			want = mid + 10
		}
		for _, p := range op.points {
			if p.Y != want {
				t.Fatalf("channel %d: point %v, want y=%d", chn, p, want)
			}
		}
	}

	if stats := tester.viewer.Stats(); stats.SampleErrors != 1 || stats.Presented != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestViewerSourcePanicIsRecovered(t *testing.T) {
	tester := newViewerTester(t, 2, Options{})
	tester.source.panicking = true
	tester.render(t, tester.snapshot())
	if stats := tester.viewer.Stats(); stats.SampleErrors != 2 || stats.Presented != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestViewerDropsFrameOnLockFailure(t *testing.T) {
	tester := newViewerTester(t, 2, Options{})
	tester.surface.lockErr = errors.New("surface is destroyed")

	err := tester.viewer.RenderFrame(tester.snapshot())
	if !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("expected ErrSurfaceUnavailable, got %v", err)
	}
	if tester.surface.unlocks != 0 {
		t.Fatal("unlocked a surface that was never locked")
	}
	if len(tester.source.calls) != 0 {
		t.Fatal("sample data was requested for a dropped frame")
	}

	tester.surface.lockErr = nil
	tester.render(t, tester.snapshot())
	if stats := tester.viewer.Stats(); stats.Dropped != 1 || stats.Presented != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestViewerUnlocksOnPanic(t *testing.T) {
	tester := newViewerTester(t, 2, Options{})
	tester.canvas.panicOnPoints = true

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		tester.viewer.RenderFrame(tester.snapshot())
	}()

	if tester.surface.locks != 1 || tester.surface.unlocks != 1 {
		t.Fatalf("lock/unlock mismatch: %d/%d", tester.surface.locks, tester.surface.unlocks)
	}

	tester.canvas.panicOnPoints = false
	tester.render(t, tester.snapshot())
	if tester.surface.unlocks != 2 {
		t.Fatalf("the viewer did not recover after a panic")
	}
}

func TestViewerSnapshotMismatch(t *testing.T) {
	t.Run("lenient", func(t *testing.T) {
		tester := newViewerTester(t, 4, Options{})
		tester.render(t, NewSnapshot(3))
		if have := tester.source.channelCalls(); !slices.Equal(have, []int{0, 1, 2}) {
			t.Fatalf("sampled channels: %v", have)
		}
		if stats := tester.viewer.Stats(); stats.Mismatches != 1 {
			t.Fatalf("unexpected stats: %+v", stats)
		}
	})

	t.Run("ragged", func(t *testing.T) {
		tester := newViewerTester(t, 4, Options{})
		s := NewSnapshot(4)
		s.Pans = s.Pans[:2]
		tester.render(t, s)
		if have := tester.source.channelCalls(); !slices.Equal(have, []int{0, 1}) {
			t.Fatalf("sampled channels: %v", have)
		}
	})

	t.Run("strict", func(t *testing.T) {
		tester := newViewerTester(t, 4, Options{Strict: true})
		err := tester.viewer.RenderFrame(NewSnapshot(5))
		if !errors.Is(err, ErrSnapshotMismatch) {
			t.Fatalf("expected ErrSnapshotMismatch, got %v", err)
		}
		if len(tester.source.calls) != 0 {
			t.Fatal("sample data was requested for a rejected snapshot")
		}
		if tester.surface.unlocks != 1 {
			t.Fatal("the surface was not released")
		}
	})
}

func TestViewerPaused(t *testing.T) {
	tester := newViewerTester(t, 3, Options{})
	tester.source.fill = 60
	tester.render(t, tester.snapshot())

	tester.viewer.SetPaused(true)
	tester.source.calls = nil
	tester.render(t, tester.snapshot())

	if len(tester.source.calls) != 0 {
		t.Fatalf("paused viewer requested sample data: %v", tester.source.calls)
	}
	if got := tester.canvas.filter("points"); len(got) != 3 {
		t.Fatalf("frozen waveforms were not drawn")
	}
}

func TestViewerMute(t *testing.T) {
	tester := newViewerTester(t, 4, Options{})
	tester.source.muted[3] = 1
	if err := tester.viewer.SetupFromSource(); err != nil {
		t.Fatal(err)
	}
	if !tester.viewer.Muted(3) {
		t.Fatal("initial mute state was not queried")
	}
	tester.render(t, tester.snapshot())

	// Channel 1 scope: x in [36, 116], y in [21, 80].
	if !tester.viewer.OnClick(40, 30) {
		t.Fatal("the click missed the scope")
	}
	if !tester.viewer.Muted(0) || tester.source.muted[0] != 1 {
		t.Fatal("channel 1 is not muted")
	}
	if tester.viewer.OnClick(5, 30) {
		t.Fatal("a click outside of scopes was handled")
	}

	tester.source.calls = nil
	tester.render(t, tester.snapshot())
	if !slices.Contains(tester.canvas.texts(), "MUTE") {
		t.Fatal("muted channel is not marked")
	}
	if have := tester.source.channelCalls(); !slices.Equal(have, []int{1, 2}) {
		t.Fatalf("sampled channels: %v", have)
	}

	tester.viewer.OnClick(40, 30)
	if tester.viewer.Muted(0) || tester.source.muted[0] != 0 {
		t.Fatal("channel 1 is still muted")
	}
}

func TestViewerSolo(t *testing.T) {
	tester := newViewerTester(t, 4, Options{})
	tester.render(t, tester.snapshot())

	// Channel 2 scope.
	if !tester.viewer.OnLongClick(40, 110) {
		t.Fatal("the long click missed the scope")
	}
	if have := tester.source.muted; !slices.Equal(have, []int{1, 0, 1, 1}) {
		t.Fatalf("solo mute state: %v", have)
	}

	tester.viewer.OnLongClick(40, 110)
	if have := tester.source.muted; !slices.Equal(have, []int{0, 0, 0, 0}) {
		t.Fatalf("un-solo mute state: %v", have)
	}
}

func TestViewerMuteError(t *testing.T) {
	tester := newViewerTester(t, 2, Options{})
	tester.render(t, tester.snapshot())
	tester.source.muteErr = errors.New("rejected")
	if !tester.viewer.OnClick(40, 30) {
		t.Fatal("the click missed the scope")
	}
	if tester.viewer.Muted(0) {
		t.Fatal("mute state changed after an error")
	}
}

func TestViewerMutedVolumeMeter(t *testing.T) {
	tester := newViewerTester(t, 1, Options{})
	tester.source.muted[0] = 1
	if err := tester.viewer.SetupFromSource(); err != nil {
		t.Fatal(err)
	}
	tester.render(t, tester.snapshot())

	palette := DefaultPalette()
	l := ComputeLayout(testBodyFont, testIndexFont, 640, 400, 0)
	filled, _ := l.VolumeBar(l.RowY(0), 0)
	for _, op := range tester.canvas.filter("rect") {
		if op.color == palette.Meter && op.rect.Min.X == l.VolLeft && !op.rect.Empty() {
			t.Fatalf("muted channel has a non-empty volume bar %v (want %v)", op.rect, filled)
		}
	}
}

func TestViewerColumns(t *testing.T) {
	tester := newViewerTester(t, 4, Options{Columns: 2})
	tester.render(t, tester.snapshot())

	// Channels 3 and 4 are drawn in the right half.
	numbers := map[string]image.Point{}
	for _, op := range tester.canvas.filter("text") {
		numbers[op.text] = image.Pt(op.x, op.y)
	}
	wants := map[string]image.Point{
		" 1": image.Pt(0, 58),
		" 2": image.Pt(0, 138),
		" 3": image.Pt(320, 58),
		" 4": image.Pt(320, 138),
	}
	for text, want := range wants {
		if have, ok := numbers[text]; !ok || have != want {
			t.Errorf("%q drawn at %v, want %v", text, have, want)
		}
	}

	// Channel 3 scope: x in [356, 436], y in [21, 80].
	if !tester.viewer.OnClick(360, 30) {
		t.Fatal("the click missed the scope")
	}
	if !tester.viewer.Muted(2) || tester.source.muted[2] != 1 {
		t.Fatalf("channel 3 is not muted: %v", tester.source.muted)
	}
	if !tester.viewer.OnLongClick(360, 110) {
		t.Fatal("the long click missed the scope")
	}
	if have := tester.source.muted; !slices.Equal(have, []int{1, 1, 1, 0}) {
		t.Fatalf("solo mute state: %v", have)
	}
}

func TestViewerAutoColumns(t *testing.T) {
	tester := newViewerTester(t, 4, Options{Columns: AutoColumns})
	tester.render(t, tester.snapshot())
	if tester.viewer.OnClick(360, 30) {
		t.Fatal("640px canvas should use a single column")
	}

	tester.canvas.width = 800
	tester.render(t, tester.snapshot())
	if !tester.viewer.OnClick(400+36+4, 30) {
		t.Fatal("800px canvas should use two columns")
	}
	if !tester.viewer.Muted(2) {
		t.Fatal("channel 3 is not muted")
	}

	tester.viewer.SetColumns(1)
	tester.render(t, tester.snapshot())
	if tester.viewer.OnClick(440, 30) {
		t.Fatal("SetColumns(1) was ignored")
	}
}

func TestViewerNilSnapshot(t *testing.T) {
	tester := newViewerTester(t, 2, Options{})
	err := tester.viewer.RenderFrame(nil)
	if !errors.Is(err, ErrSnapshotMismatch) {
		t.Fatalf("expected ErrSnapshotMismatch, got %v", err)
	}
	if tester.surface.locks != 0 {
		t.Fatal("surface was locked for a nil snapshot")
	}
	if stats := tester.viewer.Stats(); stats.Mismatches != 1 || stats.Presented != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	tester.render(t, tester.snapshot())
}
