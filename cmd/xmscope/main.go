package main

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/quasilyte/xmscope"
	"github.com/quasilyte/xmscope/internal/config"
	"github.com/quasilyte/xmscope/internal/ebitenview"
	"github.com/quasilyte/xmscope/internal/session"
)

// This tool plays the specified XM track (or a built-in demo)
// and shows the channel scopes in a window.
//
// Click a scope to mute the channel, long click to solo it.
// Drag or use the mouse wheel to scroll, press SPACE to pause
// and R to reload the module.

// A single wheel step scrolls by this many pixels.
const wheelStep = 32

func main() {
	cmd := config.NewCommand("xmscope", "Play an XM track and show its channel scopes", run)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	s, err := session.Open(cfg, nil)
	if err != nil {
		return err
	}

	columns := cfg.Columns
	if columns == 0 {
		columns = xmscope.AutoColumns
	}
	surface := ebitenview.NewSurface(cfg.Scale)
	viewer := xmscope.NewViewer(s.Stream, surface, xmscope.Options{
		Logger:  s.Logger,
		Strict:  cfg.Strict,
		Columns: columns,
	})
	if err := viewer.SetupFromSource(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)

	g := &game{
		session:  s,
		viewer:   viewer,
		surface:  surface,
		snapshot: xmscope.NewSnapshot(0),
	}

	ebiten.SetWindowTitle("xmscope: " + s.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	runErr := ebiten.RunGame(g)

	cancel()
	<-done
	if errors.Is(runErr, ebiten.Termination) {
		return nil
	}
	return runErr
}

type game struct {
	session  *session.Session
	viewer   *xmscope.Viewer
	surface  *ebitenview.Surface
	snapshot *xmscope.Snapshot

	gesture gesture

	touchActive bool
	touchID     ebiten.TouchID
	touchIDs    []ebiten.TouchID
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		paused := !g.session.Stream.Paused()
		g.session.Stream.SetPaused(paused)
		g.viewer.SetPaused(paused)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyHome) {
		g.viewer.ResetScroll()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.reload()
	}

	if _, wy := ebiten.Wheel(); wy != 0 {
		g.viewer.OnScrollDelta(0, int(math.Round(wy*wheelStep)))
		g.viewer.OnScrollEnd()
	}

	g.updatePointer(time.Now())

	return nil
}

// reload runs on the game loop goroutine, Draw can't
// see a half-initialized viewer.
func (g *game) reload() {
	if err := g.session.Reload(); err != nil {
		g.session.Logger.Printf("reload: %v", err)
		return
	}
	if err := g.viewer.SetupFromSource(); err != nil {
		g.session.Logger.Printf("reload: %v", err)
		return
	}
	ebiten.SetWindowTitle("xmscope: " + g.session.Title)
}

func (g *game) updatePointer(now time.Time) {
	// Touches take priority over the mouse: most touch devices
	// emulate the mouse events as well.
	g.touchIDs = inpututil.AppendJustPressedTouchIDs(g.touchIDs[:0])
	if !g.touchActive && len(g.touchIDs) != 0 {
		g.touchActive = true
		g.touchID = g.touchIDs[0]
		x, y := ebiten.TouchPosition(g.touchID)
		g.gesture.Press(x, y, now)
	}

	switch {
	case g.touchActive:
		if inpututil.IsTouchJustReleased(g.touchID) {
			g.touchActive = false
			g.finishGesture(now)
			return
		}
		g.moveGesture(ebiten.TouchPosition(g.touchID))

	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		x, y := ebiten.CursorPosition()
		g.gesture.Press(x, y, now)

	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		g.finishGesture(now)
		return

	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		g.moveGesture(ebiten.CursorPosition())
	}

	if x, y, ok := g.gesture.Hold(now); ok {
		g.viewer.OnLongClick(x, y)
	}
}

func (g *game) moveGesture(x, y int) {
	if dy := g.gesture.Move(x, y); dy != 0 {
		g.viewer.OnScrollDelta(0, dy)
	}
}

func (g *game) finishGesture(now time.Time) {
	r := g.gesture.Release(now)
	switch r.kind {
	case gestureClick:
		g.viewer.OnClick(r.x, r.y)
	case gestureLongClick:
		g.viewer.OnLongClick(r.x, r.y)
	case gestureDragEnd:
		g.viewer.OnScrollEnd()
		if math.Abs(r.velY) >= minFlingSpeed {
			g.viewer.OnFling(r.velY)
		}
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	g.surface.Bind(screen)
	defer g.surface.Unbind()

	if err := g.session.Stream.FillSnapshot(g.snapshot); err != nil {
		g.session.Logger.Printf("snapshot: %v", err)
		return
	}
	if err := g.viewer.RenderFrame(g.snapshot); err != nil {
		g.session.Logger.Printf("render: %v", err)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
