package main

import (
	"time"
)

const (
	// longClickDuration separates the clicks (mute) from the long clicks (solo).
	longClickDuration = 500 * time.Millisecond

	// A pointer that moved further than this is a drag, not a click.
	dragThreshold = 8

	// Slower drags are not turned into a fling.
	minFlingSpeed = 2.0
)

type gestureKind uint8

const (
	gestureNone gestureKind = iota
	gestureClick
	gestureLongClick
	gestureDragEnd
)

type gestureResult struct {
	kind gestureKind
	x, y int

	// velY is a drag speed in pixels per frame (dragEnd only).
	velY float64
}

// gesture tracks a single pointer (mouse or touch) from press to release.
//
// Move is expected to be called once per frame, so the
// drag velocity is measured in pixels per frame.
type gesture struct {
	active   bool
	dragging bool
	consumed bool

	startX, startY int
	lastX, lastY   int
	startedAt      time.Time

	velY float64
}

func (g *gesture) Press(x, y int, now time.Time) {
	*g = gesture{
		active:    true,
		startX:    x,
		startY:    y,
		lastX:     x,
		lastY:     y,
		startedAt: now,
	}
}

// Move returns the vertical scroll delta caused by this movement.
func (g *gesture) Move(x, y int) int {
	if !g.active || g.consumed {
		return 0
	}
	dy := y - g.lastY
	g.lastX = x
	g.lastY = y
	if !g.dragging {
		if abs(x-g.startX) <= dragThreshold && abs(y-g.startY) <= dragThreshold {
			return 0
		}
		g.dragging = true
		// The movement below the threshold is applied at once.
		dy = y - g.startY
	}
	g.velY = (g.velY + float64(dy)) / 2
	return dy
}

// Hold reports a long click while the pointer is still pressed.
// It fires at most once per gesture.
func (g *gesture) Hold(now time.Time) (x, y int, ok bool) {
	if !g.active || g.dragging || g.consumed {
		return 0, 0, false
	}
	if now.Sub(g.startedAt) < longClickDuration {
		return 0, 0, false
	}
	g.consumed = true
	return g.startX, g.startY, true
}

func (g *gesture) Release(now time.Time) gestureResult {
	if !g.active {
		return gestureResult{}
	}
	g.active = false
	switch {
	case g.dragging:
		return gestureResult{kind: gestureDragEnd, velY: g.velY}
	case g.consumed:
		return gestureResult{}
	case now.Sub(g.startedAt) >= longClickDuration:
		return gestureResult{kind: gestureLongClick, x: g.startX, y: g.startY}
	default:
		return gestureResult{kind: gestureClick, x: g.startX, y: g.startY}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
