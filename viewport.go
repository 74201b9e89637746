package xmscope

import (
	"math"
	"sync"
)

// ComputeBiasY clamps the vertical scroll offset.
//
// The offset is always in [min(0, canvasHeight-contentHeight), 0]:
// the content can't be moved below its top edge and its bottom edge
// can't be moved above the canvas bottom.
//
// resetPos is true when the persisted position should be reset to 0
// (the content is pinned to the top).
func ComputeBiasY(posY, deltaY, contentHeight, canvasHeight int) (bias int, resetPos bool) {
	limit := canvasHeight - contentHeight
	if limit > 0 {
		limit = 0 // The content fits, no scrolling is possible
	}
	bias = posY + deltaY
	if bias > 0 {
		return 0, true
	}
	if bias < limit {
		bias = limit
	}
	return bias, false
}

const (
	flingDecay   = 0.9
	flingMinStep = 0.5
)

// Viewport is the vertical scroll state shared between the
// input handling code and the renderer.
//
// All methods are safe for concurrent use.
// Every method holds the lock only for a tiny read-modify-write section.
type Viewport struct {
	mu sync.Mutex

	// posY is a committed scroll position.
	posY int

	// deltaY is an in-flight drag offset, it's committed on OnScrollEnd.
	deltaY int

	// velY is a fling velocity in pixels per frame.
	velY float64

	// minBias is the lower bound computed during the last BiasY call.
	// It's unknown until bounded is set.
	minBias int
	bounded bool
}

// OnScrollDelta adds a drag movement.
// Positive dy moves the content down.
// The horizontal movement is ignored: the columns are never scrolled.
func (v *Viewport) OnScrollDelta(dx, dy int) {
	v.mu.Lock()
	v.deltaY += dy
	v.velY = 0
	v.mu.Unlock()
}

// OnScrollEnd commits the drag movement.
// Before the first frame, only the top edge limit is applied;
// the next BiasY call clamps the rest.
func (v *Viewport) OnScrollEnd() {
	v.mu.Lock()
	if v.bounded {
		v.posY = clamp(v.posY+v.deltaY, v.minBias, 0)
	} else {
		v.posY = min(v.posY+v.deltaY, 0)
	}
	v.deltaY = 0
	v.mu.Unlock()
}

// Fling starts an inertial scroll with the given velocity (pixels per frame).
func (v *Viewport) Fling(vy float64) {
	v.mu.Lock()
	v.velY = vy
	v.mu.Unlock()
}

// Reset moves the viewport back to the top.
func (v *Viewport) Reset() {
	v.mu.Lock()
	v.posY = 0
	v.deltaY = 0
	v.velY = 0
	v.mu.Unlock()
}

// Position returns the committed position and the in-flight delta.
func (v *Viewport) Position() (posY, deltaY int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.posY, v.deltaY
}

// BiasY computes the clamped vertical offset for the current frame.
//
// It also advances the fling animation by one step.
func (v *Viewport) BiasY(contentHeight, canvasHeight int) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.velY != 0 {
		v.posY += int(math.Round(v.velY))
		v.velY *= flingDecay
		if math.Abs(v.velY) < flingMinStep {
			v.velY = 0
		}
	}

	v.minBias = min(0, canvasHeight-contentHeight)
	v.bounded = true
	bias, resetPos := ComputeBiasY(v.posY, v.deltaY, contentHeight, canvasHeight)
	if resetPos || v.minBias == 0 {
		v.posY = 0
	}
	if bias == v.minBias && v.posY < v.minBias && v.deltaY == 0 {
		v.posY = v.minBias
		v.velY = 0
	}
	return bias
}
