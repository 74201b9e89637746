package xmplay

// frameInfo is a recorded state of a single played tick.
type frameInfo struct {
	seq int

	order   int
	pattern int
	row     int
	numRows int
	frame   int
	speed   int
	bpm     int

	// Trigger reports, -1 means "nothing was triggered".
	instruments []int
	keys        []int

	volumes      []int
	finalVolumes []int
	pans         []int
	periods      []int

	// offsets are the sample start positions of the triggered notes.
	offsets []float64
}

// frameRing keeps the most recent frames in a fixed-size buffer.
// All frame slices are allocated once, so recording a tick doesn't allocate.
type frameRing struct {
	frames []frameInfo

	// newest is a seq of the last pushed frame, -1 for an empty ring.
	newest int
}

func newFrameRing(size, numChannels int) frameRing {
	r := frameRing{
		frames: make([]frameInfo, size),
		newest: -1,
	}
	for i := range r.frames {
		f := &r.frames[i]
		f.instruments = make([]int, numChannels)
		f.keys = make([]int, numChannels)
		f.volumes = make([]int, numChannels)
		f.finalVolumes = make([]int, numChannels)
		f.pans = make([]int, numChannels)
		f.periods = make([]int, numChannels)
		f.offsets = make([]float64, numChannels)
	}
	return r
}

func (r *frameRing) Reset() {
	r.newest = -1
}

func (r *frameRing) IsEmpty() bool { return r.newest < 0 }

// Oldest returns a seq of the oldest frame that is still available.
func (r *frameRing) Oldest() int {
	return max(0, r.newest-len(r.frames)+1)
}

// Push allocates a slot for the next frame.
// The returned frame holds the stale data of the overwritten slot.
func (r *frameRing) Push() *frameInfo {
	r.newest++
	f := &r.frames[r.newest%len(r.frames)]
	f.seq = r.newest
	return f
}

// Get returns a frame by its seq or nil if it's not available.
func (r *frameRing) Get(seq int) *frameInfo {
	if seq < r.Oldest() || seq > r.newest || r.newest < 0 {
		return nil
	}
	return &r.frames[seq%len(r.frames)]
}
