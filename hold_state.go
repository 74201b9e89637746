package xmscope

// HoldState carries the last known instrument and key of every channel.
//
// The snapshots are latency-compensated: they describe what is being heard
// right now, while the sample data the engine can provide is always current.
// A trigger is reported only once, so the viewer has to remember the
// instrument and key to request the matching sample data on the next frames.
//
// Only the held values must ever be used to request the sample data.
type HoldState struct {
	instruments []int
	keys        []int
}

// NewHoldState creates a hold state for n channels.
// Nothing is held initially (all values are NoValue).
func NewHoldState(n int) *HoldState {
	h := &HoldState{
		instruments: make([]int, n),
		keys:        make([]int, n),
	}
	h.Reset()
	return h
}

// Reset forgets all held values.
func (h *HoldState) Reset() {
	for i := range h.instruments {
		h.instruments[i] = NoValue
		h.keys[i] = NoValue
	}
}

// Len returns the number of tracked channels.
func (h *HoldState) Len() int { return len(h.instruments) }

// Instrument returns the held instrument of the channel.
func (h *HoldState) Instrument(chn int) int { return h.instruments[chn] }

// Key returns the held key of the channel.
func (h *HoldState) Key(chn int) int { return h.keys[chn] }

// UpdateChannel applies the raw snapshot values of a single channel.
//
// A non-sentinel value (>=0) replaces the held one, NoValue keeps it.
// The held values are returned along with a trigger flag that is
// set iff the raw values reported a new instrument or key on this frame.
func (h *HoldState) UpdateChannel(chn, ins, key int) (heldIns, heldKey int, trigger bool) {
	if ins >= 0 {
		h.instruments[chn] = ins
	}
	if key >= 0 {
		h.keys[chn] = key
	}
	return h.instruments[chn], h.keys[chn], ins >= 0 || key >= 0
}

// Update applies the whole snapshot.
// Only the channels that exist in both the hold state and the snapshot are updated.
func (h *HoldState) Update(s *Snapshot) {
	n := min(h.Len(), s.Len())
	for i := 0; i < n; i++ {
		h.UpdateChannel(i, s.Instruments[i], s.Keys[i])
	}
}
