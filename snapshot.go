package xmscope

// NoValue is a snapshot sentinel that means "no change" for the
// instrument and key fields.
const NoValue = -1

// Snapshot is a per-frame playback state report.
//
// Every slice is indexed by channel and all of them are expected to
// have the same length (the module channel count).
// A snapshot is read-only while a frame is being rendered.
type Snapshot struct {
	// Instruments holds the instrument ID that was triggered on this frame
	// or NoValue if there was no trigger.
	Instruments []int

	// Keys holds the note that was struck on this frame or NoValue.
	Keys []int

	// Volumes are channel volume levels in [0, 0x40].
	Volumes []int

	// FinalVolumes are the effective channel volumes after
	// envelopes and global volume were applied, in [0, 0x40].
	FinalVolumes []int

	// Pans are signed panning values centered at 0, in [-0x80, 0x7f].
	Pans []int

	// Periods are the current channel periods (0 means "not playing").
	Periods []int

	Order   int
	Pattern int
	Row     int
	NumRows int
	Frame   int
	Speed   int
	BPM     int
}

// NewSnapshot allocates a snapshot for n channels.
// All trigger fields are initialized to NoValue.
func NewSnapshot(n int) *Snapshot {
	s := &Snapshot{}
	s.Resize(n)
	return s
}

// Resize makes every channel slice n elements long, reusing the
// underlying memory when possible.
func (s *Snapshot) Resize(n int) {
	s.Instruments = resizeInts(s.Instruments, n, NoValue)
	s.Keys = resizeInts(s.Keys, n, NoValue)
	s.Volumes = resizeInts(s.Volumes, n, 0)
	s.FinalVolumes = resizeInts(s.FinalVolumes, n, 0)
	s.Pans = resizeInts(s.Pans, n, 0)
	s.Periods = resizeInts(s.Periods, n, 0)
}

// Len reports the number of channels that can be safely read from
// every slice of the snapshot.
// For a well-formed snapshot it's just the channel count.
func (s *Snapshot) Len() int {
	n := len(s.Instruments)
	n = min(n, len(s.Keys))
	n = min(n, len(s.Volumes))
	n = min(n, len(s.FinalVolumes))
	n = min(n, len(s.Pans))
	return n
}

// wellFormed reports whether all channel slices have the same length.
// Periods are optional and may be nil.
func (s *Snapshot) wellFormed() bool {
	n := len(s.Instruments)
	if len(s.Keys) != n || len(s.Volumes) != n || len(s.FinalVolumes) != n || len(s.Pans) != n {
		return false
	}
	return s.Periods == nil || len(s.Periods) == n
}

func resizeInts(dst []int, n, fill int) []int {
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = fill
	}
	return dst
}
