package xmplay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quasilyte/xmscope"
	"github.com/quasilyte/xmscope/xmfile"
)

// Stream plays the compiled XM module without producing any sound.
//
// Instead of PCM bytes, it records the per-tick channel state that
// can be used to visualize the playback: the snapshots are obtained
// via FillSnapshot() and the scope waveforms via SampleData().
//
// Stream implements xmscope.PlaybackSource and xmscope.Muter.
// All methods are safe for concurrent use: the playback usually runs
// in its own goroutine (see Run) while the viewer reads the state.
type Stream struct {
	mu sync.Mutex

	module module
	loaded bool

	pattern           *pattern
	patternIndex      int
	patternRowsRemain int
	patternRowIndex   int
	rowTicksRemain    int
	tickIndex         int

	// Pattern break and position jump state.
	jumpKind    jumpKind
	jumpPattern int
	jumpRow     int

	settings streamSettings

	// These values can change during the playback.
	globalVolume float64
	bpm          float64
	tickDuration time.Duration
	ticksPerRow  int // Also known as "tempo" and "spd"

	channels []streamChannel
	muted    []bool

	frames frameRing

	// Reported state is what the last FillSnapshot call has seen.
	// SampleData uses it to keep the scopes in sync with the snapshots.
	lastReported    int
	reportedPeriods []int
	reportedOffsets []float64

	scopes []scopeState

	paused atomic.Bool
}

type streamSettings struct {
	loop         bool
	latencyTicks int
}

type jumpKind uint8

const (
	jumpNone jumpKind = iota
	jumpPatternBreak
	jumpPosition
)

// StreamInfo contains the loaded module stream information.
type StreamInfo struct {
	// TickDuration is a real time length of a single XM tick.
	// It depends on the current BPM and can change during the playback.
	TickDuration time.Duration

	// MemoryUsage approximates the compiled XM module size in bytes.
	MemoryUsage uint

	NumChannels    int
	NumInstruments int

	// SongLength is a pattern order length.
	SongLength int

	Name string
}

// LoadModuleConfig configures the XM module loading.
//
// These settings can't be changed after a module is loaded.
type LoadModuleConfig struct {
	// BPM sets the playback speed.
	// Higher BPM will make the music play faster.
	//
	// A zero value will use the XM module default BPM value.
	// If that value is zero as well, a value of 120 will be used.
	BPM uint

	// Tempo (called "Spd" in MilkyTracker) specifies the number of ticks per pattern row.
	//
	// A zero value will use the XM module default Tempo value.
	// If that value is zero as well, a value of 6 will be used.
	// (6 is a default value in MilkyTracker.)
	Tempo uint

	// LatencyTicks delays the reported snapshots by this number of ticks.
	// It should match the audio output latency, so the viewer shows
	// what is being heard right now rather than what was just computed.
	LatencyTicks int

	// Loop makes the stream restart from the module restart position
	// instead of stopping at the song end.
	Loop bool

	// Logger receives the module compilation warnings.
	// A nil logger discards them.
	Logger *log.Logger
}

var (
	errNotLoaded  = errors.New("module is not loaded")
	errBadChannel = errors.New("channel index out of range")
)

// NewStream allocates a stream that can load and play XM tracks.
// Use LoadModule method to finish the stream initialization.
func NewStream() *Stream {
	return &Stream{}
}

// LoadModule assigns a new XM module to this stream.
//
// Loading a module involves its compilation which is a slow process.
// The playback position is rewound, the mute states are cleared.
func (s *Stream) LoadModule(m *xmfile.Module, config LoadModuleConfig) error {
	applyConfigDefaults(m, &config)
	if config.LatencyTicks < 0 {
		return fmt.Errorf("negative latency: %d ticks", config.LatencyTicks)
	}

	compiled, err := compileModule(m, moduleConfig{
		bpm:   config.BPM,
		tempo: config.Tempo,
	}, config.Logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.module = compiled
	s.settings = streamSettings{
		loop:         config.Loop,
		latencyTicks: config.LatencyTicks,
	}

	n := compiled.numChannels
	s.channels = make([]streamChannel, n)
	s.muted = make([]bool, n)
	s.scopes = make([]scopeState, n)
	s.reportedPeriods = make([]int, n)
	s.reportedOffsets = make([]float64, n)
	// A few extra frames make the latency window survive a slow reader.
	s.frames = newFrameRing(config.LatencyTicks+128, n)
	s.loaded = true

	s.rewind()

	return nil
}

func applyConfigDefaults(m *xmfile.Module, config *LoadModuleConfig) {
	if config.BPM == 0 {
		config.BPM = uint(m.DefaultBPM)
		if config.BPM == 0 {
			config.BPM = 120
		}
	}
	if config.Tempo == 0 {
		config.Tempo = uint(m.DefaultTempo)
		if config.Tempo == 0 {
			config.Tempo = 6
		}
	}
}

// Rewind prepares the stream to play the module right from the start.
// Doing rewind is relatively cheap.
func (s *Stream) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewind()
}

func (s *Stream) rewind() {
	s.pattern = nil
	s.patternIndex = -1
	s.patternRowsRemain = 0
	s.patternRowIndex = -1
	s.rowTicksRemain = 0
	s.tickIndex = -1
	s.jumpKind = jumpNone

	for i := range s.channels {
		ch := &s.channels[i]
		ch.id = i
		ch.Reset()
	}
	for i := range s.scopes {
		s.scopes[i] = scopeState{}
		s.reportedPeriods[i] = 0
		s.reportedOffsets[i] = 0
	}

	s.globalVolume = 1.0
	s.ticksPerRow = s.module.ticksPerRow
	s.setBPM(s.module.bpm)

	s.frames.Reset()
	s.lastReported = -1
}

func (s *Stream) setBPM(bpm float64) {
	s.bpm = bpm
	s.tickDuration = calcTickDuration(bpm)
}

// GetInfo returns stream-related info.
// See StreamInfo for more details.
func (s *Stream) GetInfo() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamInfo{
		TickDuration:   s.tickDuration,
		MemoryUsage:    moduleSize(&s.module),
		NumChannels:    s.module.numChannels,
		NumInstruments: len(s.module.instruments),
		SongLength:     len(s.module.patternOrder),
		Name:           s.module.name,
	}
}

// NumChannels reports the loaded module channel count.
func (s *Stream) NumChannels() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, errNotLoaded
	}
	return s.module.numChannels, nil
}

// Instruments returns the instrument names in module order.
func (s *Stream) Instruments() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, errNotLoaded
	}
	names := make([]string, len(s.module.instruments))
	for i := range s.module.instruments {
		names[i] = s.module.instruments[i].name
	}
	return names, nil
}

// Mute sets the channel mute status: 1 mutes it, 0 un-mutes it.
// A negative status only queries the current state.
// The previous mute state (1 or 0) is returned.
//
// Muting doesn't affect the playback state, it's only remembered
// for the viewer (there is no sound to silence).
func (s *Stream) Mute(chn, status int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, errNotLoaded
	}
	if chn < 0 || chn >= len(s.muted) {
		return 0, fmt.Errorf("mute channel %d: %w", chn, errBadChannel)
	}
	prev := 0
	if s.muted[chn] {
		prev = 1
	}
	if status >= 0 {
		s.muted[chn] = status != 0
	}
	return prev, nil
}

// SetPaused stops (or resumes) the Run loop ticking.
// Advance is not affected by the pause.
func (s *Stream) SetPaused(paused bool) {
	s.paused.Store(paused)
}

func (s *Stream) Paused() bool {
	return s.paused.Load()
}

// TickDuration returns the current real time length of a single tick.
func (s *Stream) TickDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickDuration
}

// Run plays the loaded module in real time, one tick per tick duration.
//
// It returns when ctx is done or when the song is over.
// With Loop enabled, the song is never over.
func (s *Stream) Run(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	d := s.tickDuration
	s.mu.Unlock()
	if !loaded {
		return errNotLoaded
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if !s.Paused() {
			if !s.Advance(1) {
				return nil
			}
		}
		timer.Reset(s.TickDuration())
	}
}

// Advance plays n ticks right away.
// It reports false if the song is over before all n ticks were played.
func (s *Stream) Advance(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false
	}

	for i := 0; i < n; i++ {
		if !s.nextTick() {
			if !s.settings.loop {
				return false
			}
			s.jumpKind = jumpPosition
			s.jumpPattern = s.module.restartOrder
			s.jumpRow = 0
			s.rowTicksRemain = 0
			if !s.nextTick() {
				return false
			}
		}
		s.recordFrame()
	}
	return true
}

// FillSnapshot writes the latency-compensated playback state to dst.
//
// The reported frame is LatencyTicks behind the newest played tick.
// Triggers that happened between the previous reported frame and this one
// are merged into dst, so a trigger is never lost when the reader is
// slower than the playback; it's also never reported twice.
func (s *Stream) FillSnapshot(dst *xmscope.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return errNotLoaded
	}

	dst.Resize(s.module.numChannels)

	target := s.frames.newest - s.settings.latencyTicks
	if target < 0 {
		// Nothing is audible yet.
		dst.Order = 0
		dst.Pattern = 0
		dst.Row = 0
		dst.NumRows = 0
		dst.Frame = 0
		dst.Speed = s.ticksPerRow
		dst.BPM = int(s.bpm)
		return nil
	}

	target = max(target, s.frames.Oldest())
	f := s.frames.Get(target)

	dst.Order = f.order
	dst.Pattern = f.pattern
	dst.Row = f.row
	dst.NumRows = f.numRows
	dst.Frame = f.frame
	dst.Speed = f.speed
	dst.BPM = f.bpm
	copy(dst.Volumes, f.volumes)
	copy(dst.FinalVolumes, f.finalVolumes)
	copy(dst.Pans, f.pans)
	copy(dst.Periods, f.periods)
	copy(s.reportedPeriods, f.periods)

	from := max(s.lastReported+1, s.frames.Oldest())
	for seq := from; seq <= target; seq++ {
		trig := s.frames.Get(seq)
		for i := range trig.instruments {
			if trig.instruments[i] < 0 && trig.keys[i] < 0 {
				continue
			}
			// Later triggers override the earlier ones.
			dst.Instruments[i] = trig.instruments[i]
			dst.Keys[i] = trig.keys[i]
			s.reportedOffsets[i] = trig.offsets[i]
		}
	}
	if target > s.lastReported {
		s.lastReported = target
	}

	return nil
}

func (s *Stream) recordFrame() {
	f := s.frames.Push()

	f.order = s.patternIndex
	f.pattern = s.pattern.index
	f.row = s.patternRowIndex
	f.numRows = s.pattern.numRows
	f.frame = s.tickIndex
	f.speed = s.ticksPerRow
	f.bpm = int(s.bpm)

	for i := range s.channels {
		ch := &s.channels[i]
		f.instruments[i] = ch.trigInstrument
		f.keys[i] = ch.trigKey
		f.offsets[i] = ch.sampleOffset
		f.volumes[i] = int(ch.volume*64 + 0.5)

		if !ch.IsActive() {
			f.finalVolumes[i] = 0
			f.periods[i] = 0
		} else {
			volume := ch.volume * ch.fadeoutVolume * ch.volumeEnvelope.envelopeValue(1) * s.globalVolume
			f.finalVolumes[i] = clamp(int(volume*64+0.5), 0, 64)
			f.periods[i] = max(int(s.effectivePeriod(ch)+0.5), 1)
		}

		panEnv := ch.panningEnvelope.envelopeValue(0.5)
		panning := ch.panning + (panEnv-0.5)*(0.5-abs(ch.panning-0.5))*2
		f.pans[i] = clamp(int(panning*256+0.5)-128, -128, 127)
	}
}
