package xmplay

import (
	"fmt"
	"math"

	"github.com/quasilyte/xmscope/xmfile"
)

// scopeSamplesPerPixel is a number of sample frames per scope pixel
// for the note that plays at 8363 Hz (C-4 without finetune).
const scopeSamplesPerPixel = 16

type scopeState struct {
	// pos is a sample frame position for the next scope window.
	pos float64
}

// SampleData fills buf with the waveform window of the given channel.
//
// The sample is selected by the instrument keymap using ins and key.
// Every buf element advances the sample position according to the
// channel frequency, so higher notes look denser.
// Unless trigger is set, the window continues where the previous one ended.
//
// If ins or key can't be played (no instrument, no sample, empty sample),
// buf is filled with zeros and the error is nil.
func (s *Stream) SampleData(trigger bool, ins, key, chn int, buf []int8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return errNotLoaded
	}
	if chn < 0 || chn >= len(s.scopes) {
		return fmt.Errorf("sample data channel %d: %w", chn, errBadChannel)
	}

	scope := &s.scopes[chn]

	smp := s.scopeSample(ins, key)
	if smp == nil {
		scope.pos = 0
		clear(buf)
		return nil
	}

	period := float64(s.reportedPeriods[chn])
	if period == 0 {
		period = s.notePeriod(calcRealNote(uint8(key+1), smp))
	}
	step := s.frequency(period) / (8363.0 / scopeSamplesPerPixel)
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		scope.pos = 0
		clear(buf)
		return nil
	}

	if trigger {
		scope.pos = s.reportedOffsets[chn]
	}

	pos := scope.pos
	for i := range buf {
		buf[i] = smp.frameAt(pos)
		pos += step
	}
	scope.pos = smp.normalizePos(pos)

	return nil
}

func (s *Stream) scopeSample(ins, key int) *sample {
	if ins < 0 || ins >= len(s.module.instruments) {
		return nil
	}
	if key < 0 || key >= 96 {
		return nil
	}
	return s.module.instruments[ins].sampleFor(uint8(key + 1))
}

// frameAt returns a sample value at the given position,
// following the sample loop.
// A position past the end of a non-looped sample is silent.
func (smp *sample) frameAt(pos float64) int8 {
	i := smp.loopIndex(int(pos))
	if i < 0 || i >= len(smp.data) {
		return 0
	}
	return smp.data[i]
}

func (smp *sample) loopIndex(i int) int {
	if i < smp.loopEnd {
		return i
	}
	switch smp.loopType {
	case xmfile.SampleLoopForward:
		return smp.loopStart + (i-smp.loopStart)%smp.loopLength
	case xmfile.SampleLoopPingPong:
		k := (i - smp.loopStart) % (2 * smp.loopLength)
		if k >= smp.loopLength {
			k = 2*smp.loopLength - 1 - k
		}
		return smp.loopStart + k
	default:
		return i
	}
}

// normalizePos keeps the scope position in a small range,
// so the float precision doesn't degrade over a long playback.
func (smp *sample) normalizePos(pos float64) float64 {
	switch smp.loopType {
	case xmfile.SampleLoopForward:
		if pos >= float64(smp.loopEnd) {
			l := float64(smp.loopLength)
			return float64(smp.loopStart) + math.Mod(pos-float64(smp.loopStart), l)
		}
	case xmfile.SampleLoopPingPong:
		if pos >= float64(smp.loopEnd) {
			l := float64(2 * smp.loopLength)
			return float64(smp.loopStart) + math.Mod(pos-float64(smp.loopStart), l)
		}
	default:
		return math.Min(pos, float64(len(smp.data)))
	}
	return pos
}
