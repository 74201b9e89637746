package xmplay

import (
	"math"

	"github.com/quasilyte/xmscope/internal/xmdb"
)

// XM_MINPERIOD is defined as 50 in MilkyTracker.
const minPeriod = 50

func (s *Stream) nextTick() bool {
	for i := range s.channels {
		ch := &s.channels[i]
		ch.trigInstrument = -1
		ch.trigKey = -1
	}

	if s.rowTicksRemain == 0 {
		if !s.nextRow() {
			return false
		}
	}

	s.rowTicksRemain--
	s.tickIndex++

	for j := range s.channels {
		ch := &s.channels[j]
		note := ch.note

		s.tickEnvelopes(ch)

		if !ch.effect.IsEmpty() {
			s.applyTickEffect(ch)
		}

		if note == nil {
			continue
		}
		if ch.arpeggioRunning && !note.flags.Contains(noteHasArpeggio) {
			ch.arpeggioRunning = false
			ch.arpeggioNoteOffset = 0
		}
		if ch.vibratoRunning && !note.flags.Contains(noteHasVibrato) {
			ch.vibratoRunning = false
			ch.vibratoPeriodOffset = 0
		}
	}

	return true
}

func (s *Stream) tickEnvelopes(ch *streamChannel) {
	if ch.inst == nil {
		return
	}

	if ch.volumeEnvelope.IsOn() {
		if !ch.keyOn {
			ch.fadeoutVolume = clampMin(ch.fadeoutVolume-ch.inst.volumeFadeoutStep, 0)
		}
		envelopeTick(ch, &ch.volumeEnvelope)
	}

	if ch.panningEnvelope.IsOn() {
		envelopeTick(ch, &ch.panningEnvelope)
	}
}

func envelopeTick(ch *streamChannel, e *envelopeRunner) {
	if len(e.points) < 2 {
		e.value = e.points[0].value
		return
	}

	if e.flags.LoopEnabled() {
		if e.frame >= e.loopEndFrame {
			e.frame -= e.loopLength
		}
	}

	i := 0
	for i < len(e.points)-2 {
		if e.points[i].frame <= e.frame && e.points[i+1].frame >= e.frame {
			break
		}
		i++
	}

	e.value = envelopeLerp(e.points[i], e.points[i+1], e.frame)

	if !ch.keyOn || !e.flags.SustainEnabled() || e.frame != e.sustainFrame {
		e.frame++
	}
}

func (s *Stream) nextRow() bool {
	if s.jumpKind == jumpNone {
		// Normal execution.
		if s.patternRowsRemain == 0 {
			if !s.nextPattern() {
				return false
			}
		}
		s.patternRowIndex++
		s.patternRowsRemain--
	} else {
		// Execute a pattern jump.
		s.jumpKind = jumpNone
		if s.jumpPattern >= len(s.module.patternOrder) {
			return false
		}
		s.selectPattern(s.jumpPattern)
		s.patternRowIndex = s.jumpRow
		if s.patternRowIndex >= s.pattern.numRows {
			s.patternRowIndex = 0
		}
		s.patternRowsRemain = s.pattern.numRows - s.patternRowIndex - 1
	}

	noteOffset := s.pattern.numChannels * s.patternRowIndex
	notes := s.pattern.notes[noteOffset : noteOffset+s.pattern.numChannels]
	m := &s.module

	for i := range s.channels {
		s.advanceChannelRow(&s.channels[i], &m.noteTab[notes[i]])
	}

	s.rowTicksRemain = s.ticksPerRow
	s.tickIndex = -1
	return true
}

func (s *Stream) advanceChannelRow(ch *streamChannel, n *patternNote) {
	s.assignNote(ch, n)

	if !ch.effect.IsEmpty() {
		s.applyRowEffect(ch, n)
	}
}

func (s *Stream) assignNote(ch *streamChannel, n *patternNote) {
	ch.note = n
	ch.effect = n.effect

	if n.flags.Contains(noteBadInstrument) {
		// A reference to a missing instrument stops the channel.
		ch.inst = nil
		ch.sample = nil
		ch.period = 0
		return
	}

	switch n.Kind() {
	case noteEmpty:
		return

	case noteGhostInstrument:
		if ch.inst != n.inst || ch.sample == nil {
			return
		}
		ch.volume = ch.sample.volume
		ch.panning = ch.sample.panning
		ch.resetEnvelopes()
		return
	}

	inst := ch.inst
	if n.inst != nil {
		inst = n.inst
	}
	if inst == nil {
		return
	}

	if n.flags.Contains(noteHasNotePortamento) && ch.IsActive() {
		// Tone portamento slides to the new note instead of retriggering.
		// The target period is assigned by the effect itself.
		if n.inst != nil {
			ch.volume = ch.sample.volume
			ch.panning = ch.sample.panning
		}
		return
	}

	ch.inst = inst
	ch.rawNote = n.raw
	ch.sample = inst.sampleFor(n.raw)
	ch.trigInstrument = inst.id
	ch.trigKey = int(n.raw) - 1
	ch.sampleOffset = 0
	ch.vibratoStep = 0
	ch.resetEnvelopes()

	if ch.sample == nil {
		ch.period = 0
		return
	}
	ch.period = s.notePeriod(calcRealNote(n.raw, ch.sample))
	if n.inst != nil {
		ch.volume = ch.sample.volume
		ch.panning = ch.sample.panning
	}
}

func (s *Stream) applyRowEffect(ch *streamChannel, n *patternNote) {
	numEffects := ch.effect.Len()
	offset := ch.effect.Index()
	for _, e := range s.module.effectTab[offset : offset+numEffects] {
		switch e.op {
		case xmdb.EffectSetVolume:
			ch.volume = e.floatValue

		case xmdb.EffectEarlyKeyOff:
			s.keyOff(ch)

		case xmdb.EffectVolumeSlide, xmdb.EffectVibratoWithVolumeSlide:
			if e.floatValue != 0 {
				ch.volumeSlideValue = e.floatValue
			}

		case xmdb.EffectGlobalVolumeSlide:
			if e.floatValue != 0 {
				ch.globalVolumeSlideValue = e.floatValue
			}

		case xmdb.EffectPanningSlide:
			if e.floatValue != 0 {
				ch.panningSlideValue = e.floatValue
			}

		case xmdb.EffectPortamentoUp:
			if e.floatValue != 0 {
				ch.portamentoUpValue = e.floatValue
			}

		case xmdb.EffectPortamentoDown:
			if e.floatValue != 0 {
				ch.portamentoDownValue = e.floatValue
			}

		case xmdb.EffectFinePortamentoUp:
			if e.floatValue != 0 {
				ch.finePortamentoUpValue = e.floatValue
			}
			if ch.period != 0 {
				ch.period = clampMin(ch.period-ch.finePortamentoUpValue, minPeriod)
			}

		case xmdb.EffectFinePortamentoDown:
			if e.floatValue != 0 {
				ch.finePortamentoDownValue = e.floatValue
			}
			if ch.period != 0 {
				ch.period += ch.finePortamentoDownValue
			}

		case xmdb.EffectNotePortamento, xmdb.EffectNotePortamentoWithVolumeSlide:
			if e.op == xmdb.EffectNotePortamento && e.floatValue != 0 {
				ch.notePortamentoValue = e.floatValue
			}
			if e.op == xmdb.EffectNotePortamentoWithVolumeSlide && e.floatValue != 0 {
				ch.volumeSlideValue = e.floatValue
			}
			if n.raw == 0 || n.raw >= 97 || ch.sample == nil {
				break
			}
			ch.notePortamentoTargetPeriod = s.notePeriod(calcRealNote(n.raw, ch.sample))

		case xmdb.EffectVibrato:
			if e.arp[0] != 0 {
				ch.vibratoSpeed = e.arp[0]
			}
			if e.floatValue != 0 {
				ch.vibratoDepth = e.floatValue
			}

		case xmdb.EffectPatternBreak:
			if s.jumpKind != jumpPosition {
				s.jumpPattern = s.patternIndex + 1
				s.jumpKind = jumpPatternBreak
			}
			s.jumpRow = int(e.arp[0])

		case xmdb.EffectPositionJump:
			if s.jumpKind == jumpNone {
				s.jumpRow = 0
			}
			s.jumpKind = jumpPosition
			s.jumpPattern = int(e.rawValue)

		case xmdb.EffectSetBPM:
			s.setBPM(e.floatValue)

		case xmdb.EffectSetTempo:
			s.ticksPerRow = int(e.rawValue)

		case xmdb.EffectFineVolumeSlideDown:
			if e.floatValue != 0 {
				ch.fineVolumeSlideDownValue = e.floatValue
			}
			ch.volume = clampMin(ch.volume-ch.fineVolumeSlideDownValue, 0)
		case xmdb.EffectFineVolumeSlideUp:
			if e.floatValue != 0 {
				ch.fineVolumeSlideUpValue = e.floatValue
			}
			ch.volume = clampMax(ch.volume+ch.fineVolumeSlideUpValue, 1)

		case xmdb.EffectSetGlobalVolume:
			s.globalVolume = e.floatValue

		case xmdb.EffectSetPanning:
			ch.panning = e.floatValue

		case xmdb.EffectSampleOffset:
			// Only a freshly triggered note can start from the offset.
			if ch.trigKey < 0 || ch.sample == nil {
				break
			}
			ch.sampleOffset = e.floatValue
		}
	}
}

func (s *Stream) keyOff(ch *streamChannel) {
	ch.keyOn = false
	if ch.inst == nil || !ch.volumeEnvelope.IsOn() {
		ch.volume = 0
	}
}

func (s *Stream) vibrato(ch *streamChannel) {
	ch.vibratoStep += ch.vibratoSpeed
	ch.vibratoPeriodOffset = waveform(ch.vibratoStep) * ch.vibratoDepth * 4
}

func (s *Stream) applyTickEffect(ch *streamChannel) {
	numEffects := ch.effect.Len()
	offset := ch.effect.Index()

	for _, e := range s.module.effectTab[offset : offset+numEffects] {
		switch e.op {
		case xmdb.EffectPortamentoUp:
			if s.tickIndex == 0 || ch.period == 0 {
				break
			}
			ch.period = clampMin(ch.period-ch.portamentoUpValue, minPeriod)

		case xmdb.EffectPortamentoDown:
			if s.tickIndex == 0 || ch.period == 0 {
				break
			}
			ch.period += ch.portamentoDownValue

		case xmdb.EffectNotePortamento, xmdb.EffectNotePortamentoWithVolumeSlide:
			if s.tickIndex == 0 {
				break
			}
			if e.op == xmdb.EffectNotePortamentoWithVolumeSlide {
				ch.volume = clamp(ch.volume+ch.volumeSlideValue, 0, 1)
			}
			if ch.notePortamentoTargetPeriod == 0 || ch.period == 0 {
				break
			}
			if ch.period == ch.notePortamentoTargetPeriod {
				break
			}
			ch.period = slideTowards(ch.period, ch.notePortamentoTargetPeriod, ch.notePortamentoValue)

		case xmdb.EffectVibrato:
			if s.tickIndex == 0 {
				break
			}
			ch.vibratoRunning = true
			s.vibrato(ch)

		case xmdb.EffectKeyOff:
			if e.rawValue != uint8(s.tickIndex) {
				break
			}
			s.keyOff(ch)

		case xmdb.EffectSetEnvelopePos:
			if s.tickIndex != 0 {
				break
			}
			ch.volumeEnvelope.frame = int(e.rawValue)
			ch.panningEnvelope.frame = int(e.rawValue)

		case xmdb.EffectNoteCut:
			if e.arp[0] != uint8(s.tickIndex) {
				break
			}
			ch.volume = 0

		case xmdb.EffectArpeggio:
			i := s.tickIndex % 3
			ch.arpeggioNoteOffset = float64(e.arp[i])
			ch.arpeggioRunning = i != 0

		case xmdb.EffectVolumeSlide:
			if s.tickIndex == 0 {
				break
			}
			ch.volume = clamp(ch.volume+ch.volumeSlideValue, 0, 1)

		case xmdb.EffectGlobalVolumeSlide:
			if s.tickIndex == 0 {
				break
			}
			s.globalVolume = clamp(s.globalVolume+ch.globalVolumeSlideValue, 0, 1)

		case xmdb.EffectPanningSlide:
			if s.tickIndex == 0 {
				break
			}
			ch.panning = clamp(ch.panning+ch.panningSlideValue, 0, 1)

		case xmdb.EffectVibratoWithVolumeSlide:
			if s.tickIndex == 0 {
				break
			}
			ch.vibratoRunning = true
			s.vibrato(ch)
			ch.volume = clamp(ch.volume+ch.volumeSlideValue, 0, 1)

		case xmdb.EffectVolumeSlideDown:
			if s.tickIndex == 0 {
				break
			}
			ch.volume = clampMin(ch.volume-e.floatValue, 0)
		case xmdb.EffectVolumeSlideUp:
			if s.tickIndex == 0 {
				break
			}
			ch.volume = clampMax(ch.volume+e.floatValue, 1)

		case xmdb.EffectPanningSlideLeft:
			if s.tickIndex == 0 {
				break
			}
			ch.panning = clampMin(ch.panning-e.floatValue, 0)
		case xmdb.EffectPanningSlideRight:
			if s.tickIndex == 0 {
				break
			}
			ch.panning = clampMax(ch.panning+e.floatValue, 1)
		}
	}
}

func (s *Stream) nextPattern() bool {
	i := s.patternIndex + 1
	if i >= len(s.module.patternOrder) {
		return false
	}
	s.selectPattern(i)
	return true
}

func (s *Stream) selectPattern(i int) {
	s.patternIndex = i
	s.pattern = s.module.patternOrder[s.patternIndex]

	s.patternRowIndex = -1
	s.patternRowsRemain = s.pattern.numRows
}

func (s *Stream) notePeriod(realNote float64) float64 {
	if s.module.linear {
		return linearPeriod(realNote)
	}
	return amigaPeriod(realNote)
}

func (s *Stream) frequency(period float64) float64 {
	if s.module.linear {
		return linearFrequency(period)
	}
	return amigaFrequency(period)
}

// effectivePeriod is a channel period with arpeggio and vibrato applied.
func (s *Stream) effectivePeriod(ch *streamChannel) float64 {
	period := ch.period
	if ch.arpeggioNoteOffset != 0 {
		if s.module.linear {
			period -= 64 * ch.arpeggioNoteOffset
		} else {
			period /= math.Pow(2, ch.arpeggioNoteOffset/12)
		}
	}
	period += ch.vibratoPeriodOffset
	return clampMin(period, minPeriod)
}
