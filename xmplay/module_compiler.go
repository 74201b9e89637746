package xmplay

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/quasilyte/xmscope/internal/xmdb"
	"github.com/quasilyte/xmscope/xmfile"
)

type moduleCompiler struct {
	result module
	logger *log.Logger
}

func compileModule(m *xmfile.Module, config moduleConfig, logger *log.Logger) (module, error) {
	c := &moduleCompiler{logger: logger}
	c.result = module{
		name:        m.Name,
		numChannels: m.NumChannels,
		linear:      m.LinearFrequencies(),
		bpm:         float64(config.bpm),
		ticksPerRow: int(config.tempo),
	}
	err := c.compile(m)
	return c.result, err
}

func (c *moduleCompiler) warnf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf("xmplay: "+format, args...)
}

func (c *moduleCompiler) compile(m *xmfile.Module) error {
	if m.NumChannels <= 0 {
		return errors.New("the module has no channels")
	}
	if len(m.PatternOrder) == 0 {
		return errors.New("the module has an empty pattern order")
	}
	if m.RestartPosition < len(m.PatternOrder) {
		c.result.restartOrder = m.RestartPosition
	}

	if err := c.compileInstruments(m); err != nil {
		return err
	}

	if err := c.compileNotes(m); err != nil {
		return err
	}

	if err := c.compilePatterns(m); err != nil {
		return err
	}

	return nil
}

func (c *moduleCompiler) compileInstruments(m *xmfile.Module) error {
	c.result.instruments = make([]instrument, len(m.Instruments))
	for i := range m.Instruments {
		rawInst := &m.Instruments[i]
		dstInst := &c.result.instruments[i]
		dstInst.id = i
		dstInst.name = rawInst.Name
		copy(dstInst.keymap[:], rawInst.KeymapAssignments)

		dstInst.samples = make([]sample, len(rawInst.Samples))
		for j := range rawInst.Samples {
			if err := c.compileSample(&dstInst.samples[j], &rawInst.Samples[j]); err != nil {
				return fmt.Errorf("instrument[%d].sample[%d]: %w", i, j, err)
			}
		}

		dstInst.volumeEnvelope = compileEnvelope(rawInst.EnvelopeVolume, rawInst.VolumeFlags,
			rawInst.VolumeSustainPoint, rawInst.VolumeLoopStartPoint, rawInst.VolumeLoopEndPoint)
		dstInst.panningEnvelope = compileEnvelope(rawInst.EnvelopePanning, rawInst.PanningFlags,
			rawInst.PanningSustainPoint, rawInst.PanningLoopStartPoint, rawInst.PanningLoopEndPoint)

		// The fadeout volume starts at 0x8000 and the fadeout value is
		// subtracted from it every tick after the key off.
		dstInst.volumeFadeoutStep = float64(rawInst.VolumeFadeout) / 0x8000
	}

	return nil
}

func (c *moduleCompiler) compileSample(dst *sample, src *xmfile.InstrumentSample) error {
	dst.finetune = int8(src.Finetune)
	dst.relativeNote = int8(src.RelativeNote)
	dst.volume = float64(min(src.Volume, 0x40)) / 0x40
	dst.panning = float64(src.Panning) / 0xff

	if src.Format != xmfile.SampleFormatDeltaPacked {
		// The scope will show a flat line for this sample.
		c.warnf("ADPCM samples are not supported")
		return nil
	}

	// The parser-decoded frames belong to the parser memory
	// that is reused on the next parse, so they're copied.
	if src.Frames != nil {
		dst.data = slices.Clone(src.Frames)
	} else {
		dst.data = src.DecodeFrames(nil)
	}
	bytesPerFrame := src.BytesPerFrame()

	dst.loopType = src.LoopType()
	switch dst.loopType {
	case xmfile.SampleLoopNone, xmfile.SampleLoopForward, xmfile.SampleLoopPingPong:
		// OK
	default:
		return errors.New("unknown sample loop type")
	}

	numFrames := len(dst.data)
	loopStart := src.LoopStart / bytesPerFrame
	loopEnd := loopStart + src.LoopLength/bytesPerFrame
	if loopEnd > numFrames {
		loopEnd = numFrames
	}
	if dst.loopType == xmfile.SampleLoopNone || loopStart >= loopEnd {
		dst.loopType = xmfile.SampleLoopNone
		loopStart = 0
		loopEnd = 0
	}
	dst.loopStart = loopStart
	dst.loopEnd = loopEnd
	dst.loopLength = loopEnd - loopStart

	return nil
}

func compileEnvelope(points []xmfile.EnvelopePoint, flags xmfile.EnvelopeFlags, sustain, loopStart, loopEnd uint8) envelope {
	e := envelope{flags: flags}
	if !flags.IsOn() || len(points) == 0 {
		e.flags = 0
		return e
	}

	e.points = make([]envelopePoint, len(points))
	for i, p := range points {
		e.points[i] = envelopePoint{
			frame: int(p.X),
			value: float64(min(p.Y, 64)) / 64,
		}
	}

	if flags.SustainEnabled() {
		if int(sustain) < len(points) {
			e.sustainFrame = e.points[sustain].frame
		} else {
			e.flags &^= 1 << 1
		}
	}
	if flags.LoopEnabled() {
		if int(loopEnd) < len(points) && loopStart <= loopEnd {
			e.loopEndFrame = e.points[loopEnd].frame
			e.loopLength = e.loopEndFrame - e.points[loopStart].frame
		}
		if e.loopLength <= 0 {
			e.flags &^= 1 << 2
		}
	}

	return e
}

func (c *moduleCompiler) compileNotes(m *xmfile.Module) error {
	notes := m.Notes
	if len(notes) == 0 {
		notes = []xmfile.PatternNote{{}}
	}

	c.result.noteTab = make([]patternNote, len(notes))
	c.result.effectTab = make([]noteEffect, 0, len(notes))

	var effects []xmdb.Effect
	for i, rawNote := range notes {
		n := &c.result.noteTab[i]
		n.raw = rawNote.Note

		if rawNote.Instrument != 0 {
			n.flags |= noteHasInstrument
			if int(rawNote.Instrument) <= len(c.result.instruments) {
				n.inst = &c.result.instruments[rawNote.Instrument-1]
			} else {
				n.flags |= noteBadInstrument
			}
		}

		effects = effects[:0]
		if e := xmdb.EffectFromVolumeByte(rawNote.Volume); e.Op != xmdb.EffectNone {
			effects = append(effects, e)
		}
		if e := xmdb.ConvertEffect(rawNote); e.Op != xmdb.EffectNone {
			effects = append(effects, e)
		}
		if rawNote.IsKeyOff() {
			n.flags |= noteKeyOff
			effects = append(effects, xmdb.Effect{Op: xmdb.EffectEarlyKeyOff})
		}
		if len(effects) == 0 {
			continue
		}

		n.effect = makeEffectKey(uint(len(c.result.effectTab)), uint(len(effects)))
		for _, e := range effects {
			switch e.Op {
			case xmdb.EffectNotePortamento, xmdb.EffectNotePortamentoWithVolumeSlide:
				n.flags |= noteHasNotePortamento
			case xmdb.EffectArpeggio:
				n.flags |= noteHasArpeggio
			case xmdb.EffectVibrato, xmdb.EffectVibratoWithVolumeSlide:
				n.flags |= noteHasVibrato
			}
			c.result.effectTab = append(c.result.effectTab, compileEffect(e))
		}
	}

	return nil
}

func compileEffect(e xmdb.Effect) noteEffect {
	x := e.Arg >> 4
	y := e.Arg & 0x0F

	result := noteEffect{
		op:       e.Op,
		rawValue: e.Arg,
	}

	switch e.Op {
	case xmdb.EffectArpeggio:
		result.arp = [3]uint8{0, x, y}

	case xmdb.EffectSetVolume, xmdb.EffectSetGlobalVolume:
		result.floatValue = float64(min(e.Arg, 0x40)) / 0x40

	case xmdb.EffectVolumeSlide, xmdb.EffectGlobalVolumeSlide,
		xmdb.EffectVibratoWithVolumeSlide, xmdb.EffectNotePortamentoWithVolumeSlide:
		// The up value has a priority.
		if x != 0 {
			result.floatValue = float64(x) / 0x40
		} else {
			result.floatValue = -float64(y) / 0x40
		}

	case xmdb.EffectVolumeSlideDown, xmdb.EffectVolumeSlideUp,
		xmdb.EffectFineVolumeSlideDown, xmdb.EffectFineVolumeSlideUp:
		result.floatValue = float64(e.Arg) / 0x40

	case xmdb.EffectSetPanning:
		result.floatValue = float64(e.Arg) / 0xff

	case xmdb.EffectPanningSlide:
		if x != 0 {
			result.floatValue = float64(x) / 0xff
		} else {
			result.floatValue = -float64(y) / 0xff
		}

	case xmdb.EffectPanningSlideLeft, xmdb.EffectPanningSlideRight:
		result.floatValue = float64(e.Arg) / 0xff

	case xmdb.EffectPortamentoUp, xmdb.EffectPortamentoDown,
		xmdb.EffectFinePortamentoUp, xmdb.EffectFinePortamentoDown,
		xmdb.EffectNotePortamento:
		result.floatValue = float64(e.Arg) * 4

	case xmdb.EffectVibrato:
		result.arp[0] = x
		result.floatValue = float64(y)

	case xmdb.EffectSampleOffset:
		result.floatValue = float64(e.Arg) * 256

	case xmdb.EffectPatternBreak:
		// The row number is encoded as a decimal value.
		result.arp[0] = x*10 + y

	case xmdb.EffectSetBPM:
		result.floatValue = float64(e.Arg)

	case xmdb.EffectNoteCut:
		result.arp[0] = e.Arg
	}

	return result
}

func (c *moduleCompiler) compilePatterns(m *xmfile.Module) error {
	c.result.patterns = make([]pattern, len(m.Patterns))
	for i := range m.Patterns {
		rawPat := &m.Patterns[i]
		pat := &c.result.patterns[i]
		pat.index = i
		pat.numChannels = m.NumChannels
		pat.numRows = len(rawPat.Rows)
		pat.notes = make([]uint16, 0, len(rawPat.Rows)*m.NumChannels)
		for rowIndex, row := range rawPat.Rows {
			if len(row.Notes) != m.NumChannels {
				return fmt.Errorf("pattern[%d] row %d: expected %d notes, found %d",
					i, rowIndex, m.NumChannels, len(row.Notes))
			}
			for _, id := range row.Notes {
				if int(id) >= len(c.result.noteTab) {
					return fmt.Errorf("pattern[%d] row %d: invalid note ID %d", i, rowIndex, id)
				}
			}
			pat.notes = append(pat.notes, row.Notes...)
		}
		if pat.numRows == 0 {
			c.warnf("pattern %d has no rows", i)
		}
	}

	// Bind pattern order to the actual patterns.
	// A reference to a non-existing pattern plays an empty pattern.
	var emptyPattern *pattern
	c.result.patternOrder = make([]*pattern, len(m.PatternOrder))
	for i, patternIndex := range m.PatternOrder {
		if int(patternIndex) < len(c.result.patterns) && c.result.patterns[patternIndex].numRows != 0 {
			c.result.patternOrder[i] = &c.result.patterns[patternIndex]
			continue
		}
		if emptyPattern == nil {
			emptyPattern = &pattern{
				index:       int(patternIndex),
				numChannels: m.NumChannels,
				numRows:     64,
				notes:       make([]uint16, 64*m.NumChannels),
			}
		}
		c.result.patternOrder[i] = emptyPattern
	}

	return nil
}
