package xmplay

import (
	"github.com/quasilyte/xmscope/internal/xmdb"
	"github.com/quasilyte/xmscope/xmfile"
)

type module struct {
	name string

	instruments []instrument

	patterns     []pattern
	patternOrder []*pattern

	effectTab []noteEffect
	noteTab   []patternNote

	numChannels  int
	restartOrder int

	// linear is false for the Amiga frequency table modules.
	linear bool

	// These values store the defaults for the stream.
	bpm         float64
	ticksPerRow int
}

type moduleConfig struct {
	bpm   uint
	tempo uint
}

type pattern struct {
	// index is a module pattern index (not an order index).
	index int

	numChannels int
	numRows     int

	// notes are noteTab indexes, numRows*numChannels of them.
	notes []uint16
}

type patternNote struct {
	inst *instrument

	// raw is a 1-based note value.
	raw   uint8
	flags patternNoteFlags

	effect effectKey // Can be empty, see effectKey.IsEmpty()
}

func (n *patternNote) Kind() patternNoteKind {
	hasNote := n.raw != 0 && n.raw < 97
	hasInstrument := n.flags.Contains(noteHasInstrument)
	switch {
	case hasNote && hasInstrument:
		return noteNormal
	case hasNote:
		return noteGhost
	case hasInstrument:
		return noteGhostInstrument
	default:
		return noteEmpty
	}
}

type patternNoteKind int

const (
	// noteEmpty has no note and no instrument (effects only).
	noteEmpty patternNoteKind = iota

	// noteGhostInstrument has an instrument, but no note.
	// It resets the volume and panning without a retrigger.
	noteGhostInstrument

	// noteGhost has a note, but no instrument.
	// The current channel instrument is retriggered.
	noteGhost

	noteNormal
)

type patternNoteFlags uint8

const (
	noteHasNotePortamento patternNoteFlags = 1 << iota
	noteHasArpeggio
	noteHasVibrato
	noteHasInstrument
	noteBadInstrument
	noteKeyOff
)

func (f patternNoteFlags) Contains(v patternNoteFlags) bool {
	return f&v != 0
}

type noteEffect struct {
	op         xmdb.EffectOp
	rawValue   uint8
	arp        [3]uint8
	floatValue float64
}

type instrument struct {
	id   int
	name string

	samples []sample

	// keymap maps 0-based notes to the samples indexes.
	keymap [96]uint8

	volumeEnvelope  envelope
	panningEnvelope envelope

	volumeFadeoutStep float64
}

// sampleFor returns a sample mapped to the 1-based note.
func (inst *instrument) sampleFor(note uint8) *sample {
	if note == 0 || note > 96 {
		return nil
	}
	i := int(inst.keymap[note-1])
	if i >= len(inst.samples) {
		return nil
	}
	s := &inst.samples[i]
	if len(s.data) == 0 {
		return nil
	}
	return s
}

type sample struct {
	// data is reduced to 8 bits even for the 16-bit samples:
	// this is what the scopes need.
	data []int8

	finetune     int8
	relativeNote int8

	volume  float64
	panning float64

	loopType   xmfile.SampleLoopType
	loopStart  int
	loopEnd    int
	loopLength int
}

type envelope struct {
	flags xmfile.EnvelopeFlags

	sustainFrame int
	loopEndFrame int
	loopLength   int

	points []envelopePoint
}

func (e *envelope) IsOn() bool {
	return e.flags.IsOn() && len(e.points) != 0
}

type envelopePoint struct {
	frame int
	value float64
}

type effectKey uint32

func makeEffectKey(index, length uint) effectKey {
	return effectKey((uint32(index) << 2) | (uint32(length) & 0b11))
}

func (k effectKey) IsEmpty() bool { return k == 0 }

func (k effectKey) Len() uint { return uint(k & 0b11) }

func (k effectKey) Index() uint { return uint(k >> 2) }
