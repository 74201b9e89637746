package xmdb

import (
	"github.com/quasilyte/xmscope/xmfile"
)

type Effect struct {
	Op  EffectOp
	Arg uint8
}

type EffectOp int

const (
	EffectNone EffectOp = iota

	// Encoding: effect=0x00
	// Arg: semitone offsets
	EffectArpeggio

	// Encoding: effect=0x01
	// Arg: slide speed
	EffectPortamentoUp

	// Encoding: effect=0x02
	// Arg: slide speed
	EffectPortamentoDown

	// Encoding: effect=0x03 [or] volume byte 0xF0-0xFF
	// Arg: slide speed
	EffectNotePortamento

	// Encoding: effect=0x04 [or] volume byte 0xB0-0xBF
	// Arg: speed (x) and depth (y)
	EffectVibrato

	// Encoding: effect=0x05
	// Arg: volume slide up/down speed
	EffectNotePortamentoWithVolumeSlide

	// Encoding: effect=0x06
	// Arg: volume slide up/down speed
	EffectVibratoWithVolumeSlide

	// Encoding: effect=0x08 [or] volume byte 0xC0-0xCF
	// Arg: panning position
	EffectSetPanning

	// Encoding: effect=0x09
	// Arg: sample offset/256
	EffectSampleOffset

	// Encoding: effect=0x0A
	// Arg: slide up/down speed
	EffectVolumeSlide

	// Encoding: effect=0x0B
	// Arg: pattern order index
	EffectPositionJump

	// Encoding: effect=0x0C [or] volume byte 0x10-0x50
	// Arg: volume level
	EffectSetVolume

	// Encoding: effect=0x0D
	// Arg: row number (BCD)
	EffectPatternBreak

	// Encoding: effect=0x0E, x=1
	// Arg: slide value
	EffectFinePortamentoUp

	// Encoding: effect=0x0E, x=2
	// Arg: slide value
	EffectFinePortamentoDown

	// Encoding: effect=0x0E, x=0xA [or] volume byte 0x90-0x9F
	// Arg: volume delta
	EffectFineVolumeSlideUp

	// Encoding: effect=0x0E, x=0xB [or] volume byte 0x80-0x8F
	// Arg: volume delta
	EffectFineVolumeSlideDown

	// Encoding: effect=0x0E, x=0xC
	// Arg: tick number
	EffectNoteCut

	// Encoding: effect=0x0F, arg<0x20
	// Arg: ticks per row
	EffectSetTempo

	// Encoding: effect=0x0F, arg>=0x20
	// Arg: beats per minute
	EffectSetBPM

	// Encoding: effect=0x10
	// Arg: global volume level
	EffectSetGlobalVolume

	// Encoding: effect=0x11
	// Arg: slide up/down speed
	EffectGlobalVolumeSlide

	// Encoding: effect=0x14
	// Arg: tick number
	EffectKeyOff

	// Encoding: key-off note (97)
	// Arg: none
	EffectEarlyKeyOff

	// Encoding: effect=0x15
	// Arg: envelope position
	EffectSetEnvelopePos

	// Encoding: effect=0x19
	// Arg: slide right (x) and left (y) speed
	EffectPanningSlide

	// Encoding: volume byte 0x60-0x6F
	// Arg: volume delta
	EffectVolumeSlideDown

	// Encoding: volume byte 0x70-0x7F
	// Arg: volume delta
	EffectVolumeSlideUp

	// Encoding: volume byte 0xD0-0xDF
	// Arg: panning delta
	EffectPanningSlideLeft

	// Encoding: volume byte 0xE0-0xEF
	// Arg: panning delta
	EffectPanningSlideRight
)

var effectNames = [...]string{
	EffectNone:                          "none",
	EffectArpeggio:                      "arpeggio",
	EffectPortamentoUp:                  "portamento up",
	EffectPortamentoDown:                "portamento down",
	EffectNotePortamento:                "note portamento",
	EffectVibrato:                       "vibrato",
	EffectNotePortamentoWithVolumeSlide: "note portamento + volume slide",
	EffectVibratoWithVolumeSlide:        "vibrato + volume slide",
	EffectSetPanning:                    "set panning",
	EffectSampleOffset:                  "sample offset",
	EffectVolumeSlide:                   "volume slide",
	EffectPositionJump:                  "position jump",
	EffectSetVolume:                     "set volume",
	EffectPatternBreak:                  "pattern break",
	EffectFinePortamentoUp:              "fine portamento up",
	EffectFinePortamentoDown:            "fine portamento down",
	EffectFineVolumeSlideUp:             "fine volume slide up",
	EffectFineVolumeSlideDown:           "fine volume slide down",
	EffectNoteCut:                       "note cut",
	EffectSetTempo:                      "set tempo",
	EffectSetBPM:                        "set bpm",
	EffectSetGlobalVolume:               "set global volume",
	EffectGlobalVolumeSlide:             "global volume slide",
	EffectKeyOff:                        "key off",
	EffectEarlyKeyOff:                   "key off note",
	EffectSetEnvelopePos:                "set envelope position",
	EffectPanningSlide:                  "panning slide",
	EffectVolumeSlideDown:               "volume slide down",
	EffectVolumeSlideUp:                 "volume slide up",
	EffectPanningSlideLeft:              "panning slide left",
	EffectPanningSlideRight:             "panning slide right",
}

func (op EffectOp) String() string {
	if op >= 0 && int(op) < len(effectNames) {
		return effectNames[op]
	}
	return "unknown"
}

// ConvertEffect decodes the effect column of a pattern note.
//
// Unsupported effects are decoded as EffectNone.
func ConvertEffect(n xmfile.PatternNote) Effect {
	e := Effect{Arg: n.EffectParameter}

	switch n.EffectType {
	case 0x00:
		if n.EffectParameter != 0 {
			e.Op = EffectArpeggio
		}

	case 0x01:
		e.Op = EffectPortamentoUp

	case 0x02:
		e.Op = EffectPortamentoDown

	case 0x03:
		e.Op = EffectNotePortamento

	case 0x04:
		e.Op = EffectVibrato

	case 0x05:
		e.Op = EffectNotePortamentoWithVolumeSlide

	case 0x06:
		e.Op = EffectVibratoWithVolumeSlide

	case 0x08:
		e.Op = EffectSetPanning

	case 0x09:
		e.Op = EffectSampleOffset

	case 0x0A:
		e.Op = EffectVolumeSlide

	case 0x0B:
		e.Op = EffectPositionJump

	case 0x0C:
		e.Op = EffectSetVolume

	case 0x0D:
		e.Op = EffectPatternBreak

	case 0x0E:
		e.Arg = n.EffectParameter & 0x0F
		switch n.EffectParameter >> 4 {
		case 0x1:
			e.Op = EffectFinePortamentoUp
		case 0x2:
			e.Op = EffectFinePortamentoDown
		case 0xA:
			e.Op = EffectFineVolumeSlideUp
		case 0xB:
			e.Op = EffectFineVolumeSlideDown
		case 0xC:
			e.Op = EffectNoteCut
		}

	case 0x0F:
		switch {
		case n.EffectParameter == 0:
			// Do nothing.
		case n.EffectParameter < 0x20:
			e.Op = EffectSetTempo
		default:
			e.Op = EffectSetBPM
		}

	case 0x10:
		e.Op = EffectSetGlobalVolume

	case 0x11:
		e.Op = EffectGlobalVolumeSlide

	case 0x14:
		e.Op = EffectKeyOff

	case 0x15:
		e.Op = EffectSetEnvelopePos

	case 0x19:
		e.Op = EffectPanningSlide
	}

	if e.Op == EffectNone {
		e.Arg = 0
	}
	return e
}

// EffectFromVolumeByte decodes the volume column of a pattern note.
func EffectFromVolumeByte(v uint8) Effect {
	var e Effect

	lo := v & 0x0F
	switch {
	case v <= 0x0F:
		// Do nothing.

	case v <= 0x50:
		// Set volume effect.
		e.Op = EffectSetVolume
		e.Arg = v - 0x10

	case v < 0x60:
		// Undefined.

	case v <= 0x6F:
		e.Op = EffectVolumeSlideDown
		e.Arg = lo

	case v <= 0x7F:
		e.Op = EffectVolumeSlideUp
		e.Arg = lo

	case v <= 0x8F:
		e.Op = EffectFineVolumeSlideDown
		e.Arg = lo

	case v <= 0x9F:
		e.Op = EffectFineVolumeSlideUp
		e.Arg = lo

	case v <= 0xAF:
		// Set vibrato speed: it only changes the effect memory.
		e.Op = EffectVibrato
		e.Arg = lo << 4

	case v <= 0xBF:
		e.Op = EffectVibrato
		e.Arg = lo

	case v <= 0xCF:
		e.Op = EffectSetPanning
		e.Arg = lo * 0x11

	case v <= 0xDF:
		e.Op = EffectPanningSlideLeft
		e.Arg = lo

	case v <= 0xEF:
		e.Op = EffectPanningSlideRight
		e.Arg = lo

	default:
		e.Op = EffectNotePortamento
		e.Arg = lo << 4
	}

	return e
}

func (e Effect) AsUint16() uint16 {
	return (uint16(e.Op) << 8) | uint16(e.Arg)
}
