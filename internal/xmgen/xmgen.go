// Package xmgen encodes XM files.
//
// It only covers the subset of the format that is needed to produce
// test fixtures and the built-in demo song: delta-packed samples,
// packed patterns and volume/panning envelopes.
package xmgen

import (
	"bytes"
	"encoding/binary"

	"github.com/quasilyte/xmscope/xmfile"
)

type Module struct {
	Name string

	NumChannels int

	// Tempo is a default number of ticks per row.
	Tempo int
	BPM   int

	// Amiga selects the Amiga frequency table instead of the linear one.
	Amiga bool

	Order   []int
	Restart int

	Patterns    []Pattern
	Instruments []Instrument
}

type Pattern struct {
	// Rows is a [row][channel] note matrix.
	// A nil Rows slice encodes a standard empty pattern.
	Rows [][]xmfile.PatternNote
}

type Instrument struct {
	Name string

	// Keymap maps notes to the sample indexes.
	// A nil keymap maps every note to the first sample.
	Keymap []byte

	VolumeEnvelope []xmfile.EnvelopePoint
	VolumeFlags    xmfile.EnvelopeFlags
	VolumeSustain  uint8
	VolumeLoop     [2]uint8

	PanningEnvelope []xmfile.EnvelopePoint
	PanningFlags    xmfile.EnvelopeFlags

	VolumeFadeout int

	Samples []Sample
}

type Sample struct {
	Name string

	// Only one of Data8 and Data16 should be set.
	Data8  []int8
	Data16 []int16

	// Loop bounds are in sample frames (not bytes).
	LoopStart  int
	LoopLength int
	Loop       xmfile.SampleLoopType

	Volume       int
	Panning      int
	Finetune     int
	RelativeNote int
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) bytes(b []byte) { w.buf.Write(b) }

func (w *writer) byte(b uint8) { w.buf.WriteByte(b) }

func (w *writer) word(v int) {
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(v)))
}

func (w *writer) dword(v int) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(v)))
}

func (w *writer) str(s string, size int) {
	b := make([]byte, size)
	copy(b, s)
	w.buf.Write(b)
}

// Encode produces the XM file bytes.
func Encode(m *Module) []byte {
	w := &writer{}

	w.str("Extended Module: ", 17)
	w.str(m.Name, 20)
	w.byte(0x1a)
	w.str("xmgen", 20)
	w.word(0x0104)

	w.dword(276)
	w.word(len(m.Order))
	w.word(m.Restart)
	w.word(m.NumChannels)
	w.word(len(m.Patterns))
	w.word(len(m.Instruments))
	flags := 1
	if m.Amiga {
		flags = 0
	}
	w.word(flags)
	w.word(m.Tempo)
	w.word(m.BPM)
	order := make([]byte, 256)
	for i, v := range m.Order {
		order[i] = byte(v)
	}
	w.bytes(order)

	for i := range m.Patterns {
		encodePattern(w, &m.Patterns[i])
	}
	for i := range m.Instruments {
		encodeInstrument(w, &m.Instruments[i])
	}

	return w.buf.Bytes()
}

func encodePattern(w *writer, p *Pattern) {
	var packed writer
	for _, row := range p.Rows {
		for _, n := range row {
			packNote(&packed, n)
		}
	}

	numRows := len(p.Rows)
	if numRows == 0 {
		numRows = 64
	}
	w.dword(9)
	w.byte(0)
	w.word(numRows)
	w.word(packed.buf.Len())
	w.bytes(packed.buf.Bytes())
}

func packNote(w *writer, n xmfile.PatternNote) {
	if n.Note != 0 && n.Instrument != 0 && n.Volume != 0 && n.EffectType != 0 && n.EffectParameter != 0 {
		w.byte(n.Note)
		w.byte(n.Instrument)
		w.byte(n.Volume)
		w.byte(n.EffectType)
		w.byte(n.EffectParameter)
		return
	}
	flags := uint8(0x80)
	fields := [...]uint8{n.Note, n.Instrument, n.Volume, n.EffectType, n.EffectParameter}
	for i, v := range fields {
		if v != 0 {
			flags |= 1 << i
		}
	}
	w.byte(flags)
	for _, v := range fields {
		if v != 0 {
			w.byte(v)
		}
	}
}

func encodeInstrument(w *writer, inst *Instrument) {
	if len(inst.Samples) == 0 {
		w.dword(29)
		w.str(inst.Name, 22)
		w.byte(0)
		w.word(0)
		return
	}

	w.dword(263)
	w.str(inst.Name, 22)
	w.byte(0)
	w.word(len(inst.Samples))
	w.dword(40)

	keymap := make([]byte, 96)
	copy(keymap, inst.Keymap)
	w.bytes(keymap)

	writeEnvelope(w, inst.VolumeEnvelope)
	writeEnvelope(w, inst.PanningEnvelope)
	w.byte(uint8(len(inst.VolumeEnvelope)))
	w.byte(uint8(len(inst.PanningEnvelope)))
	w.byte(inst.VolumeSustain)
	w.byte(inst.VolumeLoop[0])
	w.byte(inst.VolumeLoop[1])
	w.byte(0) // Panning sustain
	w.byte(0) // Panning loop start
	w.byte(0) // Panning loop end
	w.byte(uint8(inst.VolumeFlags))
	w.byte(uint8(inst.PanningFlags))
	w.byte(0) // Vibrato type
	w.byte(0) // Vibrato sweep
	w.byte(0) // Vibrato depth
	w.byte(0) // Vibrato rate
	w.word(inst.VolumeFadeout)
	w.str("", 22)

	encoded := make([][]byte, len(inst.Samples))
	for i := range inst.Samples {
		s := &inst.Samples[i]
		data, is16 := encodeSampleData(s)
		encoded[i] = data
		bytesPerFrame := 1
		typeFlags := uint8(s.Loop) & 0b11
		if is16 {
			bytesPerFrame = 2
			typeFlags |= 1 << 4
		}
		w.dword(len(data))
		w.dword(s.LoopStart * bytesPerFrame)
		w.dword(s.LoopLength * bytesPerFrame)
		w.byte(uint8(s.Volume))
		w.byte(uint8(int8(s.Finetune)))
		w.byte(typeFlags)
		w.byte(uint8(s.Panning))
		w.byte(uint8(int8(s.RelativeNote)))
		w.byte(0)
		w.str(s.Name, 22)
	}
	for _, data := range encoded {
		w.bytes(data)
	}
}

func writeEnvelope(w *writer, points []xmfile.EnvelopePoint) {
	for i := 0; i < 12; i++ {
		var p xmfile.EnvelopePoint
		if i < len(points) {
			p = points[i]
		}
		w.word(int(p.X))
		w.word(int(p.Y))
	}
}

func encodeSampleData(s *Sample) ([]byte, bool) {
	if s.Data16 != nil {
		data := make([]byte, 0, len(s.Data16)*2)
		prev := int16(0)
		for _, v := range s.Data16 {
			data = binary.LittleEndian.AppendUint16(data, uint16(v-prev))
			prev = v
		}
		return data, true
	}
	data := make([]byte, len(s.Data8))
	prev := int8(0)
	for i, v := range s.Data8 {
		data[i] = byte(v - prev)
		prev = v
	}
	return data, false
}
