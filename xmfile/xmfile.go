package xmfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Module is a parsed XM file contents.
// This is a raw module format that is not optimized for anything.
//
// A module returned by the Parser is only valid until the next
// parse call of the same Parser: its memory is reused.
type Module struct {
	Name string

	TrackerName string

	// Major and minor version numbers.
	// Version[0] is a major version.
	// Version[1] is a minor version.
	Version [2]byte

	SongLength      int
	RestartPosition int

	NumChannels    int
	NumPatterns    int
	NumInstruments int

	// 0 - Amiga
	// 1 - Linear
	Flags uint16

	DefaultTempo int
	DefaultBPM   int

	PatternOrder []uint8

	Patterns []Pattern

	// EmptyPattern is a shared standard empty pattern.
	// Every pattern with no packed data refers to its rows.
	EmptyPattern Pattern

	// Notes is a set of unique pattern notes.
	// Pattern rows store indexes into this slice.
	// Notes[0] is always an empty note.
	Notes []PatternNote

	Instruments []Instrument
}

// LinearFrequencies reports whether the module uses a linear frequency table.
func (m *Module) LinearFrequencies() bool {
	return m.Flags&0b1 != 0
}

type Pattern struct {
	Rows []PatternRow

	// IsEmpty is set for a standard empty pattern (64 rows, all notes are empty).
	IsEmpty bool
}

type PatternRow struct {
	// Notes are Module.Notes indexes, one per channel.
	Notes []uint16
}

type PatternNote struct {
	ID uint16

	Note            uint8
	Instrument      uint8
	Volume          uint8
	EffectType      uint8
	EffectParameter uint8
}

// IsEmpty reports whether the note has no effect at all.
func (n *PatternNote) IsEmpty() bool {
	return n.Note == 0 && n.Instrument == 0 && n.Volume == 0 &&
		n.EffectType == 0 && n.EffectParameter == 0
}

// IsKeyOff reports whether the note is a "key off" (note 97).
func (n *PatternNote) IsKeyOff() bool { return n.Note == 97 }

type Instrument struct {
	Name string

	// KeymapAssignments maps every one of 96 notes to a sample index.
	KeymapAssignments []byte
	EnvelopeVolume    []EnvelopePoint
	EnvelopePanning   []EnvelopePoint

	VolumeSustainPoint    uint8
	VolumeLoopStartPoint  uint8
	VolumeLoopEndPoint    uint8
	PanningSustainPoint   uint8
	PanningLoopStartPoint uint8
	PanningLoopEndPoint   uint8

	VolumeFlags  EnvelopeFlags
	PanningFlags EnvelopeFlags

	VibratoType  uint8
	VibratoSweep uint8
	VibratoDepth uint8
	VibratoRate  uint8

	VolumeFadeout int

	Samples []InstrumentSample
}

// SampleForNote returns the sample index mapped to a 1-based note
// or -1 if there is no such sample.
func (inst *Instrument) SampleForNote(note uint8) int {
	if len(inst.Samples) == 0 {
		return -1
	}
	if note == 0 || int(note) > len(inst.KeymapAssignments) {
		// Without a keymap, all notes are played by the first sample.
		return 0
	}
	i := int(inst.KeymapAssignments[note-1])
	if i >= len(inst.Samples) {
		return -1
	}
	return i
}

type EnvelopePoint struct {
	X uint16
	Y uint16
}

type InstrumentSample struct {
	Name string

	// Length is a data length in bytes.
	Length int

	// LoopStart and LoopLength are in bytes too.
	LoopStart  int
	LoopLength int

	Volume       int
	Finetune     int
	TypeFlags    uint8
	Panning      uint8
	RelativeNote int
	Format       SampleFormat

	// Data holds delta-encoded sample values (8 or 16 bits each).
	Data []uint8

	// Frames holds the decoded 8-bit sample values.
	// It's only filled when ParserConfig.DecodeSamples is set.
	Frames []int8
}

type SampleLoopType int

const (
	SampleLoopNone SampleLoopType = iota
	SampleLoopForward
	SampleLoopPingPong
	SampleLoopUnknown
)

func (s *InstrumentSample) LoopType() SampleLoopType {
	bits := s.TypeFlags & 0b11
	return SampleLoopType(bits)
}

func (s *InstrumentSample) Is16bits() bool {
	return (s.TypeFlags & (1 << 4)) != 0
}

// BytesPerFrame returns the encoded frame size.
// The sample lengths and loop points are measured in bytes,
// divide them by this value to get the frame offsets.
func (s *InstrumentSample) BytesPerFrame() int {
	if s.Is16bits() {
		return 2
	}
	return 1
}

// NumFrames returns the number of frames stored in Data.
func (s *InstrumentSample) NumFrames() int {
	return min(len(s.Data), s.Length) / s.BytesPerFrame()
}

// DecodeFrames converts the delta-packed sample data into absolute
// signed 8-bit values and stores them into dst.
// The 16-bit frames only keep their high byte.
//
// dst is reused if it has enough capacity.
func (s *InstrumentSample) DecodeFrames(dst []int8) []int8 {
	n := s.NumFrames()
	if cap(dst) < n {
		dst = make([]int8, n)
	}
	dst = dst[:n]

	if s.Is16bits() {
		v := int16(0)
		for i := range dst {
			v += int16(binary.LittleEndian.Uint16(s.Data[i*2:]))
			dst[i] = int8(v >> 8)
		}
		return dst
	}
	v := int8(0)
	for i, delta := range s.Data[:n] {
		v += int8(delta)
		dst[i] = v
	}
	return dst
}

type EnvelopeFlags int

func (f EnvelopeFlags) IsOn() bool {
	return f&(1<<0) != 0
}

func (f EnvelopeFlags) SustainEnabled() bool {
	return f&(1<<1) != 0
}

func (f EnvelopeFlags) LoopEnabled() bool {
	return f&(1<<2) != 0
}

type SampleFormat int

const (
	SampleFormatDeltaPacked SampleFormat = iota
	SampleFormatADPCM
)

// ParserConfig configures the XM parser.
type ParserConfig struct {
	// NeedStrings makes the parser read the instrument and sample names.
	// They're skipped otherwise, saving some allocations.
	NeedStrings bool

	// DecodeSamples makes the parser fill InstrumentSample.Frames
	// for the delta-packed samples.
	DecodeSamples bool
}

// Parser decodes XM files.
//
// A single parser can be reused to decode several files;
// this allows it to reuse most of the allocated memory.
// A parser is not safe for concurrent use.
type Parser struct {
	impl *parser
}

// NewParser creates a reusable XM parser.
func NewParser(config ParserConfig) *Parser {
	return &Parser{impl: newParser(config)}
}

// ParseFromBytes decodes the XM file data.
//
// The returned module refers to data (sample bytes are not copied)
// and it's valid until the next ParseFromBytes call.
//
// A non-nil error is usually a *ParseError object.
func (p *Parser) ParseFromBytes(data []byte) (*Module, error) {
	if err := p.impl.Parse(data); err != nil {
		return nil, err
	}
	return &p.impl.module, nil
}

// Parse reads XM file data and decodes it into a module.
// The instrument names and the sample frames are always decoded.
//
// A non-nil error is usually a *ParseError object.
func Parse(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	p := NewParser(ParserConfig{
		NeedStrings:   true,
		DecodeSamples: true,
	})
	return p.ParseFromBytes(data)
}
