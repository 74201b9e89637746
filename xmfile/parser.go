package xmfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// The format allows up to 32 channels, but some trackers
// can write more than that.
const maxChannels = 64

// Sizes of the fixed-length header fields.
const (
	idTextLen     = 17
	moduleNameLen = 20
	trackerLen    = 20
	nameLen       = 22
	keymapLen     = 96
	envelopeLen   = 12

	// A pattern header has at least these fields:
	// length (4), packing type (1), rows (2), data size (2).
	minPatternHeader = 9

	// Standard empty pattern is used for patterns without data.
	emptyPatternRows = 64
)

// packedNote is set in the first note byte when the note is compressed.
// The low 5 bits then tell which of the note fields follow.
const packedNote = 0x80

var noteFieldNames = [...]string{
	"pattern note",
	"pattern instrument",
	"pattern volume",
	"effect type",
	"effect type parameter",
}

// parser keeps all memory that can be reused between the parse calls.
// Most of the module slices point into the parser-owned arenas.
type parser struct {
	config ParserConfig

	data []byte
	pos  int

	module Module

	noteIDs map[uint64]uint16

	rows   arena[PatternRow]
	ids    arena[uint16]
	frames arena[int8]

	envelopes [2 * envelopeLen]EnvelopePoint

	at location
}

// location is a human-readable parsing position used in errors,
// like "instrument[2].sample[0]".
type location struct {
	stage    string
	index    int
	subStage string
	subIndex int
}

func (loc *location) enter(stage string) {
	*loc = location{stage: stage, index: -1, subIndex: -1}
}

func (loc *location) enterSub(subStage string) {
	loc.subStage = subStage
	loc.subIndex = -1
}

func (loc *location) String() string {
	var b strings.Builder
	b.WriteString(loc.stage)
	if loc.index >= 0 {
		fmt.Fprintf(&b, "[%d]", loc.index)
	}
	if loc.subStage != "" {
		b.WriteByte('.')
		b.WriteString(loc.subStage)
		if loc.subIndex >= 0 {
			fmt.Fprintf(&b, "[%d]", loc.subIndex)
		}
	}
	return b.String()
}

func newParser(config ParserConfig) *parser {
	p := &parser{
		config:  config,
		noteIDs: make(map[uint64]uint16, 512),
		rows:    newArena[PatternRow](64*20, 6),
		ids:     newArena[uint16](2048*8, 6),
		frames:  newArena[int8](64*1024, 4),
	}
	p.module.Notes = make([]PatternNote, 0, 512)
	return p
}

func (p *parser) Parse(data []byte) (err error) {
	p.reset(data)

	defer func() {
		rv := recover()
		if rv == nil {
			return
		}
		parseErr, ok := rv.(*ParseError)
		if !ok {
			panic(rv)
		}
		err = parseErr
	}()

	p.parseModule()
	return nil
}

// reset forgets the previous module, keeping its memory.
func (p *parser) reset(data []byte) {
	p.data = data
	p.pos = 0
	p.at = location{}
	clear(p.noteIDs)
	p.rows.reset()
	p.ids.reset()
	p.frames.reset()

	p.module = Module{
		Notes:        p.module.Notes[:0],
		Patterns:     p.module.Patterns[:0],
		Instruments:  p.module.Instruments[:0],
		PatternOrder: p.module.PatternOrder[:0],
	}
}

func (p *parser) fail(format string, args ...any) {
	panic(&ParseError{
		Stage:   p.at.String(),
		Message: fmt.Sprintf(format, args...),
		Offset:  p.pos,
	})
}

func (p *parser) remaining() int { return len(p.data) - p.pos }

// need makes sure that n more bytes can be read.
func (p *parser) need(n int, what string) {
	if n < 0 || p.remaining() < n {
		p.fail("unexpected EOF while reading %s", what)
	}
}

func (p *parser) bytes(n int, what string) []byte {
	p.need(n, what)
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b
}

func (p *parser) skip(n int, what string) {
	p.need(n, what)
	p.pos += n
}

// seek moves to the section end.
// The declared section length is respected even if
// some of its trailing bytes are unknown to us.
func (p *parser) seek(end int) {
	if p.pos > end {
		p.fail("consumed %d extra bytes", p.pos-end)
	}
	p.pos = end
}

func (p *parser) u8(what string) uint8 {
	return p.bytes(1, what)[0]
}

func (p *parser) u16(what string) uint16 {
	return binary.LittleEndian.Uint16(p.bytes(2, what))
}

func (p *parser) u32(what string) uint32 {
	return binary.LittleEndian.Uint32(p.bytes(4, what))
}

func (p *parser) str(n int, what string) string {
	return cstring(p.bytes(n, what))
}

// name reads a space-padded name field.
// When the names are not needed, the field is skipped.
func (p *parser) name(what string) string {
	if !p.config.NeedStrings {
		p.skip(nameLen, what)
		return ""
	}
	return strings.TrimRight(p.str(nameLen, what), " ")
}

// sectionEnd reads a section size that includes the size field itself.
func (p *parser) sectionEnd(what string) int {
	size := int(int32(p.u32(what))) - 4
	if size < 0 || p.remaining() < size {
		p.fail("invalid %s: %d", what, size+4)
	}
	return p.pos + size
}

func (p *parser) parseModule() {
	// Notes[0] is always an empty note.
	p.intern(PatternNote{})

	p.at.enter("header")
	p.parseHeader()

	p.at.enter("pattern")
	for i := 0; i < p.module.NumPatterns; i++ {
		p.at.index = i
		p.module.Patterns = append(p.module.Patterns, p.parsePattern())
	}

	p.at.enter("instrument")
	for i := 0; i < p.module.NumInstruments; i++ {
		p.at.index = i
		p.module.Instruments = append(p.module.Instruments, p.parseInstrument())
	}
}

func (p *parser) parseHeader() {
	m := &p.module

	if id := p.str(idTextLen, "id text"); !strings.EqualFold(id, "extended module: ") {
		p.fail("unexpected ID text: %q", id)
	}
	m.Name = strings.TrimSpace(p.str(moduleNameLen, "module name"))
	if b := p.u8("magic byte"); b != 0x1a {
		p.fail("expected 0x1a, found %#02x", b)
	}
	m.TrackerName = strings.TrimSpace(p.str(trackerLen, "tracker name"))

	version := p.u16("version")
	m.Version = [2]byte{uint8(version >> 8), uint8(version)}

	end := p.sectionEnd("header size")

	m.SongLength = int(p.u16("song length"))
	m.RestartPosition = int(p.u16("restart position"))
	m.NumChannels = int(p.u16("number of channels"))
	m.NumPatterns = int(p.u16("number of patterns"))
	m.NumInstruments = int(p.u16("number of instruments"))
	m.Flags = p.u16("flags")
	m.DefaultTempo = int(p.u16("default tempo"))
	m.DefaultBPM = int(p.u16("default bpm"))

	switch {
	case m.SongLength == 0 || m.SongLength > 256:
		p.fail("invalid song length value: %d", m.SongLength)
	case m.NumChannels == 0 || m.NumChannels > maxChannels:
		p.fail("invalid number of channels: %d", m.NumChannels)
	case m.NumPatterns > 256:
		p.fail("invalid number of patterns: %d", m.NumPatterns)
	case m.NumInstruments > 128:
		p.fail("invalid number of instruments: %d", m.NumInstruments)
	}
	if m.RestartPosition > m.SongLength {
		m.RestartPosition = 0
	}

	m.PatternOrder = append(m.PatternOrder, p.bytes(m.SongLength, "pattern order table")...)

	p.seek(end)
}

func (p *parser) parsePattern() Pattern {
	headerLen := int(int32(p.u32("pattern header length")))
	if headerLen < minPatternHeader {
		p.fail("invalid pattern header length: %d", headerLen)
	}
	p.skip(1, "packing type")
	numRows := int(p.u16("number of rows"))
	if numRows == 0 || numRows > 256 {
		p.fail("invalid number of rows: %d", numRows)
	}
	dataSize := int(p.u16("packed pattern data size"))
	p.skip(headerLen-minPatternHeader, "skip pattern metadata")

	if p.remaining() < dataSize {
		p.fail("incomplete packed pattern data")
	}
	end := p.pos + dataSize

	if dataSize == 0 {
		return p.emptyPattern()
	}

	// TODO: read until all (number of rows)*(number of channels) are consumed?
	// The docs claim that numRows may be imprecise in some XM files.
	pat := Pattern{Rows: p.rows.alloc(numRows)}
	for i := range pat.Rows {
		notes := p.ids.alloc(p.module.NumChannels)
		for j := range notes {
			notes[j] = p.intern(p.readNote())
		}
		pat.Rows[i] = PatternRow{Notes: notes}
	}

	switch {
	case p.pos < end:
		p.fail("found %d redundant bytes in the pattern data", end-p.pos)
	case p.pos > end:
		p.fail("consumed %d extra bytes of the pattern data", p.pos-end)
	}
	return pat
}

// emptyPattern returns a shared standard empty pattern.
// All of its notes refer to the empty note.
func (p *parser) emptyPattern() Pattern {
	if p.module.EmptyPattern.Rows == nil {
		rows := p.rows.alloc(emptyPatternRows)
		for i := range rows {
			// Arena memory can hold the previous module data.
			notes := p.ids.alloc(p.module.NumChannels)
			clear(notes)
			rows[i] = PatternRow{Notes: notes}
		}
		p.module.EmptyPattern = Pattern{Rows: rows, IsEmpty: true}
	}
	return p.module.EmptyPattern
}

func (p *parser) readNote() PatternNote {
	var n PatternNote
	mask := p.u8("first note byte")
	if mask&packedNote == 0 {
		// An uncompressed note: the first byte was a note value.
		n.Note = mask
		mask = 0b11110
	}
	fields := [...]*uint8{&n.Note, &n.Instrument, &n.Volume, &n.EffectType, &n.EffectParameter}
	for i, field := range fields {
		if mask&(1<<i) != 0 {
			*field = p.u8(noteFieldNames[i])
		}
	}
	return n
}

func noteKey(n PatternNote) uint64 {
	return uint64(n.Note) |
		uint64(n.Instrument)<<8 |
		uint64(n.Volume)<<16 |
		uint64(n.EffectType)<<24 |
		uint64(n.EffectParameter)<<32
}

// intern returns a unique note ID, adding the note to the module if needed.
func (p *parser) intern(n PatternNote) uint16 {
	key := noteKey(n)
	if id, ok := p.noteIDs[key]; ok {
		return id
	}
	if len(p.module.Notes) > math.MaxUint16 {
		p.fail("too many unique notes")
	}
	n.ID = uint16(len(p.module.Notes))
	p.module.Notes = append(p.module.Notes, n)
	p.noteIDs[key] = n.ID
	return n.ID
}

func (p *parser) parseInstrument() Instrument {
	var inst Instrument

	end := p.sectionEnd("instrument header size")
	inst.Name = p.name("instrument name")
	p.skip(1, "instrument type")

	numSamples := int(p.u16("number of samples"))
	if numSamples == 0 {
		p.seek(end)
		return inst
	}

	p.sectionEnd("instrument sample header size")
	inst.KeymapAssignments = p.bytes(keymapLen, "instrument samples keymap assignments")

	volume := p.readEnvelope(p.envelopes[:envelopeLen])
	panning := p.readEnvelope(p.envelopes[envelopeLen:])
	inst.EnvelopeVolume = usedPoints(volume, p.u8("number of volume points"))
	inst.EnvelopePanning = usedPoints(panning, p.u8("number of panning points"))

	inst.VolumeSustainPoint = p.u8("volume sustain point")
	inst.VolumeLoopStartPoint = p.u8("volume loop start point")
	inst.VolumeLoopEndPoint = p.u8("volume loop end point")
	inst.PanningSustainPoint = p.u8("panning sustain point")
	inst.PanningLoopStartPoint = p.u8("panning loop start point")
	inst.PanningLoopEndPoint = p.u8("panning loop end point")
	inst.VolumeFlags = EnvelopeFlags(p.u8("volume type"))
	inst.PanningFlags = EnvelopeFlags(p.u8("panning type"))

	inst.VibratoType = p.u8("vibrato type")
	inst.VibratoSweep = p.u8("vibrato sweep")
	inst.VibratoDepth = p.u8("vibrato depth")
	inst.VibratoRate = p.u8("vibrato rate")

	inst.VolumeFadeout = int(p.u16("volume fadeout"))

	p.seek(end)

	// All sample headers go first, the sample data follows them.
	inst.Samples = make([]InstrumentSample, numSamples)
	p.at.enterSub("sample")
	for i := range inst.Samples {
		p.at.subIndex = i
		p.parseSampleHeader(&inst.Samples[i])
	}
	p.at.enterSub("sampledata")
	for i := range inst.Samples {
		p.at.subIndex = i
		p.parseSampleData(&inst.Samples[i])
	}

	return inst
}

func (p *parser) readEnvelope(dst []EnvelopePoint) []EnvelopePoint {
	for i := range dst {
		dst[i] = EnvelopePoint{X: p.u16("envelope point x"), Y: p.u16("envelope point y")}
	}
	return dst
}

// usedPoints copies the first n scratch points.
// The scratch memory is shared, so the result can't refer to it.
func usedPoints(scratch []EnvelopePoint, n uint8) []EnvelopePoint {
	n = min(n, envelopeLen)
	if n == 0 {
		return nil
	}
	return append([]EnvelopePoint(nil), scratch[:n]...)
}

func (p *parser) parseSampleHeader(s *InstrumentSample) {
	length := int(int32(p.u32("sample length")))
	if length < 0 || p.remaining() < length {
		p.fail("incomplete instrument sample data")
	}
	s.Length = length
	s.LoopStart = int(int32(p.u32("sample loop start")))
	s.LoopLength = int(int32(p.u32("sample loop length")))
	s.Volume = int(p.u8("sample volume"))
	s.Finetune = int(int8(p.u8("sample finetune")))
	s.TypeFlags = p.u8("sample type")
	s.Panning = p.u8("sample panning")
	s.RelativeNote = int(int8(p.u8("sample relative note number")))

	switch format := p.u8("sample encoding"); format {
	case 0:
		s.Format = SampleFormatDeltaPacked
	case 0xAD:
		s.Format = SampleFormatADPCM
	default:
		p.fail("unknown sample encoding scheme (%#02x)", format)
	}

	s.Name = p.name("sample name")
}

func (p *parser) parseSampleData(s *InstrumentSample) {
	if s.Length == 0 {
		return
	}
	s.Data = p.bytes(s.Length, "sample data")
	if p.config.DecodeSamples && s.Format == SampleFormatDeltaPacked {
		s.Frames = s.DecodeFrames(p.frames.alloc(s.NumFrames()))
	}
}
