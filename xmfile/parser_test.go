package xmfile_test

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/quasilyte/xmscope/internal/xmgen"
	"github.com/quasilyte/xmscope/xmfile"
)

func TestParseDemo(t *testing.T) {
	data := xmgen.Encode(xmgen.Demo())
	m, err := xmfile.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if m.Name != "xmscope demo" {
		t.Errorf("name: %q", m.Name)
	}
	if m.TrackerName != "xmgen" {
		t.Errorf("tracker name: %q", m.TrackerName)
	}
	if m.Version != [2]byte{1, 4} {
		t.Errorf("version: %v", m.Version)
	}
	if m.NumChannels != 6 || m.NumPatterns != 3 || m.NumInstruments != 5 {
		t.Fatalf("counters: channels=%d patterns=%d instruments=%d",
			m.NumChannels, m.NumPatterns, m.NumInstruments)
	}
	if !m.LinearFrequencies() {
		t.Error("expected linear frequencies")
	}
	if m.DefaultTempo != 6 || m.DefaultBPM != 125 {
		t.Errorf("tempo=%d bpm=%d", m.DefaultTempo, m.DefaultBPM)
	}
	if !bytes.Equal(m.PatternOrder, []byte{0, 1, 0, 2}) {
		t.Errorf("pattern order: %v", m.PatternOrder)
	}

	names := []string{"Square Lead", "Sine Bass", "Drums", "Saw Pad", "(empty)"}
	for i, name := range names {
		if m.Instruments[i].Name != name {
			t.Errorf("instrument %d name: %q, want %q", i, m.Instruments[i].Name, name)
		}
	}

	lead := &m.Instruments[0]
	if len(lead.Samples) != 1 || lead.Samples[0].Length != 32 {
		t.Fatalf("unexpected lead samples")
	}
	if lead.Samples[0].LoopType() != xmfile.SampleLoopForward || lead.Samples[0].Is16bits() {
		t.Errorf("lead sample flags: %08b", lead.Samples[0].TypeFlags)
	}
	if len(lead.EnvelopeVolume) != 4 || lead.EnvelopeVolume[1] != (xmfile.EnvelopePoint{X: 8, Y: 40}) {
		t.Errorf("lead envelope: %v", lead.EnvelopeVolume)
	}
	if !lead.VolumeFlags.IsOn() || !lead.VolumeFlags.SustainEnabled() || lead.VolumeFlags.LoopEnabled() {
		t.Errorf("lead envelope flags: %b", lead.VolumeFlags)
	}
	if lead.VolumeSustainPoint != 2 || lead.VolumeFadeout != 0x400 {
		t.Errorf("lead envelope sustain=%d fadeout=%d", lead.VolumeSustainPoint, lead.VolumeFadeout)
	}
	if lead.EnvelopePanning != nil {
		t.Errorf("lead has a panning envelope")
	}

	bass := &m.Instruments[1].Samples[0]
	if !bass.Is16bits() || bass.Length != 128 || bass.LoopLength != 128 {
		t.Errorf("bass sample: 16bit=%v length=%d loop=%d", bass.Is16bits(), bass.Length, bass.LoopLength)
	}

	drums := &m.Instruments[2]
	if len(drums.Samples) != 2 {
		t.Fatalf("drums have %d samples", len(drums.Samples))
	}
	if drums.Samples[1].Name != "hat" || drums.Samples[1].Panning != 0xA0 {
		t.Errorf("hat sample: %+v", drums.Samples[1])
	}
	if drums.SampleForNote(xmgen.Note("C", 3)) != 0 || drums.SampleForNote(xmgen.Note("F#", 6)) != 1 {
		t.Errorf("drums keymap is broken")
	}

	if len(m.Instruments[4].Samples) != 0 {
		t.Errorf("empty instrument has samples")
	}
}

func TestParsePatterns(t *testing.T) {
	m, err := xmfile.Parse(bytes.NewReader(xmgen.Encode(xmgen.Demo())))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if m.Notes[0] != (xmfile.PatternNote{}) {
		t.Fatalf("notes[0] is not empty: %+v", m.Notes[0])
	}

	p := &m.Patterns[0]
	if len(p.Rows) != 32 || p.IsEmpty {
		t.Fatalf("pattern 0: %d rows, empty=%v", len(p.Rows), p.IsEmpty)
	}
	first := m.Notes[p.Rows[0].Notes[0]]
	if first.Note != xmgen.Note("C", 5) || first.Instrument != 1 {
		t.Errorf("pattern 0 row 0: %+v", first)
	}
	bass := m.Notes[p.Rows[0].Notes[1]]
	if bass.Note != xmgen.Note("C", 3) || bass.Instrument != 2 || bass.Volume != 0x50 {
		t.Errorf("pattern 0 row 0 bass: %+v", bass)
	}
	cut := m.Notes[p.Rows[28].Notes[5]]
	if cut.EffectType != 0x0E || cut.EffectParameter != 0xC2 {
		t.Errorf("pattern 0 row 28 effect: %+v", cut)
	}
	if p.Rows[2].Notes[0] != 0 {
		t.Errorf("empty note is not interned as 0")
	}
	keyOff := m.Notes[p.Rows[30].Notes[0]]
	if !keyOff.IsKeyOff() {
		t.Errorf("expected a key off note: %+v", keyOff)
	}

	// Identical notes are stored only once.
	if p.Rows[0].Notes[2] != p.Rows[4].Notes[2] {
		t.Errorf("notes are not interned")
	}
	for i, n := range m.Notes {
		if int(n.ID) != i {
			t.Fatalf("note %d has ID %d", i, n.ID)
		}
	}

	empty := &m.Patterns[2]
	if !empty.IsEmpty || len(empty.Rows) != 64 {
		t.Fatalf("pattern 2: %d rows, empty=%v", len(empty.Rows), empty.IsEmpty)
	}
	for _, row := range empty.Rows {
		for _, id := range row.Notes {
			if id != 0 {
				t.Fatalf("empty pattern has a non-empty note")
			}
		}
	}
}

func TestParserReuse(t *testing.T) {
	p := xmfile.NewParser(xmfile.ParserConfig{})

	demo := xmgen.Demo()
	small := &xmgen.Module{
		Name:        "small",
		NumChannels: 2,
		Tempo:       3,
		BPM:         150,
		Order:       []int{0},
		Patterns: []xmgen.Pattern{{Rows: [][]xmfile.PatternNote{
			{{Note: 49, Instrument: 1}, {}},
			{{}, {Note: xmgen.KeyOff}},
		}}},
		Instruments: []xmgen.Instrument{{Name: "x"}},
	}

	for i := 0; i < 3; i++ {
		m, err := p.ParseFromBytes(xmgen.Encode(demo))
		if err != nil {
			t.Fatalf("run %d: demo: %v", i, err)
		}
		if m.NumChannels != 6 || len(m.Patterns) != 3 || len(m.Instruments) != 5 {
			t.Fatalf("run %d: demo module is broken", i)
		}
		if m.Instruments[0].Name != "" {
			t.Fatalf("names should be skipped")
		}
		demoNotes := len(m.Notes)

		m, err = p.ParseFromBytes(xmgen.Encode(small))
		if err != nil {
			t.Fatalf("run %d: small: %v", i, err)
		}
		if m.NumChannels != 2 || len(m.Patterns) != 1 || len(m.Instruments) != 1 {
			t.Fatalf("run %d: small module is broken", i)
		}
		if len(m.Notes) != 3 || len(m.Notes) >= demoNotes {
			t.Fatalf("run %d: small module has %d notes", i, len(m.Notes))
		}
		if m.EmptyPattern.Rows != nil {
			t.Fatalf("run %d: stale empty pattern", i)
		}
	}
}

func TestParseErrors(t *testing.T) {
	valid := xmgen.Encode(xmgen.Demo())

	badChannels := xmgen.Encode(&xmgen.Module{Order: []int{0}, Tempo: 6, BPM: 125})

	tests := []struct {
		name  string
		data  []byte
		stage string
		text  string
	}{
		{
			name:  "empty",
			data:  nil,
			stage: "header",
			text:  "unexpected EOF",
		},
		{
			name:  "bad magic",
			data:  append([]byte("Extended Mobile: "), valid[17:]...),
			stage: "header",
			text:  "unexpected ID text",
		},
		{
			name:  "truncated pattern",
			data:  valid[:400],
			stage: "pattern[0]",
			text:  "incomplete packed pattern data",
		},
		{
			name: "truncated sample",
			// Drop the last (sample-less) instrument and a part of the
			// previous instrument sample data.
			data:  valid[:len(valid)-40],
			stage: "instrument[3].sampledata[0]",
			text:  "unexpected EOF",
		},
		{
			name:  "no channels",
			data:  badChannels,
			stage: "header",
			text:  "invalid number of channels",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := xmfile.NewParser(xmfile.ParserConfig{}).ParseFromBytes(test.data)
			var parseErr *xmfile.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected a ParseError, got %v", err)
			}
			if parseErr.Stage != test.stage {
				t.Errorf("stage: have %q, want %q", parseErr.Stage, test.stage)
			}
			if !strings.Contains(parseErr.Message, test.text) {
				t.Errorf("message %q doesn't contain %q", parseErr.Message, test.text)
			}
			if !strings.Contains(err.Error(), "offset=") {
				t.Errorf("error text has no offset: %q", err.Error())
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk is on fire") }

func TestParseReaderError(t *testing.T) {
	_, err := xmfile.Parse(failingReader{})
	if err == nil || !strings.Contains(err.Error(), "disk is on fire") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseDecodeSamples(t *testing.T) {
	m, err := xmfile.Parse(bytes.NewReader(xmgen.Encode(xmgen.Demo())))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	lead := &m.Instruments[0].Samples[0]
	if have, want := lead.Frames, xmgen.SquareWave(32, 100); !slices.Equal(have, want) {
		t.Errorf("8-bit frames:\nhave: %v\nwant: %v", have, want)
	}

	bass := &m.Instruments[1].Samples[0]
	sine := xmgen.SineWave(64, 24000)
	if len(bass.Frames) != len(sine) || bass.NumFrames() != 64 || bass.BytesPerFrame() != 2 {
		t.Fatalf("16-bit frames: %d, want %d", len(bass.Frames), len(sine))
	}
	for i, v := range sine {
		if bass.Frames[i] != int8(v>>8) {
			t.Fatalf("16-bit frame %d: have %d, want %d", i, bass.Frames[i], int8(v>>8))
		}
	}

	if len(m.Instruments[4].Samples) != 0 {
		t.Fatal("empty instrument has samples")
	}
}

func TestParseWithoutDecoding(t *testing.T) {
	p := xmfile.NewParser(xmfile.ParserConfig{})
	m, err := p.ParseFromBytes(xmgen.Encode(xmgen.Demo()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lead := &m.Instruments[0].Samples[0]
	if lead.Frames != nil {
		t.Fatal("frames are decoded without DecodeSamples")
	}
	if have := lead.DecodeFrames(nil); !slices.Equal(have, xmgen.SquareWave(32, 100)) {
		t.Errorf("DecodeFrames: %v", have)
	}

	buf := make([]int8, 0, 100)
	if have := lead.DecodeFrames(buf); &have[0] != &buf[:1][0] {
		t.Error("DecodeFrames didn't reuse the buffer")
	}
}

func TestParserReuseKeepsFramesIntact(t *testing.T) {
	p := xmfile.NewParser(xmfile.ParserConfig{DecodeSamples: true})

	for i := 0; i < 3; i++ {
		m, err := p.ParseFromBytes(xmgen.Encode(xmgen.Demo()))
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		lead := &m.Instruments[0].Samples[0]
		saw := &m.Instruments[3].Samples[0]
		if !slices.Equal(lead.Frames, xmgen.SquareWave(32, 100)) {
			t.Fatalf("run %d: lead frames are corrupted", i)
		}
		if !slices.Equal(saw.Frames, saw.DecodeFrames(nil)) {
			t.Fatalf("run %d: saw frames are corrupted", i)
		}
	}
}
