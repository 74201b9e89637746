package xmgen

import (
	"math"

	"github.com/quasilyte/xmscope/xmfile"
)

// Note converts a note name octave pair into an XM note value.
// Note("C", 4) is 49.
func Note(name string, octave int) uint8 {
	names := [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	for i, n := range names {
		if n == name {
			return uint8(octave*12 + i + 1)
		}
	}
	panic("unknown note name: " + name)
}

// KeyOff is a key-off note value.
const KeyOff = 97

// SquareWave generates a single-period 8-bit square wave.
func SquareWave(period int, amplitude int8) []int8 {
	data := make([]int8, period)
	for i := range data {
		if i < period/2 {
			data[i] = amplitude
		} else {
			data[i] = -amplitude
		}
	}
	return data
}

// SineWave generates a single-period 16-bit sine wave.
func SineWave(period int, amplitude int16) []int16 {
	data := make([]int16, period)
	for i := range data {
		data[i] = int16(float64(amplitude) * math.Sin(2*math.Pi*float64(i)/float64(period)))
	}
	return data
}

// SawWave generates a single-period 8-bit sawtooth wave.
func SawWave(period int, amplitude int8) []int8 {
	data := make([]int8, period)
	for i := range data {
		data[i] = int8(-int(amplitude) + 2*int(amplitude)*i/period)
	}
	return data
}

// Noise generates a deterministic 8-bit noise burst.
func Noise(length int, amplitude int8) []int8 {
	data := make([]int8, length)
	x := uint32(0x1234567)
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		v := int(int8(x>>24)) * int(amplitude) / 128
		// A short decay makes it sound (and look) like a drum hit.
		data[i] = int8(v * (length - i) / length)
	}
	return data
}

// Demo returns a small 6-channel song that exercises most of the
// supported features: looped and one-shot samples, 8 and 16-bit data,
// envelopes, volume column effects, arpeggio, slides and panning.
func Demo() *Module {
	m := &Module{
		Name:        "xmscope demo",
		NumChannels: 6,
		Tempo:       6,
		BPM:         125,
		Order:       []int{0, 1, 0, 2},
		Restart:     0,
	}

	m.Instruments = []Instrument{
		{
			Name: "Square Lead",
			Samples: []Sample{{
				Name:       "square",
				Data8:      SquareWave(32, 100),
				Loop:       xmfile.SampleLoopForward,
				LoopLength: 32,
				Volume:     0x30,
				Panning:    0x80,
			}},
			VolumeEnvelope: []xmfile.EnvelopePoint{{X: 0, Y: 64}, {X: 8, Y: 40}, {X: 40, Y: 32}, {X: 80, Y: 0}},
			VolumeFlags:    0b011,
			VolumeSustain:  2,
			VolumeFadeout:  0x400,
		},
		{
			Name: "Sine Bass",
			Samples: []Sample{{
				Name:       "sine",
				Data16:     SineWave(64, 24000),
				Loop:       xmfile.SampleLoopForward,
				LoopLength: 64,
				Volume:     0x40,
				Panning:    0x80,
			}},
		},
		{
			Name: "Drums",
			// Low notes play the kick, high notes play the hat.
			Keymap: append(make([]byte, 48), repeatByte(1, 48)...),
			Samples: []Sample{
				{Name: "kick", Data16: kickDrum(2400), Volume: 0x40, Panning: 0x80},
				{Name: "hat", Data8: Noise(600, 90), Volume: 0x28, Panning: 0xA0},
			},
		},
		{
			Name: "Saw Pad",
			Samples: []Sample{{
				Name:       "saw",
				Data8:      SawWave(64, 90),
				Loop:       xmfile.SampleLoopPingPong,
				LoopLength: 64,
				Volume:     0x20,
				Panning:    0x60,
			}},
		},
		{
			// An instrument without samples: a name-only label.
			Name: "(empty)",
		},
	}

	m.Patterns = []Pattern{
		demoPattern(0),
		demoPattern(5),
		{Rows: nil},
	}

	return m
}

func demoPattern(transpose int) Pattern {
	const numRows = 32
	const numChannels = 6
	rows := make([][]xmfile.PatternNote, numRows)
	for i := range rows {
		rows[i] = make([]xmfile.PatternNote, numChannels)
	}

	t := func(n uint8) uint8 { return n + uint8(transpose) }

	melody := []string{"C", "D#", "G", "A#", "G", "D#", "F", "G"}
	for i, name := range melody {
		row := i * 4
		rows[row][0] = xmfile.PatternNote{Note: t(Note(name, 5)), Instrument: 1}
		if i%2 == 1 {
			// Arpeggio: +4, +7 semitones.
			rows[row+1][0] = xmfile.PatternNote{EffectType: 0x00, EffectParameter: 0x47}
		}
	}
	rows[30][0] = xmfile.PatternNote{Note: KeyOff}

	for row := 0; row < numRows; row += 8 {
		rows[row][1] = xmfile.PatternNote{Note: t(Note("C", 3)), Instrument: 2, Volume: 0x50}
		rows[row+4][1] = xmfile.PatternNote{Note: t(Note("G", 2)), Instrument: 2, Volume: 0x40}
		// Volume column slide down.
		rows[row+6][1] = xmfile.PatternNote{Volume: 0x64}
	}

	for row := 0; row < numRows; row += 4 {
		rows[row][2] = xmfile.PatternNote{Note: Note("C", 3), Instrument: 3}
		rows[row+2][3] = xmfile.PatternNote{Note: Note("F#", 6), Instrument: 3, Volume: 0x30}
	}

	rows[0][4] = xmfile.PatternNote{Note: t(Note("C", 4)), Instrument: 4, Volume: 0x10}
	rows[1][4] = xmfile.PatternNote{EffectType: 0x0A, EffectParameter: 0x20}
	rows[16][4] = xmfile.PatternNote{Note: t(Note("G", 4)), Instrument: 4, EffectType: 0x08, EffectParameter: 0xC0}
	rows[17][4] = xmfile.PatternNote{EffectType: 0x19, EffectParameter: 0x02}

	rows[8][5] = xmfile.PatternNote{Note: t(Note("C", 5)), Instrument: 5}
	rows[12][5] = xmfile.PatternNote{Note: t(Note("C", 6)), Instrument: 1, EffectType: 0x01, EffectParameter: 0x08}
	rows[20][5] = xmfile.PatternNote{Note: t(Note("G", 5)), Instrument: 1, EffectType: 0x04, EffectParameter: 0x68}
	rows[28][5] = xmfile.PatternNote{EffectType: 0x0E, EffectParameter: 0xC2}

	return Pattern{Rows: rows}
}

func kickDrum(length int) []int16 {
	data := make([]int16, length)
	phase := 0.0
	for i := range data {
		p := float64(i) / float64(length)
		freq := 0.02 * (1 - p*0.8)
		phase += freq
		data[i] = int16(28000 * (1 - p) * math.Sin(2*math.Pi*phase))
	}
	return data
}

func repeatByte(b byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = b
	}
	return data
}
