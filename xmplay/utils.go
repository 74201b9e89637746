package xmplay

import (
	"math"
	"time"
)

type numeric interface {
	uint8 | int | float64
}

func clampMin[T numeric](v, min T) T {
	if v < min {
		return min
	}
	return v
}

func clampMax[T numeric](v, max T) T {
	if v > max {
		return max
	}
	return v
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// calcTickDuration returns the real time length of a single tick.
// A tick takes 2.5/BPM seconds.
func calcTickDuration(bpm float64) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Duration(2.5 * float64(time.Second) / bpm)
}

func calcRealNote(note uint8, s *sample) float64 {
	fnote := float64(note)
	var frelativeNote float64
	var ffinetune float64
	if s != nil {
		frelativeNote = float64(s.relativeNote)
		ffinetune = float64(s.finetune)
	}
	return (fnote + frelativeNote + ffinetune/128) - 1
}

func linearPeriod(note float64) float64 {
	return 7680.0 - note*64.0
}

func linearFrequency(period float64) float64 {
	return 8363.0 * math.Pow(2, (4608-period)/768)
}

// amigaPeriod uses the same units as linearPeriod does:
// C-4 (real note 48) has a period of 1712.
func amigaPeriod(note float64) float64 {
	return 27392.0 / math.Pow(2, note/12)
}

func amigaFrequency(period float64) float64 {
	if period <= 0 {
		return 0
	}
	return 8363.0 * 1712 / period
}

// waveform is a vibrato sine wave; a full cycle is 64 steps.
func waveform(step uint8) float64 {
	return math.Sin(2 * math.Pi * float64(step) / 64)
}

func slideTowards(v, goal, delta float64) float64 {
	if v > goal {
		return max(v-delta, goal)
	}
	if v < goal {
		return min(v+delta, goal)
	}
	return v
}

func envelopeLerp(a, b envelopePoint, frame int) float64 {
	if frame <= a.frame {
		return a.value
	}
	if frame >= b.frame {
		return b.value
	}
	p := float64(frame-a.frame) / float64(b.frame-a.frame)
	return a.value*(1-p) + b.value*p
}
