package xmplay

import (
	"unsafe"
)

// moduleSize approximates the compiled module memory footprint.
func moduleSize(m *module) uint {
	memoryUsage := 0
	for _, inst := range m.instruments {
		memoryUsage += int(unsafe.Sizeof(instrument{}))
		for _, s := range inst.samples {
			memoryUsage += int(unsafe.Sizeof(sample{}))
			memoryUsage += len(s.data)
		}
		memoryUsage += len(inst.volumeEnvelope.points) * int(unsafe.Sizeof(envelopePoint{}))
		memoryUsage += len(inst.panningEnvelope.points) * int(unsafe.Sizeof(envelopePoint{}))
	}
	for _, p := range m.patterns {
		memoryUsage += int(unsafe.Sizeof(pattern{}))
		memoryUsage += len(p.notes) * 2
	}
	memoryUsage += len(m.patternOrder) * int(unsafe.Sizeof(&pattern{}))
	memoryUsage += len(m.noteTab) * int(unsafe.Sizeof(patternNote{}))
	memoryUsage += len(m.effectTab) * int(unsafe.Sizeof(noteEffect{}))

	return uint(memoryUsage)
}
