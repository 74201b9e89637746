package xmfile

import (
	"bytes"
)

// arena hands out slices carved from a few big chunks.
//
// After a reset, all chunks are reused: the slices returned
// before it must not be used anymore. The reused memory is not
// zeroed, the caller is expected to overwrite it.
//
// Requests that don't fit into a chunk (or when all chunks
// are exhausted) are served by a regular allocation.
type arena[T any] struct {
	chunks    [][]T
	chunkSize int
	maxChunks int
}

func newArena[T any](chunkSize, maxChunks int) arena[T] {
	return arena[T]{
		chunks:    make([][]T, 0, maxChunks),
		chunkSize: chunkSize,
		maxChunks: maxChunks,
	}
}

func (a *arena[T]) reset() {
	for i := range a.chunks {
		a.chunks[i] = a.chunks[i][:0]
	}
}

func (a *arena[T]) alloc(n int) []T {
	if n > a.chunkSize {
		return make([]T, n)
	}
	for i, chunk := range a.chunks {
		if cap(chunk)-len(chunk) >= n {
			return a.take(i, n)
		}
	}
	if len(a.chunks) == a.maxChunks {
		return make([]T, n)
	}
	a.chunks = append(a.chunks, make([]T, 0, a.chunkSize))
	return a.take(len(a.chunks)-1, n)
}

// take cuts n elements from the chunk tail.
// The result capacity is limited, so appending to it
// never overwrites the neighbours.
func (a *arena[T]) take(i, n int) []T {
	chunk := a.chunks[i]
	used := len(chunk)
	a.chunks[i] = chunk[:used+n]
	return chunk[used : used+n : used+n]
}

func cstring(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
