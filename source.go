package xmscope

import (
	"errors"
)

// PlaybackSource is the playback engine as seen by the viewer.
//
// The engine usually runs in its own goroutine (or even in its own process),
// so every call can fail. The viewer treats all of these failures as
// recoverable: it either falls back to a default or keeps the last known data.
type PlaybackSource interface {
	// NumChannels reports the loaded module channel count.
	// It's only called during the setup.
	NumChannels() (int, error)

	// Instruments returns the instrument display names in module order.
	Instruments() ([]string, error)

	// SampleData fills buf with a raw waveform window for the given channel.
	// The values are used as a vertical displacement as is.
	//
	// trigger tells the engine that a new note was struck on this frame,
	// so the sample window should start from the beginning of the sample.
	// ins and key must be the latency-compensated (held) values.
	//
	// On error, buf must be left untouched.
	SampleData(trigger bool, ins, key, chn int, buf []int8) error
}

// Muter is an optional PlaybackSource extension that allows
// muting and un-muting channels.
type Muter interface {
	// Mute sets the mute status of a channel: 1 mutes it, 0 un-mutes it.
	// A negative status only queries the current state.
	// The previous mute state (1 or 0) is returned.
	Mute(chn int, status int) (int, error)
}

var (
	// ErrSurfaceUnavailable is returned when a drawable surface
	// could not be acquired; the frame is dropped.
	ErrSurfaceUnavailable = errors.New("surface unavailable")

	// ErrSnapshotMismatch is returned in strict mode when the snapshot
	// channel layout does not match the channel count used during the setup.
	ErrSnapshotMismatch = errors.New("snapshot channel count mismatch")

	// ErrNotSetup is returned by RenderFrame before the first Setup call.
	ErrNotSetup = errors.New("viewer is not set up")
)
