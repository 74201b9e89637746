package xmplay

type streamChannel struct {
	id int

	// Note-related data.
	inst   *instrument
	sample *sample
	note   *patternNote
	period float64
	effect effectKey
	keyOn  bool

	// rawNote is the last triggered 1-based note.
	rawNote uint8

	panning float64

	sampleOffset  float64
	volume        float64
	fadeoutVolume float64

	// Per-tick trigger report.
	// These are -1 unless something was triggered during the current tick.
	trigInstrument int
	trigKey        int

	// Arpeggio effect state.
	arpeggioRunning    bool
	arpeggioNoteOffset float64

	volumeSlideValue         float64
	globalVolumeSlideValue   float64
	panningSlideValue        float64
	portamentoUpValue        float64
	portamentoDownValue      float64
	finePortamentoUpValue    float64
	finePortamentoDownValue  float64
	fineVolumeSlideUpValue   float64
	fineVolumeSlideDownValue float64

	notePortamentoTargetPeriod float64
	notePortamentoValue        float64

	// Vibrato effect state.
	vibratoRunning      bool
	vibratoPeriodOffset float64
	vibratoDepth        float64
	vibratoStep         uint8
	vibratoSpeed        uint8

	volumeEnvelope  envelopeRunner
	panningEnvelope envelopeRunner
}

type envelopeRunner struct {
	envelope

	value float64
	frame int
}

func (ch *streamChannel) Reset() {
	*ch = streamChannel{
		id:             ch.id,
		panning:        0.5,
		fadeoutVolume:  1,
		trigInstrument: -1,
		trigKey:        -1,
	}
	ch.volumeEnvelope.value = 1
	ch.panningEnvelope.value = 0.5
}

// IsActive reports whether the channel is producing any sound.
func (ch *streamChannel) IsActive() bool {
	return ch.sample != nil && ch.period != 0
}

func (ch *streamChannel) resetEnvelopes() {
	ch.keyOn = true
	ch.fadeoutVolume = 1
	ch.volumeEnvelope.reset(ch.inst.volumeEnvelope, 1)
	ch.panningEnvelope.reset(ch.inst.panningEnvelope, 0.5)
}

func (e *envelopeRunner) reset(env envelope, defaultValue float64) {
	e.envelope = env
	e.frame = 0
	e.value = defaultValue
	if e.IsOn() {
		e.value = e.points[0].value
	}
}

// envelopeValue returns the envelope value or the default if it's off.
func (e *envelopeRunner) envelopeValue(defaultValue float64) float64 {
	if e.IsOn() {
		return e.value
	}
	return defaultValue
}
