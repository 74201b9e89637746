package xmscope

import (
	"fmt"
)

// InstrumentNames maps instrument indexes to display labels.
//
// The labels are formatted once during the setup;
// any index outside of the loaded instrument list gets an index-only label.
type InstrumentNames struct {
	labels []string
}

// NewInstrumentNames builds the label table.
// A nil names slice is valid: it means "no names available".
func NewInstrumentNames(names []string) *InstrumentNames {
	t := &InstrumentNames{
		labels: make([]string, len(names)),
	}
	for i, name := range names {
		t.labels[i] = formatInstrumentLabel(i, name)
	}
	return t
}

// Len returns the number of named instruments.
func (t *InstrumentNames) Len() int { return len(t.labels) }

// Label returns a display label for the instrument index,
// like "0A Bass" or "0A" if there is no name.
func (t *InstrumentNames) Label(i int) string {
	if i >= 0 && i < len(t.labels) {
		return t.labels[i]
	}
	return formatInstrumentLabel(i, "")
}

func formatInstrumentLabel(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("%02X", i)
	}
	return fmt.Sprintf("%02X %s", i, name)
}

func trimLabel(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(s) <= maxChars {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars])
}
