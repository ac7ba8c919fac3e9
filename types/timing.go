package types

import (
	"sort"
	"strings"
	"time"
)

type Timing struct {
	Start time.Time
	End   time.Time
}

func (t *Timing) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// TimingMap records the time spent in each phase of processing a message, keyed by phase name
type TimingMap map[string]Timing

// Record stores the timing for the given phase, ending now
func (m TimingMap) Record(phase string, start time.Time) {
	m[phase] = Timing{Start: start, End: time.Now()}
}

// LogValues returns the phase durations as slog key/value pairs
func (m TimingMap) LogValues() []any {
	var res []any
	for _, k := range m.sortedKeys() {
		t := m[k]
		res = append(res, k, t.Duration().String())
	}
	return res
}

func (m TimingMap) String() string {
	var sb strings.Builder
	sb.WriteString("Timing:\n")
	// get max label length
	maxLabelLen := 0
	for k := range m {
		if len(k) > maxLabelLen {
			maxLabelLen = len(k)
		}
	}

	for _, k := range m.sortedKeys() {
		v := m[k]
		sb.WriteString(k)
		sb.WriteString(":")
		// pad label to max length
		for i := len(k); i < maxLabelLen; i++ {
			sb.WriteString(" ")
		}
		sb.WriteString(v.Duration().String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m TimingMap) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
