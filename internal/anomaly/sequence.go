package anomaly

import (
	"strconv"
	"strings"
)

// Sequence model defaults.
const (
	DefaultN            = 3
	DefaultMinFrequency = 2
)

// Window is one n-gram reported by SequenceModel.Detect.
type Window struct {
	NGram    []string
	Position int
	Severity Severity
}

// SequenceModel counts contiguous n-grams of template ids. Counts only grow.
// It is not safe for concurrent use.
type SequenceModel struct {
	n            int
	minFrequency int
	counts       map[string]int
}

// NewSequenceModel returns an empty model. Non-positive arguments fall back
// to DefaultN and DefaultMinFrequency.
func NewSequenceModel(n, minFrequency int) *SequenceModel {
	if n <= 0 {
		n = DefaultN
	}
	if minFrequency <= 0 {
		minFrequency = DefaultMinFrequency
	}
	return &SequenceModel{
		n:            n,
		minFrequency: minFrequency,
		counts:       make(map[string]int),
	}
}

// N returns the window length.
func (m *SequenceModel) N() int { return m.n }

// Train counts every window of seq.
func (m *SequenceModel) Train(seq []string) {
	for i := 0; i+m.n <= len(seq); i++ {
		m.counts[key(seq[i:i+m.n])]++
	}
}

// Detect returns the windows of seq seen fewer than minFrequency times, in
// order of position. It does not change the model.
func (m *SequenceModel) Detect(seq []string) []Window {
	var out []Window
	for i := 0; i+m.n <= len(seq); i++ {
		window := seq[i : i+m.n]
		if m.counts[key(window)] < m.minFrequency {
			out = append(out, Window{
				NGram:    append([]string(nil), window...),
				Position: i,
				Severity: SeverityLow,
			})
		}
	}
	return out
}

// Count returns how often ngram was seen during training.
func (m *SequenceModel) Count(ngram []string) int {
	if len(ngram) != m.n {
		return 0
	}
	return m.counts[key(ngram)]
}

// Size returns the number of distinct n-grams seen.
func (m *SequenceModel) Size() int {
	return len(m.counts)
}

// key encodes ngram as length-prefixed ids, so ids may hold any byte.
func key(ngram []string) string {
	var b strings.Builder
	for _, id := range ngram {
		b.WriteString(strconv.Itoa(len(id)))
		b.WriteByte(':')
		b.WriteString(id)
	}
	return b.String()
}
