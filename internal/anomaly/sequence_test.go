package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceModel_RareWindow(t *testing.T) {
	seq := []string{"A", "B", "C", "A", "B", "C", "D", "E", "F"}
	m := NewSequenceModel(3, 2)
	m.Train(seq)

	windows := m.Detect(seq)
	require.NotEmpty(t, windows)

	var positions []int
	for _, w := range windows {
		assert.NotEqual(t, []string{"A", "B", "C"}, w.NGram)
		assert.Equal(t, SeverityLow, w.Severity)
		positions = append(positions, w.Position)
	}
	assert.Contains(t, windows, Window{NGram: []string{"D", "E", "F"}, Position: 6, Severity: SeverityLow})
	assert.IsIncreasing(t, positions)
	assert.Equal(t, 2, m.Count([]string{"A", "B", "C"}))
	assert.Equal(t, 1, m.Count([]string{"D", "E", "F"}))
}

func TestSequenceModel_ShortInput(t *testing.T) {
	m := NewSequenceModel(3, 2)
	m.Train([]string{"A", "B"})
	assert.Zero(t, m.Size())
	assert.Empty(t, m.Detect([]string{"A", "B"}))
	assert.Empty(t, m.Detect(nil))
}

func TestSequenceModel_Defaults(t *testing.T) {
	m := NewSequenceModel(0, -1)
	assert.Equal(t, DefaultN, m.N())

	m.Train([]string{"A", "B", "C"})
	assert.Len(t, m.Detect([]string{"A", "B", "C"}), 1, "seen once is below the default minimum of 2")
}

func TestSequenceModel_DetectIsIdempotent(t *testing.T) {
	m := NewSequenceModel(2, 2)
	m.Train([]string{"A", "B", "A", "B", "C"})

	first := m.Detect([]string{"A", "B", "C", "D"})
	second := m.Detect([]string{"A", "B", "C", "D"})
	assert.Equal(t, first, second)
	assert.Equal(t, 3, m.Size())
}

func TestSequenceModel_CountsAccumulate(t *testing.T) {
	m := NewSequenceModel(2, 3)
	m.Train([]string{"X", "Y"})
	m.Train([]string{"X", "Y"})
	assert.Len(t, m.Detect([]string{"X", "Y"}), 1)

	m.Train([]string{"X", "Y"})
	assert.Empty(t, m.Detect([]string{"X", "Y"}))
	assert.Zero(t, m.Count([]string{"X"}), "wrong length n-gram")
}

func TestSequenceModel_WindowIsCopied(t *testing.T) {
	seq := []string{"A", "B"}
	m := NewSequenceModel(2, 1)
	windows := m.Detect(seq)
	require.Len(t, windows, 1)

	windows[0].NGram[0] = "Z"
	assert.Equal(t, "A", seq[0])
}

func TestSequenceModel_IDsWithSeparatorBytes(t *testing.T) {
	m := NewSequenceModel(2, 2)
	m.Train([]string{"Ea\x1fb", "c"})

	assert.Equal(t, 1, m.Count([]string{"Ea\x1fb", "c"}))
	assert.Zero(t, m.Count([]string{"Ea", "b\x1fc"}))
	assert.Zero(t, m.Count([]string{"Ea\x1fb:", "c"}))
}
