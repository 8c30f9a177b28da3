package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name      string
		subject   string
		candidate string
		want      float64
	}{
		{"exact match", "John Smith", "John Smith", 1.0},
		{"reordered", "John Smith", "Smith, John", 1.0},
		{"case insensitive", "John Smith", "JOHN SMITH", 1.0},
		{"partial overlap", "John Smith", "John Doe", 1.0 / 3.0},
		{"no overlap", "John Smith", "Maria Garcia", 0},
		{"empty candidate", "John Smith", "", 0},
		{"empty subject", "", "John Smith", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.subject, tt.candidate), 0.001)
		})
	}
}

func TestSimilarityMiddleName(t *testing.T) {
	// Extra tokens dilute the score but do not zero it.
	score := Similarity("John Smith", "John Q. Smith")
	assert.Greater(t, score, 0.5)
	assert.Less(t, score, 1.0)
}
